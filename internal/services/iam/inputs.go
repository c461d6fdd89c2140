package iam

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Field limits for admin payloads.
const (
	MaxSubjectIDLength     = 255
	MinGroupNameLength     = 1
	MaxGroupNameLength     = 100
	MinGroupDescriptionLen = 10
	MaxGroupDescriptionLen = 500
)

// UserInput registers a subject.
type UserInput struct {
	SubjectID string `json:"subjectId"`
}

// Validate returns validation.Errors keyed by JSON field name.
func (in UserInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.SubjectID, validation.Required, validation.Length(1, MaxSubjectIDLength), validation.By(noSurroundingSpace)),
	)
}

// GroupInput creates a group.
type GroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in GroupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(MinGroupNameLength, MaxGroupNameLength), validation.By(noSurroundingSpace)),
		validation.Field(&in.Description, validation.Required, validation.Length(MinGroupDescriptionLen, MaxGroupDescriptionLen)),
	)
}

// MembershipInput names the subject to add to a group.
type MembershipInput struct {
	SubjectID string `json:"subjectId"`
}

func (in MembershipInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.SubjectID, validation.Required, validation.Length(1, MaxSubjectIDLength)),
	)
}

func noSurroundingSpace(value any) error {
	s, _ := value.(string)
	if s != strings.TrimSpace(s) {
		return validation.NewError("validation_surrounding_space", "must not start or end with whitespace")
	}
	return nil
}
