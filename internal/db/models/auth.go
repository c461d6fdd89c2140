package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is the internal record for an IdP subject.
// SubjectID is immutable once created; the IdP owns everything else about the person.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64     `bun:"id,pk,autoincrement"`
	SubjectID string    `bun:"subject_id,notnull,unique"`
	JoinedAt  time.Time `bun:"joined_at,notnull,default:current_timestamp"`
}

// Group is a named bundle of roles and members.
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID          int64     `bun:"id,pk,autoincrement"`
	GUID        string    `bun:"guid,notnull,unique,type:uuid"`
	Name        string    `bun:"name,notnull,unique"`
	Description string    `bun:"description,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// GroupRole attaches one catalog role (by stable integer value) to a group.
type GroupRole struct {
	bun.BaseModel `bun:"table:group_roles,alias:gr"`

	GroupID int64 `bun:"group_id,pk"`
	Role    int16 `bun:"role,pk"`
}

// GroupUser is a user's membership in a group.
// AssignedBy holds the acting subject id by value for auditing.
type GroupUser struct {
	bun.BaseModel `bun:"table:group_users,alias:gu"`

	GroupID    int64     `bun:"group_id,pk"`
	UserID     int64     `bun:"user_id,pk"`
	JoinedAt   time.Time `bun:"joined_at,notnull,default:current_timestamp"`
	AssignedBy *string   `bun:"assigned_by"`
}

// GroupMember is a membership row joined with the member's subject id.
type GroupMember struct {
	bun.BaseModel `bun:"table:group_users,alias:gu"`

	GroupID    int64     `bun:"group_id"`
	UserID     int64     `bun:"user_id"`
	SubjectID  string    `bun:"subject_id"`
	JoinedAt   time.Time `bun:"joined_at"`
	AssignedBy *string   `bun:"assigned_by"`
}
