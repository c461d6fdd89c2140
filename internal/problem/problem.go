// Package problem writes RFC 7807 application/problem+json responses and maps
// domain errors onto them. It is the only place where repository, role and
// validation errors are turned into HTTP status codes.
package problem

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/repository"
)

// ContentType is the media type of every error body.
const ContentType = "application/problem+json"

// TypeBase prefixes every problem type URI.
const TypeBase = "https://lumenforge.dev/problems/"

// Problem type slugs.
const (
	TypeNotFound     = "not-found"
	TypeConflict     = "conflict"
	TypeValidation   = "validation"
	TypeUnauthorized = "unauthorized"
	TypeForbidden    = "forbidden"
	TypeInternal     = "internal"
)

// Details is the problem body.
type Details struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Status    int               `json:"status"`
	Detail    string            `json:"detail,omitempty"`
	Instance  string            `json:"instance"`
	RequestID string            `json:"requestId,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

var titles = map[string]string{
	TypeNotFound:     "Resource not found",
	TypeConflict:     "Resource already exists",
	TypeValidation:   "Request validation failed",
	TypeUnauthorized: "Authentication required",
	TypeForbidden:    "Insufficient role",
	TypeInternal:     "Internal server error",
}

// New builds a problem for the request. Instance and requestId come from r.
func New(r *http.Request, status int, slug, detail string) *Details {
	return &Details{
		Type:      TypeBase + slug,
		Title:     titles[slug],
		Status:    status,
		Detail:    detail,
		Instance:  r.URL.Path,
		RequestID: chimiddleware.GetReqID(r.Context()),
	}
}

// Write encodes p with the problem content type and its status code.
func Write(w http.ResponseWriter, p *Details) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Write(w, New(r, http.StatusUnauthorized, TypeUnauthorized, detail))
}

func Forbidden(w http.ResponseWriter, r *http.Request, detail string) {
	Write(w, New(r, http.StatusForbidden, TypeForbidden, detail))
}

// Validation writes a 400 with per-field messages.
func Validation(w http.ResponseWriter, r *http.Request, detail string, fields map[string]string) {
	p := New(r, http.StatusBadRequest, TypeValidation, detail)
	p.Errors = fields
	Write(w, p)
}

// Internal writes a generic 500. The cause is never echoed to the client.
func Internal(w http.ResponseWriter, r *http.Request) {
	Write(w, New(r, http.StatusInternalServerError, TypeInternal, ""))
}

// FromError maps err to a problem. Unrecognised errors become 500 with no detail.
func FromError(r *http.Request, err error) *Details {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		p := New(r, http.StatusBadRequest, TypeValidation, "one or more fields are invalid")
		p.Errors = fieldMessages(verrs)
		return p
	}

	if errors.Is(err, auth.ErrUnknownRole) {
		p := New(r, http.StatusBadRequest, TypeValidation, err.Error())
		p.Errors = map[string]string{"roleName": "must be a catalog role name"}
		return p
	}

	if errors.Is(err, auth.ErrInvalidToken) {
		return New(r, http.StatusUnauthorized, TypeUnauthorized, "bearer token is invalid or expired")
	}

	var entityErr *repository.EntityError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		detail := "resource not found"
		if errors.As(err, &entityErr) {
			detail = entityErr.Error()
		}
		return New(r, http.StatusNotFound, TypeNotFound, detail)
	case errors.Is(err, repository.ErrConflict):
		detail := "resource already exists"
		if errors.As(err, &entityErr) {
			detail = entityErr.Error()
		}
		return New(r, http.StatusConflict, TypeConflict, detail)
	}

	return New(r, http.StatusInternalServerError, TypeInternal, "")
}

// Error maps err and writes it. 5xx causes are logged with the request id.
func Error(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	p := FromError(r, err)
	if p.Status >= http.StatusInternalServerError && logger != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": p.RequestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error("request failed")
	}
	Write(w, p)
}

func fieldMessages(errs validation.Errors) map[string]string {
	out := make(map[string]string, len(errs))
	for field, err := range errs {
		if err != nil {
			out[field] = err.Error()
		}
	}
	return out
}
