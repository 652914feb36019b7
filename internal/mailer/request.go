// Package mailer composes branded messages, dispatches them through the
// transport the credential manager hands out and audits every attempt.
package mailer

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SendRequest is one send as submitted by the caller.
type SendRequest struct {
	SenderID    *int64       `json:"-"`
	To          string       `json:"to" validate:"required"` // comma separated
	Subject     string       `json:"subject" validate:"required"`
	Body        string       `json:"body" validate:"required"`
	Attachments []Attachment `json:"attachments"`
}

// ValidationError rejects a request before any send is attempted. It is
// not audited.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate checks the required fields.
func (r *SendRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return &ValidationError{Fields: fields, Message: "To, subject, and body are required"}
}

// ParseRecipients splits a comma-separated address list, trimming entries
// and dropping empty ones. Order is kept.
func ParseRecipients(to string) []string {
	var out []string
	for _, part := range strings.Split(to, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
