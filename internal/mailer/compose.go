package mailer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jhillyerd/enmime"
)

// MailMessage is one fully rendered message, built per send.
type MailMessage struct {
	FromName    string
	From        string
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Compose encodes msg as RFC 5322 MIME.
func Compose(msg MailMessage) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("compose: no recipients")
	}
	b := enmime.Builder().
		From(msg.FromName, msg.From).
		Subject(msg.Subject).
		HTML([]byte(msg.HTML))
	for _, to := range msg.To {
		b = b.To("", to)
	}
	for i, a := range msg.Attachments {
		if a.Content == "" {
			return nil, fmt.Errorf("compose: attachment %d has no inline content", i)
		}
		data, err := a.decode()
		if err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
		ctype := a.ContentType
		if ctype == "" {
			ctype = mimetype.Detect(data).String()
		}
		name := a.Filename
		if name == "" {
			name = "attachment"
		}
		b = b.AddAttachment(data, ctype, name)
	}

	root, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, fmt.Errorf("compose: encode: %w", err)
	}
	return buf.Bytes(), nil
}
