package mailer

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Attachment is a file attached to a send request. Shapes the dispatcher
// does not rewrite are passed along, and audited, exactly as submitted.
type Attachment struct {
	Filename    string `json:"filename,omitempty"`
	Content     string `json:"content,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
	ContentType string `json:"contentType,omitempty"`

	raw json.RawMessage
}

type attachmentFields Attachment

func (a *Attachment) UnmarshalJSON(data []byte) error {
	var f attachmentFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Attachment(f)
	a.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	if a.raw != nil {
		return a.raw, nil
	}
	return json.Marshal(attachmentFields(a))
}

// NormalizeAttachments rewrites base64 attachments into the canonical
// {filename, content, encoding} form. Anything else is kept unchanged.
func NormalizeAttachments(in []Attachment) []Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]Attachment, 0, len(in))
	for _, a := range in {
		if a.Content != "" && a.Encoding == "base64" {
			name := a.Filename
			if name == "" {
				name = "attachment"
			}
			out = append(out, Attachment{Filename: name, Content: a.Content, Encoding: "base64"})
			continue
		}
		out = append(out, a)
	}
	return out
}

// decode returns the attachment bytes. Base64 content may carry a data URI
// prefix.
func (a Attachment) decode() ([]byte, error) {
	switch a.Encoding {
	case "base64":
		content := a.Content
		if strings.HasPrefix(content, "data:") {
			if i := strings.Index(content, ","); i >= 0 {
				content = content[i+1:]
			}
		}
		b, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("attachment %q: invalid base64: %w", a.Filename, err)
		}
		return b, nil
	case "hex":
		b, err := hex.DecodeString(a.Content)
		if err != nil {
			return nil, fmt.Errorf("attachment %q: invalid hex: %w", a.Filename, err)
		}
		return b, nil
	case "", "utf8", "utf-8", "binary":
		return []byte(a.Content), nil
	default:
		return nil, fmt.Errorf("attachment %q: unsupported encoding %q", a.Filename, a.Encoding)
	}
}

// auditJSON serializes the attachments as submitted.
func auditJSON(in []Attachment) string {
	if len(in) == 0 {
		return "[]"
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "[]"
	}
	return string(b)
}
