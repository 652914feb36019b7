package asset

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPayload = errors.New("image must be a base64 data URI or a base64 string")

// DecodePayload turns a submitted image into raw bytes. Only
// "data:<type>;base64,<data>" URIs and bare base64 are accepted; the
// result always reaches the store as content, never as a path or URL.
func DecodePayload(payload string) ([]byte, error) {
	encoded := strings.TrimSpace(payload)
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: data URI is not base64 encoded", ErrInvalidPayload)
		}
		encoded = data
	}
	encoded = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	return data, nil
}
