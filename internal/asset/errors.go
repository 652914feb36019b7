package asset

import (
	"errors"
	"fmt"
)

// Kind classifies an upload failure.
type Kind string

const (
	KindNameResolution Kind = "name_resolution"
	KindExhausted      Kind = "retries_exhausted"
	KindCanceled       Kind = "canceled"
	KindInvalidPayload Kind = "invalid_payload"
)

var (
	ErrNameResolution   = errors.New("asset store host could not be resolved")
	ErrRetriesExhausted = errors.New("asset upload retries exhausted")
)

// UploadError is the single failure type of Client.Upload. Exhausted errors
// keep a generic message for callers; the last attempt's cause stays
// reachable through Unwrap.
type UploadError struct {
	Kind     Kind
	Host     string
	Attempts int
	Err      error
}

func (e *UploadError) Error() string {
	switch e.Kind {
	case KindNameResolution:
		return fmt.Sprintf("failed to upload image: cannot resolve %s: %v", e.Host, e.Err)
	case KindCanceled:
		return "failed to upload image: " + e.Err.Error()
	case KindInvalidPayload:
		return "invalid image data: " + e.Err.Error()
	default:
		return "failed to upload image"
	}
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool {
	switch target {
	case ErrNameResolution:
		return e.Kind == KindNameResolution
	case ErrRetriesExhausted:
		return e.Kind == KindExhausted
	}
	return false
}

// BatchUploadError reports the unit that failed a batch.
type BatchUploadError struct {
	Index int
	Err   error
}

func (e *BatchUploadError) Error() string { return "failed to upload images" }

func (e *BatchUploadError) Unwrap() error { return e.Err }
