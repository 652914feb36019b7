package credential

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a credential failure.
type Kind string

const (
	// KindUnavailable means no credential record exists. Mail falls back
	// to the mock path; this is not a hard failure.
	KindUnavailable Kind = "unavailable"
	// KindIncomplete means the record is unusable as stored.
	KindIncomplete Kind = "incomplete"
	// KindExchangeFailed means the identity provider rejected the refresh.
	KindExchangeFailed Kind = "exchange_failed"
	// KindStoreFailure means the store could not be read, so whether a
	// credential exists is unknown. Sends fail rather than go mock.
	KindStoreFailure Kind = "store_failure"
)

var (
	ErrUnavailable    = errors.New("gmail credentials not available")
	ErrIncomplete     = errors.New("gmail credentials incomplete")
	ErrExchangeFailed = errors.New("failed to refresh access token")
	ErrStoreFailure   = errors.New("gmail credential store unreadable")
)

// Error is returned by Manager operations. Its message is written for an
// operator and is safe to surface in an API response.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrIncomplete:
		return e.Kind == KindIncomplete
	case ErrExchangeFailed:
		return e.Kind == KindExchangeFailed
	case ErrStoreFailure:
		return e.Kind == KindStoreFailure
	}
	return false
}

func unavailable(source string, err error) *Error {
	return &Error{
		Kind:    KindUnavailable,
		Message: fmt.Sprintf("gmail credentials not available (%s not found); email sending is disabled", source),
		Err:     err,
	}
}

func storeFailure(source string, err error) *Error {
	return &Error{
		Kind:    KindStoreFailure,
		Message: fmt.Sprintf("gmail credentials could not be read from %s: %v", source, err),
		Err:     err,
	}
}

func incomplete(source string, missing []string) *Error {
	return &Error{
		Kind: KindIncomplete,
		Message: fmt.Sprintf(
			"missing required Gmail credentials: %s. Check that %s has client_id, client_secret, refresh_token "+
				"and user_email, that client_id and client_secret match the OAuth client in Google Cloud Console, "+
				"or regenerate tokens with `greyctl oauth url` and `greyctl oauth exchange`",
			strings.Join(missing, ", "), source),
	}
}

func unreadable(source string, err error) *Error {
	return &Error{
		Kind: KindIncomplete,
		Message: fmt.Sprintf("gmail credentials in %s could not be parsed: %v. "+
			"Regenerate them with `greyctl oauth exchange`", source, err),
		Err: err,
	}
}

// exchangeFailed carries the provider detail plus the distinct root causes an
// operator should walk through.
func exchangeFailed(detail, userEmail, source string, err error) *Error {
	var b strings.Builder
	fmt.Fprintf(&b, "Failed to refresh access token. %s\n\n", detail)
	b.WriteString("Troubleshooting steps:\n")
	b.WriteString("1. Verify refresh_token is valid and not expired or revoked\n")
	b.WriteString("2. Check client_id and client_secret match Google Cloud Console\n")
	b.WriteString("3. Ensure Gmail API is enabled in Google Cloud Console\n")
	b.WriteString("4. Verify OAuth consent screen is configured\n")
	fmt.Fprintf(&b, "5. Make sure user_email (%s) matches the account that authorized the app\n", userEmail)
	fmt.Fprintf(&b, "6. Try regenerating tokens: run `greyctl oauth url` then `greyctl oauth exchange` and update %s", source)
	return &Error{Kind: KindExchangeFailed, Message: b.String(), Err: err}
}
