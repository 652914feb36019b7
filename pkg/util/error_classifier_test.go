package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyError(t *testing.T) {
	notFound := &net.DNSError{Err: "no such host", Name: "api.cloudinary.com", IsNotFound: true}
	tests := []struct {
		name      string
		err       error
		retryable bool
		kind      string
	}{
		{name: "nil", err: nil, retryable: false, kind: ""},
		{
			name:      "dns-not-found",
			err:       &url.Error{Op: "Post", URL: "https://api.cloudinary.com", Err: &net.OpError{Op: "dial", Err: notFound}},
			retryable: false,
			kind:      KindNameResolution,
		},
		{
			name:      "dns-temporary",
			err:       &net.DNSError{Err: "server misbehaving", Name: "api.cloudinary.com", IsTemporary: true},
			retryable: true,
			kind:      KindNetworkError,
		},
		{name: "canceled", err: fmt.Errorf("upload: %w", context.Canceled), retryable: false, kind: KindContextCanceled},
		{name: "deadline", err: context.DeadlineExceeded, retryable: true, kind: KindTimeout},
		{
			name:      "url-timeout",
			err:       &url.Error{Op: "Post", URL: "https://x", Err: timeoutErr{}},
			retryable: true,
			kind:      KindNetworkTimeout,
		},
		{name: "net-timeout", err: timeoutErr{}, retryable: true, kind: KindNetworkTimeout},
		{name: "http-5xx", err: statusErr{code: 502}, retryable: true, kind: KindHTTPStatus},
		{name: "unknown", err: errors.New("weird"), retryable: true, kind: KindUnknown},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			retryable, kind := ClassifyError(tc.err)
			if retryable != tc.retryable || kind != tc.kind {
				t.Fatalf("got (%v, %q) want (%v, %q)", retryable, kind, tc.retryable, tc.kind)
			}
		})
	}
}

func TestNameResolutionHost(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &net.DNSError{Name: "api.cloudinary.com", IsNotFound: true})
	if got := NameResolutionHost(err); got != "api.cloudinary.com" {
		t.Fatalf("host = %q", got)
	}
	if got := NameResolutionHost(errors.New("x")); got != "" {
		t.Fatalf("host = %q", got)
	}
}
