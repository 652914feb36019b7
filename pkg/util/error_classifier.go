package util

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// Failure kinds reported by ClassifyError.
const (
	KindNameResolution  = "name_resolution"
	KindNetworkTimeout  = "network_timeout"
	KindNetworkError    = "network_error"
	KindTimeout         = "timeout"
	KindContextCanceled = "context_canceled"
	KindHTTPStatus      = "http_status"
	KindUnknown         = "unknown_error"
)

// StatusError is implemented by errors that carry a remote HTTP status.
type StatusError interface {
	error
	StatusCode() int
}

// ClassifyError determines whether an outbound-call error is worth retrying.
// Returns: (isRetryable, errorType)
//
// A host that does not resolve is a local network/DNS problem and is never
// retried; callers escalate it instead. Everything else an external API can
// throw at us (timeouts, resets, 5xx, unknown) is treated as transient.
func ClassifyError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	if IsNameResolutionError(err) {
		return false, KindNameResolution
	}

	if errors.Is(err, context.Canceled) {
		return false, KindContextCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, KindTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true, KindNetworkTimeout
		}
		return true, KindNetworkError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, KindNetworkTimeout
		}
		return true, KindNetworkError
	}

	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return true, KindHTTPStatus
	}

	return true, KindUnknown
}

// IsNameResolutionError reports whether err stems from a host lookup that
// returned no such host.
func IsNameResolutionError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// NameResolutionHost returns the host named in a DNS failure, if any.
func NameResolutionHost(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Name
	}
	return ""
}
