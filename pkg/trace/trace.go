// Package trace carries a per-request correlation id through contexts,
// HTTP headers and published delivery events.
package trace

import (
	"context"
	"regexp"

	"github.com/google/uuid"
)

// Header is the HTTP header and AMQP message header carrying the id.
const Header = "X-Trace-ID"

type ctxKey struct{}

// ids arriving from clients are echoed back into logs and headers
var validID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

func NewID() string {
	return uuid.NewString()
}

// Accept returns the incoming id when it is usable, otherwise a fresh one.
func Accept(incoming string) string {
	if validID.MatchString(incoming) {
		return incoming
	}
	return NewID()
}

func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}
