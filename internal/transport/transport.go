// Package transport holds the send-capable mail transports the credential
// manager builds from a freshly exchanged access token.
package transport

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"greybackend/config"
)

// Envelope is a fully composed RFC 5322 message plus its SMTP envelope.
type Envelope struct {
	From string
	To   []string
	Raw  []byte
}

// Transport performs authenticated sends on behalf of one account.
type Transport interface {
	Account() string
	Send(ctx context.Context, env Envelope) (messageID string, err error)
}

// Factory builds a Transport bound to account and token.
type Factory func(account string, token *oauth2.Token) (Transport, error)

var errNoToken = errors.New("transport requires an access token")

func validateBinding(account string, token *oauth2.Token) error {
	if account == "" {
		return errors.New("transport requires an account")
	}
	if token == nil || token.AccessToken == "" {
		return errNoToken
	}
	return nil
}

// FromConfig returns the factory named by cfg.Transport.
func FromConfig(cfg config.MailConfig) (Factory, error) {
	switch cfg.Transport {
	case "", "gmail_api":
		return NewGmailAPIFactory(), nil
	case "smtp":
		return NewSMTPFactory(cfg.SMTPAddr, nil), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}
