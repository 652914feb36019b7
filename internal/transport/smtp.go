package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"golang.org/x/oauth2"
)

// SMTP relays through a submission server (smtp.gmail.com:587 by default)
// authenticating with SASL OAUTHBEARER.
type SMTP struct {
	addr    string
	account string
	token   *oauth2.Token
	tls     *tls.Config
}

// NewSMTPFactory returns a Factory for STARTTLS submission to addr.
func NewSMTPFactory(addr string, tlsConfig *tls.Config) Factory {
	return func(account string, token *oauth2.Token) (Transport, error) {
		if err := validateBinding(account, token); err != nil {
			return nil, err
		}
		return &SMTP{addr: addr, account: account, token: token, tls: tlsConfig}, nil
	}
}

func (s *SMTP) Account() string { return s.account }

func (s *SMTP) Send(ctx context.Context, env Envelope) (string, error) {
	host, portStr, err := net.SplitHostPort(s.addr)
	if err != nil {
		return "", fmt.Errorf("smtp address %q: %w", s.addr, err)
	}
	port, _ := strconv.Atoi(portStr)

	c, err := smtp.DialStartTLS(s.addr, s.tls)
	if err != nil {
		return "", fmt.Errorf("smtp dial %s: %w", s.addr, err)
	}
	defer c.Close()

	// go-smtp has no context support; abort the session if ctx ends first.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()

	auth := sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: s.account,
		Token:    s.token.AccessToken,
		Host:     host,
		Port:     port,
	})
	if err := c.Auth(auth); err != nil {
		return "", fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.SendMail(env.From, env.To, bytes.NewReader(env.Raw)); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	if err := c.Quit(); err != nil {
		return "", fmt.Errorf("smtp quit: %w", err)
	}
	return "", nil
}
