package transport

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailAPI sends through the Gmail REST API (users.messages.send).
type GmailAPI struct {
	account string
	token   *oauth2.Token
	opts    []option.ClientOption
}

// NewGmailAPIFactory returns a Factory for Gmail API transports. Extra
// options are appended after the token source (tests point WithEndpoint at
// an httptest server).
func NewGmailAPIFactory(opts ...option.ClientOption) Factory {
	return func(account string, token *oauth2.Token) (Transport, error) {
		if err := validateBinding(account, token); err != nil {
			return nil, err
		}
		return &GmailAPI{account: account, token: token, opts: opts}, nil
	}
}

func (g *GmailAPI) Account() string { return g.account }

func (g *GmailAPI) Send(ctx context.Context, env Envelope) (string, error) {
	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(g.token)),
	}, g.opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("create gmail service: %w", err)
	}
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(env.Raw)}
	sent, err := svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail send: %w", err)
	}
	return sent.Id, nil
}
