package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// AuthCodeURL returns the consent URL an operator opens once to authorize
// the sender account. Offline access with a forced consent prompt is what
// makes the provider return a refresh token.
func AuthCodeURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode trades an authorization code for the initial credential.
func ExchangeCode(ctx context.Context, cfg *oauth2.Config, code, userEmail string) (*Credential, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}
	if userEmail == "" {
		return nil, errors.New("user email is required")
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %s", providerDetail(err))
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("no refresh token returned; revoke the app's access for this account and authorize again")
	}
	c := &Credential{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: tok.RefreshToken,
		UserEmail:    userEmail,
		AccessToken:  tok.AccessToken,
	}
	if !tok.Expiry.IsZero() {
		c.ExpiryDate = tok.Expiry.UnixMilli()
	} else {
		c.ExpiryDate = time.Now().Add(AccessTokenLifetime).UnixMilli()
	}
	return c, nil
}
