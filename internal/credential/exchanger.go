package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GmailSendScope is the only scope the backend requests.
const GmailSendScope = "https://www.googleapis.com/auth/gmail.send"

// Exchanger trades a refresh token for a short-lived access token.
type Exchanger interface {
	Exchange(ctx context.Context, c *Credential) (*oauth2.Token, error)
}

// OAuth2Exchanger performs the refresh against an OAuth2 token endpoint.
// The zero value talks to Google.
type OAuth2Exchanger struct {
	Endpoint    oauth2.Endpoint
	RedirectURL string
	HTTPClient  *http.Client
}

func (x OAuth2Exchanger) Config(c *Credential) *oauth2.Config {
	endpoint := x.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  x.RedirectURL,
		Scopes:       []string{GmailSendScope},
	}
}

func (x OAuth2Exchanger) Exchange(ctx context.Context, c *Credential) (*oauth2.Token, error) {
	if x.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, x.HTTPClient)
	}
	// A token with no access token is always refreshed.
	tok, err := x.Config(c).TokenSource(ctx, &oauth2.Token{RefreshToken: c.RefreshToken}).Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, errors.New("identity provider returned an empty access token")
	}
	return tok, nil
}

// providerDetail extracts the identity provider's own explanation when the
// failure came from the token endpoint.
func providerDetail(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		parts := []string{}
		if re.ErrorCode != "" {
			parts = append(parts, re.ErrorCode)
		}
		if re.ErrorDescription != "" {
			parts = append(parts, re.ErrorDescription)
		}
		if len(parts) == 0 && len(re.Body) > 0 {
			parts = append(parts, strings.TrimSpace(string(re.Body)))
		}
		if len(parts) > 0 {
			return "Response: " + strings.Join(parts, ": ")
		}
		if re.Response != nil {
			return fmt.Sprintf("Response: HTTP %d", re.Response.StatusCode)
		}
	}
	return "Error: " + err.Error()
}
