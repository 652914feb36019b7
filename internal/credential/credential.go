// Package credential owns the persisted Gmail OAuth2 credential: loading it,
// validating it, exchanging its refresh token for an access token and
// writing the refreshed token back. Nothing here is cached between calls.
package credential

import (
	"encoding/json"
	"sort"
	"time"
)

// Credential is the durable record at the well-known token path.
// Fields this package does not know about survive a rewrite untouched.
type Credential struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	UserEmail    string `json:"user_email"`
	AccessToken  string `json:"access_token,omitempty"`
	ExpiryDate   int64  `json:"expiry_date,omitempty"` // unix millis

	extra map[string]json.RawMessage
}

type credentialFields Credential

var knownFields = []string{"client_id", "client_secret", "refresh_token", "user_email", "access_token", "expiry_date"}

func (c *Credential) UnmarshalJSON(data []byte) error {
	var fields credentialFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownFields {
		delete(all, k)
	}
	*c = Credential(fields)
	if len(all) > 0 {
		c.extra = all
	}
	return nil
}

func (c Credential) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(credentialFields(c))
	if err != nil {
		return nil, err
	}
	if len(c.extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(c.extra)+len(knownFields))
	for k, v := range c.extra {
		merged[k] = v
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	for k, v := range knownMap {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// MissingFields lists the mandatory fields that are empty, in a fixed order.
func (c *Credential) MissingFields() []string {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.RefreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	if c.UserEmail == "" {
		missing = append(missing, "user_email")
	}
	return missing
}

// Expiry returns the cached access token expiry, zero if unknown.
func (c *Credential) Expiry() time.Time {
	if c.ExpiryDate == 0 {
		return time.Time{}
	}
	return time.UnixMilli(c.ExpiryDate)
}

// ExtraFields returns the names of preserved unknown fields, sorted.
func (c *Credential) ExtraFields() []string {
	names := make([]string, 0, len(c.extra))
	for k := range c.extra {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// withAccessToken returns a copy carrying a new access token and expiry.
// The refresh token and static fields are kept as loaded.
func (c *Credential) withAccessToken(token string, expiry time.Time) *Credential {
	next := *c
	next.AccessToken = token
	next.ExpiryDate = expiry.UnixMilli()
	return &next
}
