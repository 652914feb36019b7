package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

func TestFactoriesRejectIncompleteBinding(t *testing.T) {
	factories := map[string]Factory{
		"gmail": NewGmailAPIFactory(),
		"smtp":  NewSMTPFactory("smtp.gmail.com:587", nil),
	}
	for name, f := range factories {
		if _, err := f("", &oauth2.Token{AccessToken: "x"}); err == nil {
			t.Fatalf("%s: expected error for empty account", name)
		}
		if _, err := f("ops@greyinsaat.com", &oauth2.Token{}); err == nil {
			t.Fatalf("%s: expected error for empty token", name)
		}
		tr, err := f("ops@greyinsaat.com", &oauth2.Token{AccessToken: "x"})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if tr.Account() != "ops@greyinsaat.com" {
			t.Fatalf("%s: account = %q", name, tr.Account())
		}
	}
}

func TestGmailAPISend(t *testing.T) {
	var (
		mu        sync.Mutex
		gotAuth   string
		gotRaw    string
		gotPath   string
		callCount int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		callCount++
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		var body struct {
			Raw string `json:"raw"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotRaw = body.Raw
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-123"}`))
	}))
	defer srv.Close()

	factory := NewGmailAPIFactory(option.WithEndpoint(srv.URL + "/"))
	tr, err := factory("ops@greyinsaat.com", &oauth2.Token{AccessToken: "live-token"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	raw := []byte("From: ops@greyinsaat.com\r\nTo: a@x.com\r\nSubject: S\r\n\r\nbody")
	id, err := tr.Send(context.Background(), Envelope{From: "ops@greyinsaat.com", To: []string{"a@x.com"}, Raw: raw})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "msg-123" {
		t.Fatalf("id = %q", id)
	}

	mu.Lock()
	defer mu.Unlock()
	if callCount != 1 {
		t.Fatalf("expected 1 request, got %d", callCount)
	}
	if !strings.HasSuffix(gotPath, "/users/me/messages/send") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer live-token" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	decoded, err := base64.URLEncoding.DecodeString(gotRaw)
	if err != nil {
		t.Fatalf("raw not base64url: %v", err)
	}
	if string(decoded) != string(raw) {
		t.Fatalf("raw mismatch: %q", decoded)
	}
}

func TestGmailAPISendPropagatesRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"Gmail API has not been used"}}`))
	}))
	defer srv.Close()

	tr, err := NewGmailAPIFactory(option.WithEndpoint(srv.URL+"/"))("ops@greyinsaat.com", &oauth2.Token{AccessToken: "t"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	_, err = tr.Send(context.Background(), Envelope{Raw: []byte("x")})
	if err == nil || !strings.Contains(err.Error(), "Gmail API has not been used") {
		t.Fatalf("expected remote error, got %v", err)
	}
}
