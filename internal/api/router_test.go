package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greybackend/internal/asset"
	"greybackend/internal/credential"
	"greybackend/internal/mailer"
	"greybackend/internal/model"
	"greybackend/pkg/rbac"
	"greybackend/pkg/trace"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUploader struct {
	err      error
	folder   string
	payloads []string
}

func (f *fakeUploader) Upload(ctx context.Context, payload, folder string) (string, error) {
	f.folder = folder
	if f.err != nil {
		return "", f.err
	}
	return "https://res.cloudinary.com/demo/image/upload/v1/greyinsaat/a.jpg", nil
}

func (f *fakeUploader) UploadMany(ctx context.Context, payloads []string, folder string) ([]string, error) {
	f.payloads = payloads
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, len(payloads))
	for i := range payloads {
		out[i] = "https://res.cloudinary.com/demo/image/upload/v1/x.jpg"
	}
	return out, nil
}

type fakeMail struct {
	err   error
	calls int
	last  mailer.SendRequest
}

func (f *fakeMail) Send(ctx context.Context, req mailer.SendRequest) (*mailer.Receipt, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &mailer.Receipt{ID: "r1", Recipients: mailer.ParseRecipients(req.To), Mock: true, Message: "Email sent successfully to 1 recipient(s)"}, nil
}

func (f *fakeMail) Recent(ctx context.Context, limit int) ([]model.DeliveryRecord, error) {
	return []model.DeliveryRecord{{ID: 1, Recipients: "a@x.com", Status: model.DeliverySent}}, nil
}

type fakeChecker struct{ err error }

func (f fakeChecker) Check(ctx context.Context) (*credential.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &credential.Status{Valid: true, Message: "Gmail credentials are valid", UserEmail: "ops@greyinsaat.com"}, nil
}

type memDeduper struct {
	seen     map[string]bool
	released []string
}

func (m *memDeduper) AcquireOnce(ctx context.Context, scope, key string) bool {
	if m.seen[scope+"|"+key] {
		return false
	}
	m.seen[scope+"|"+key] = true
	return true
}

func (m *memDeduper) Release(ctx context.Context, scope, key string) {
	delete(m.seen, scope+"|"+key)
	m.released = append(m.released, key)
}

type fixture struct {
	router   *Router
	uploader *fakeUploader
	mail     *fakeMail
	deduper  *memDeduper
}

func newFixture(t *testing.T, checker CredentialChecker) *fixture {
	t.Helper()
	f := &fixture{uploader: &fakeUploader{}, mail: &fakeMail{}, deduper: &memDeduper{seen: map[string]bool{}}}
	f.router = NewRouter(
		NewUploadHandler(f.uploader, f.uploader, zap.NewNop()),
		NewEmailHandler(f.mail, checker, f.deduper, zap.NewNop()),
		RouterConfig{JWTSecret: testSecret, MaxBodyBytes: 1 << 10},
	)
	return f
}

func (f *fixture) do(t *testing.T, method, path, role, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return f.doAs(t, 42, method, path, role, body, headers)
}

func (f *fixture) doAs(t *testing.T, userID int, method, path, role, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		tok, err := GenerateJWT(userID, role, testSecret, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.Engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	w := f.do(t, http.MethodGet, "/", "", "", nil)
	if w.Code != http.StatusOK || decode(t, w)["success"] != true {
		t.Fatalf("code = %d body = %s", w.Code, w.Body)
	}
	if w.Header().Get(trace.Header) == "" {
		t.Fatalf("trace header not set")
	}
}

func TestTraceHeaderPropagated(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	w := f.do(t, http.MethodGet, "/", "", "", map[string]string{trace.Header: "abc-123"})
	if got := w.Header().Get(trace.Header); got != "abc-123" {
		t.Fatalf("trace id = %q", got)
	}
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	w := f.do(t, http.MethodPost, "/api/upload/image", "", `{"image":"x"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}
	w = f.do(t, http.MethodPost, "/api/upload/image", "", `{"image":"x"}`, map[string]string{"Authorization": "Bearer garbage"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestUploadImage(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"ok", `{"image":"data:image/png;base64,AAAA"}`, nil, http.StatusOK, ""},
		{"missing image", `{"folder":"x"}`, nil, http.StatusBadRequest, "Image data is required"},
		{"upload fails", `{"image":"AAAA"}`, &asset.UploadError{Kind: asset.KindExhausted}, http.StatusInternalServerError, "failed to upload image"},
		{"not base64", `{"image":"./myToken.json"}`, &asset.UploadError{Kind: asset.KindInvalidPayload, Err: asset.ErrInvalidPayload},
			http.StatusBadRequest, "Image data must be a base64 data URI or base64 string"},
		{"malformed", `{"image":`, nil, http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fakeChecker{})
			f.uploader.err = tt.err
			w := f.do(t, http.MethodPost, "/api/upload/image", rbac.RoleViewer, tt.body, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("code = %d body = %s", w.Code, w.Body)
			}
			body := decode(t, w)
			if tt.wantMsg != "" && body["message"] != tt.wantMsg {
				t.Fatalf("message = %v", body["message"])
			}
			if tt.wantCode == http.StatusOK && body["imageUrl"] == "" {
				t.Fatalf("no imageUrl")
			}
		})
	}
}

func TestUploadImagesBatchLimit(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	imgs, _ := json.Marshal(map[string]any{"images": []string{"1", "2", "3", "4", "5", "6", "7", "8"}})
	w := f.do(t, http.MethodPost, "/api/upload/images", rbac.RoleAdmin, string(imgs), nil)
	if w.Code != http.StatusBadRequest || decode(t, w)["message"] != "Maximum 7 images allowed" {
		t.Fatalf("code = %d body = %s", w.Code, w.Body)
	}

	w = f.do(t, http.MethodPost, "/api/upload/images", rbac.RoleAdmin, `{"images":[]}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty batch code = %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/upload/images", rbac.RoleAdmin, `{"images":["AAAA","data:image/png;base64,AQID"]}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	urls, _ := decode(t, w)["imageUrls"].([]any)
	if len(urls) != 2 {
		t.Fatalf("imageUrls = %v", urls)
	}
}

func TestBodyLimit(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	big := `{"image":"` + strings.Repeat("A", 2048) + `"}`
	w := f.do(t, http.MethodPost, "/api/upload/image", rbac.RoleViewer, big, nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("code = %d body = %s", w.Code, w.Body)
	}
}

func TestSendEmail(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	w := f.do(t, http.MethodPost, "/api/email/send", rbac.RoleViewer, `{"to":"a@x.com","subject":"S","body":"B"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d body = %s", w.Code, w.Body)
	}
	if f.mail.last.SenderID == nil || *f.mail.last.SenderID != 42 {
		t.Fatalf("sender id not taken from token")
	}
	if decode(t, w)["message"] != "Email sent successfully to 1 recipient(s)" {
		t.Fatalf("body = %s", w.Body)
	}
}

func TestSendEmailErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"validation", &mailer.ValidationError{Message: "To, subject, and body are required"}, http.StatusBadRequest, "To, subject, and body are required"},
		{"send failure", &mailer.SendError{Detail: "smtp down"}, http.StatusInternalServerError, "Failed to send email: smtp down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fakeChecker{})
			f.mail.err = tt.err
			w := f.do(t, http.MethodPost, "/api/email/send", rbac.RoleViewer, `{"to":"a@x.com","subject":"S","body":"B"}`, nil)
			if w.Code != tt.wantCode || decode(t, w)["message"] != tt.wantMsg {
				t.Fatalf("code = %d body = %s", w.Code, w.Body)
			}
		})
	}
}

func TestSendEmailIdempotencyKey(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	hdr := map[string]string{"Idempotency-Key": "k1"}
	body := `{"to":"a@x.com","subject":"S","body":"B"}`

	if w := f.do(t, http.MethodPost, "/api/email/send", rbac.RoleViewer, body, hdr); w.Code != http.StatusOK {
		t.Fatalf("first code = %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/email/send", rbac.RoleViewer, body, hdr); w.Code != http.StatusConflict {
		t.Fatalf("duplicate code = %d", w.Code)
	}
	if f.mail.calls != 1 {
		t.Fatalf("send calls = %d", f.mail.calls)
	}

	// another user reusing the same key is a different request
	if w := f.doAs(t, 7, http.MethodPost, "/api/email/send", rbac.RoleViewer, body, hdr); w.Code != http.StatusOK {
		t.Fatalf("second user code = %d body = %s", w.Code, w.Body)
	}
	if f.mail.calls != 2 {
		t.Fatalf("send calls = %d, want 2", f.mail.calls)
	}

	// a failed send frees the key for a retry
	f.mail.err = &mailer.SendError{Detail: "boom"}
	hdr["Idempotency-Key"] = "k2"
	f.do(t, http.MethodPost, "/api/email/send", rbac.RoleViewer, body, hdr)
	if len(f.deduper.released) != 1 || f.deduper.released[0] != "k2" {
		t.Fatalf("released = %v", f.deduper.released)
	}
}

func TestTestCredentialsRoles(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	if w := f.do(t, http.MethodGet, "/api/email/test-credentials", rbac.RoleViewer, "", nil); w.Code != http.StatusForbidden {
		t.Fatalf("viewer code = %d", w.Code)
	}
	w := f.do(t, http.MethodGet, "/api/email/test-credentials", rbac.RoleAdmin, "", nil)
	if w.Code != http.StatusOK || decode(t, w)["userEmail"] != "ops@greyinsaat.com" {
		t.Fatalf("code = %d body = %s", w.Code, w.Body)
	}
}

func TestTestCredentialsFailures(t *testing.T) {
	unavailable := newFixture(t, fakeChecker{err: &credential.Error{Kind: credential.KindUnavailable, Message: "x"}})
	w := unavailable.do(t, http.MethodGet, "/api/email/test-credentials", rbac.RoleSuperAdmin, "", nil)
	if w.Code != http.StatusInternalServerError || decode(t, w)["message"] != "Gmail credentials not found" {
		t.Fatalf("code = %d body = %s", w.Code, w.Body)
	}

	failed := newFixture(t, fakeChecker{err: &credential.Error{Kind: credential.KindExchangeFailed, Message: "Failed to refresh access token. Response: invalid_grant"}})
	w = failed.do(t, http.MethodGet, "/api/email/test-credentials", rbac.RoleSuperAdmin, "", nil)
	body := decode(t, w)
	if body["message"] != "Credential test failed" || !strings.Contains(body["error"].(string), "invalid_grant") {
		t.Fatalf("body = %s", w.Body)
	}
}

func TestSentEmails(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	w := f.do(t, http.MethodGet, "/api/email/sent", rbac.RoleViewer, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	emails, _ := decode(t, w)["emails"].([]any)
	if len(emails) != 1 {
		t.Fatalf("emails = %v", emails)
	}
}

func TestParseJWT(t *testing.T) {
	tok, err := GenerateJWT(7, rbac.RoleAdmin, testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseJWT(tok, testSecret)
	if err != nil || claims.UserID != 7 || claims.Role != rbac.RoleAdmin {
		t.Fatalf("claims = %+v err = %v", claims, err)
	}
	if _, err := ParseJWT(tok, "other-secret"); err == nil {
		t.Fatalf("wrong secret accepted")
	}
	expired, _ := GenerateJWT(7, rbac.RoleAdmin, testSecret, -time.Minute)
	if _, err := ParseJWT(expired, testSecret); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", bytes.NewReader(nil))
	r.Header.Set("Authorization", "Bearer abc")
	if ExtractToken(r) != "abc" {
		t.Fatalf("token not extracted")
	}
	r.Header.Set("Authorization", "Basic abc")
	if ExtractToken(r) != "" {
		t.Fatalf("non-bearer accepted")
	}
}

func TestUploadImagesRejectsUndecodableBatch(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	w := f.do(t, http.MethodPost, "/api/upload/images", rbac.RoleAdmin, `{"images":["AAAA","/etc/hosts.txt"]}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d body = %s", w.Code, w.Body)
	}
	if msg := decode(t, w)["message"]; msg != "Image 2: data must be a base64 data URI or base64 string" {
		t.Fatalf("message = %v", msg)
	}
	if f.uploader.payloads != nil {
		t.Fatalf("batch reached the uploader: %v", f.uploader.payloads)
	}
}
