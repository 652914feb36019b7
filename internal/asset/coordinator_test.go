package asset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

// scriptedUploader fails the payloads listed in fail and returns a URL
// derived from the payload otherwise.
type scriptedUploader struct {
	fail      map[string]error
	completed atomic.Int32
	mu        sync.Mutex
	deleted   []string
	folders   []string
}

func (s *scriptedUploader) Upload(ctx context.Context, payload, folder string) (string, error) {
	defer s.completed.Add(1)
	s.mu.Lock()
	s.folders = append(s.folders, folder)
	s.mu.Unlock()
	if err, ok := s.fail[payload]; ok {
		return "", err
	}
	return fmt.Sprintf("https://res.cloudinary.com/demo/image/upload/v1/%s/%s.jpg", folder, payload), nil
}

func (s *scriptedUploader) Delete(ctx context.Context, assetURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, assetURL)
	return true
}

func TestUploadManyPreservesOrder(t *testing.T) {
	u := &scriptedUploader{}
	c := NewCoordinator(u, "greyinsaat/projects", false, zap.NewNop())

	urls, err := c.UploadMany(context.Background(), []string{"a", "b", "c"}, "")
	if err != nil {
		t.Fatalf("upload many: %v", err)
	}
	for i, p := range []string{"a", "b", "c"} {
		want := "https://res.cloudinary.com/demo/image/upload/v1/greyinsaat/projects/" + p + ".jpg"
		if urls[i] != want {
			t.Fatalf("urls[%d] = %q, want %q", i, urls[i], want)
		}
	}
	for _, f := range u.folders {
		if f != "greyinsaat/projects" {
			t.Fatalf("folder = %q", f)
		}
	}
}

func TestUploadManyAllOrNothing(t *testing.T) {
	for k := 0; k < 4; k++ {
		t.Run(fmt.Sprintf("unit %d fails", k), func(t *testing.T) {
			payloads := []string{"p0", "p1", "p2", "p3"}
			cause := &UploadError{Kind: KindExhausted}
			u := &scriptedUploader{fail: map[string]error{payloads[k]: cause}}
			c := NewCoordinator(u, "greyinsaat/projects", false, zap.NewNop())

			urls, err := c.UploadMany(context.Background(), payloads, "")
			if urls != nil {
				t.Fatalf("partial result observable: %v", urls)
			}
			var be *BatchUploadError
			if !errors.As(err, &be) || be.Index != k {
				t.Fatalf("err = %v, want batch error at %d", err, k)
			}
			if err.Error() != "failed to upload images" {
				t.Fatalf("message = %q", err.Error())
			}
			if !errors.Is(err, ErrRetriesExhausted) {
				t.Fatalf("unit cause not reachable")
			}
			if got := u.completed.Load(); got != int32(len(payloads)) {
				t.Fatalf("completed = %d, every unit must run to completion", got)
			}
			if len(u.deleted) != 0 {
				t.Fatalf("compensation ran while disabled: %v", u.deleted)
			}
		})
	}
}

func TestUploadManyCompensates(t *testing.T) {
	u := &scriptedUploader{fail: map[string]error{"bad": errors.New("boom")}}
	c := NewCoordinator(u, "greyinsaat/projects", true, zap.NewNop())

	if _, err := c.UploadMany(context.Background(), []string{"ok1", "bad", "ok2"}, "f"); err == nil {
		t.Fatalf("expected failure")
	}
	if len(u.deleted) != 2 {
		t.Fatalf("deleted = %v, want the two successful uploads", u.deleted)
	}
}

func TestUploadManyEmpty(t *testing.T) {
	c := NewCoordinator(&scriptedUploader{}, "greyinsaat/projects", false, zap.NewNop())
	urls, err := c.UploadMany(context.Background(), nil, "")
	if err != nil || len(urls) != 0 {
		t.Fatalf("urls = %v, err = %v", urls, err)
	}
}

func TestCoordinatorOverClient(t *testing.T) {
	store := &fakeStore{}
	client, _ := newTestClient(store, &fakeResolver{}, zap.NewNop())
	c := NewCoordinator(client, "greyinsaat/projects", false, zap.NewNop())

	urls, err := c.UploadMany(context.Background(), []string{"AAAA", "data:image/png;base64,AQID"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 2 || store.calls != 2 {
		t.Fatalf("urls = %v, calls = %d", urls, store.calls)
	}
}
