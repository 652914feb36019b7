package util

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDedupKey(t *testing.T) {
	if got := DedupKey("email.send", "abc"); got != "dedup:email.send:abc" {
		t.Fatalf("key = %q", got)
	}
}

func TestDeduperFailsOpenWithoutRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	core, logs := observer.New(zap.WarnLevel)
	d := NewDeduper(rdb, time.Minute, zap.New(core))

	if !d.AcquireOnce(context.Background(), "email.send", "k1") {
		t.Fatalf("unreachable redis must not block requests")
	}
	if logs.FilterMessage("redis dedup check failed, allowing request").Len() != 1 {
		t.Fatalf("failure not logged")
	}
}
