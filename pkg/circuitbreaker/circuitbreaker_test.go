package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func ok() error   { return nil }

func TestOpensAfterThreshold(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := newWithClock(Config{FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute, HalfOpenMaxRequests: 1}, clk.now)

	for i := 0; i < 3; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s, want open", cb.GetState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("expected open error, got %v", err)
	}
	if called {
		t.Fatalf("fn must not run while open")
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := newWithClock(Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Second, HalfOpenMaxRequests: 2}, clk.now)

	_ = cb.Execute(fail)
	if cb.GetState() != StateOpen {
		t.Fatalf("want open")
	}
	clk.advance(10 * time.Second)
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("state = %s, want half-open", cb.GetState())
	}
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("probe 1: %v", err)
	}
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("probe 2: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("state = %s, want closed", cb.GetState())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := newWithClock(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second, HalfOpenMaxRequests: 1}, clk.now)

	_ = cb.Execute(fail)
	clk.advance(time.Second)
	_ = cb.Execute(fail)
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s, want open", cb.GetState())
	}
	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Fatalf("reset should close the breaker")
	}
}
