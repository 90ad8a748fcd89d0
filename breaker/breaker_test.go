package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wyfcoding/revmgmt/config"
	"github.com/wyfcoding/revmgmt/xerrors"
)

func TestBreakerDisabledPassesThrough(t *testing.T) {
	b := NewBreaker(Settings{Name: "off"}, nil)
	want := errors.New("boom")
	for range 10 {
		if err := b.Execute(func() error { return want }); !errors.Is(err, want) {
			t.Fatalf("err = %v", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("disabled breaker should stay closed")
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	b := NewBreaker(Settings{
		Name: "kafka",
		Config: config.CircuitBreakerConfig{
			Enabled:      true,
			Timeout:      time.Minute,
			FailureRatio: 0.5,
			MinRequests:  3,
		},
	}, nil)

	fail := errors.New("broker down")
	for range 3 {
		_ = b.Execute(func() error { return fail })
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s", b.State())
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if called {
		t.Errorf("open breaker must not call fn")
	}
	if !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v", err)
	}
	if xe, ok := xerrors.FromError(err); !ok || xe.Type != xerrors.ErrUnavailable {
		t.Errorf("open error should be Unavailable, got %v", err)
	}
}
