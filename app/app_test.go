package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/revmgmt/config"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeServer struct {
	startErr error
	stopped  chan struct{}
}

func (s *fakeServer) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-ctx.Done()
	close(s.stopped)
	return nil
}

func (s *fakeServer) Stop(context.Context) error { return nil }

func TestRunContextOrdersShutdown(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	srv := &fakeServer{stopped: make(chan struct{})}
	a := New("test", discard(),
		WithServer(srv),
		WithHook(Hook{
			Name:    "producer",
			OnStart: func(context.Context) error { record("start"); return nil },
			OnStop:  func(context.Context) error { record("stop"); return nil },
		}),
		WithCleanup(func() { record("cleanup-1") }),
		WithCleanup(func() { record("cleanup-2") }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunContext(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunContext: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}

	want := []string{"start", "stop", "cleanup-2", "cleanup-1"}
	if !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestRunContextServerFailure(t *testing.T) {
	boom := errors.New("listen failed")
	a := New("test", discard(), WithServer(&fakeServer{startErr: boom}))

	done := make(chan error, 1)
	go func() { done <- a.RunContext(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop after server failure")
	}
}

func TestLifecycleRollsBackOnStartFailure(t *testing.T) {
	lc := NewLifecycle(discard())
	var stopped []string
	lc.Append(Hook{Name: "a", OnStart: func(context.Context) error { return nil }, OnStop: func(context.Context) error { stopped = append(stopped, "a"); return nil }})
	lc.Append(Hook{Name: "b", OnStart: func(context.Context) error { return errors.New("fail") }, OnStop: func(context.Context) error { stopped = append(stopped, "b"); return nil }})

	if err := lc.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if !slices.Equal(stopped, []string{"a"}) {
		t.Errorf("stopped = %v", stopped)
	}
}

func TestBuilderWiresRoutesAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Server.Name = "revmgmt"
	cfg.Server.HTTP.Port = 18080
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"

	var engine *gin.Engine
	a, err := NewBuilder("revmgmt").
		WithConfig(cfg).
		WithLogOutput(io.Discard).
		WithService(func(c *Components) (any, func(), error) {
			if c.Metrics == nil || c.Health == nil || c.Lifecycle == nil {
				t.Errorf("components not populated: %+v", c)
			}
			return "svc", func() {}, nil
		}).
		WithGin(func(e *gin.Engine, svc any) {
			engine = e
			e.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, svc.(string)) })
		}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a == nil || engine == nil {
		t.Fatal("app or engine missing")
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK || w.Body.String() != "svc" {
		t.Errorf("ping = %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Errorf("request id middleware not installed")
	}

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Errorf("metrics = %d", w.Code)
	}
}

func TestBuilderRequiresConfig(t *testing.T) {
	if _, err := NewBuilder("x").Build(); err == nil {
		t.Error("expected error without config")
	}
}
