package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/wyfcoding/revmgmt/breaker"
	"github.com/wyfcoding/revmgmt/config"
	"github.com/wyfcoding/revmgmt/metrics"
	"github.com/wyfcoding/revmgmt/retry"
	"github.com/wyfcoding/revmgmt/xerrors"
)

type fakeWriter struct {
	mu       sync.Mutex
	err      error
	failures int // 前 failures 次写入返回错误
	calls    int
	msgs     []kafkago.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	if w.calls <= w.failures {
		return errors.New("not enough replicas")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishInjectsTraceHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	w, dlq := &fakeWriter{}, &fakeWriter{}
	m := metrics.NewMetrics("test")
	p := newProducer(w, dlq, "controls", breaker.NewBreaker(breaker.Settings{}, nil), m, discardLogger())

	if err := p.Publish(context.Background(), []byte("LEG1"), []byte(`{}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	var hasTraceparent bool
	for _, h := range w.msgs[0].Headers {
		if h.Key == "traceparent" {
			hasTraceparent = true
		}
	}
	if !hasTraceparent {
		t.Errorf("traceparent header missing: %+v", w.msgs[0].Headers)
	}
	if got := testutil.ToFloat64(p.produced.WithLabelValues("controls", "success")); got != 1 {
		t.Errorf("success count = %v", got)
	}
}

func TestPublishFailureGoesToDLQ(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	dlq := &fakeWriter{}
	p := newProducer(w, dlq, "controls", nil, nil, discardLogger())

	err := p.Publish(context.Background(), []byte("LEG1"), []byte(`{}`))
	if !errors.Is(err, xerrors.ErrPublishUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if len(dlq.msgs) != 1 {
		t.Errorf("dlq messages = %d", len(dlq.msgs))
	}
}

func TestPublishRetriesDLQ(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	dlq := &fakeWriter{failures: 2}
	p := newProducer(w, dlq, "controls", nil, nil, discardLogger())
	p.dlqRetry = retry.Policy{Attempts: 3, Initial: time.Millisecond, Multiplier: 1}

	_ = p.Publish(context.Background(), []byte("LEG1"), []byte(`{}`))
	if dlq.calls != 3 || len(dlq.msgs) != 1 {
		t.Errorf("dlq calls = %d, messages = %d", dlq.calls, len(dlq.msgs))
	}
}

func TestPublishBreakerOpens(t *testing.T) {
	w := &fakeWriter{err: errors.New("down")}
	b := breaker.NewBreaker(breaker.Settings{
		Name: "kafka:controls",
		Config: config.CircuitBreakerConfig{
			Enabled:     true,
			Timeout:     time.Minute,
			MinRequests: 2,
		},
	}, nil)
	p := newProducer(w, &fakeWriter{}, "controls", b, nil, discardLogger())

	for range 2 {
		_ = p.Publish(context.Background(), nil, []byte(`{}`))
	}
	w.err = nil
	err := p.Publish(context.Background(), nil, []byte(`{}`))
	if !errors.Is(err, breaker.ErrOpen) {
		t.Errorf("expected open breaker in cause chain, got %v", err)
	}
	if len(w.msgs) != 0 {
		t.Errorf("writer should not be called while open")
	}
}

func TestClose(t *testing.T) {
	w, dlq := &fakeWriter{}, &fakeWriter{}
	p := newProducer(w, dlq, "controls", nil, nil, discardLogger())
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !w.closed || !dlq.closed {
		t.Errorf("writers not closed")
	}
}

func TestRequiredAcks(t *testing.T) {
	if requiredAcks(0) != kafkago.RequireAll || requiredAcks(1) != kafkago.RequireOne || requiredAcks(-1) != kafkago.RequireAll {
		t.Errorf("unexpected acks mapping")
	}
}
