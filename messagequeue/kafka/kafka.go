// Package kafka 提供座位控制结果下发所用的 Kafka 生产者，集成链路透传、死信队列与熔断保护。
package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wyfcoding/revmgmt/breaker"
	"github.com/wyfcoding/revmgmt/config"
	"github.com/wyfcoding/revmgmt/metrics"
	"github.com/wyfcoding/revmgmt/retry"
	"github.com/wyfcoding/revmgmt/tracing"
	"github.com/wyfcoding/revmgmt/xerrors"
)

const tracerName = "github.com/wyfcoding/revmgmt/messagequeue/kafka"

// messageWriter 抽象 kafka-go Writer，便于测试替换。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer 向控制结果 topic 写消息，失败时转写死信队列。
type Producer struct {
	writer    messageWriter
	dlqWriter messageWriter
	topic     string
	breaker   *breaker.Breaker
	dlqRetry  retry.Policy
	logger    *slog.Logger

	produced *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewProducer 按配置创建生产者，DLQTopic 为空时使用 "<topic>.dlq"。
func NewProducer(cfg config.KafkaConfig, m *metrics.Metrics, logger *slog.Logger) *Producer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	dlqTopic := cfg.DLQTopic
	if dlqTopic == "" {
		dlqTopic = cfg.Topic + ".dlq"
	}

	transport := &kafkago.Transport{DialTimeout: cfg.DialTimeout}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		RequiredAcks: requiredAcks(cfg.RequiredAcks),
		Async:        cfg.Async,
		Transport:    transport,
	}
	dlq := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        dlqTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Transport:    transport,
	}

	b := breaker.NewBreaker(breaker.Settings{Name: "kafka:" + cfg.Topic, Config: cfg.Breaker}, m)
	return newProducer(w, dlq, cfg.Topic, b, m, logger)
}

func newProducer(w, dlq messageWriter, topic string, b *breaker.Breaker, m *metrics.Metrics, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Producer{
		writer:    w,
		dlqWriter: dlq,
		topic:     topic,
		breaker:   b,
		dlqRetry:  retry.DefaultPolicy(),
		logger:    logger.With("module", "kafka_producer", "topic", topic),
	}
	if m != nil {
		p.produced = m.NewCounterVec(prometheus.CounterOpts{
			Name: "mq_produced_total",
			Help: "Total number of produced messages",
		}, []string{"topic", "status"})
		p.duration = m.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mq_operation_duration_seconds",
			Help:    "Kafka operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic", "operation"})
	}
	return p
}

func requiredAcks(n int) kafkago.RequiredAcks {
	switch n {
	case 0:
		return kafkago.RequireAll
	case 1:
		return kafkago.RequireOne
	default:
		if n < 0 {
			return kafkago.RequireAll
		}
		return kafkago.RequiredAcks(n)
	}
}

// Topic 返回目标 topic。
func (p *Producer) Topic() string {
	return p.topic
}

// Publish 写一条消息，并把当前链路上下文注入消息头。
// 写入失败时按退避策略转写死信队列，返回 ErrPublishUnavailable 副本。
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Kafka.Publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	carrier := tracing.InjectContext(ctx)
	headers := make([]kafkago.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}

	msg := kafkago.Message{
		Key:     key,
		Value:   value,
		Headers: headers,
		Time:    start,
	}

	err := p.breaker.Execute(func() error {
		return p.writer.WriteMessages(ctx, msg)
	})
	p.observe("publish", start)

	if err != nil {
		p.count("failed")
		span.SetStatus(codes.Error, err.Error())
		p.logger.ErrorContext(ctx, "failed to publish message", "error", err)
		dlqErr := retry.Do(ctx, p.dlqRetry, func(ctx context.Context) error {
			return p.dlqWriter.WriteMessages(ctx, msg)
		})
		if dlqErr != nil {
			p.logger.ErrorContext(ctx, "failed to write to DLQ", "error", dlqErr)
		} else {
			p.count("dlq")
		}
		return xerrors.ErrPublishUnavailable.Clone().WithCause(err)
	}

	p.count("success")
	return nil
}

func (p *Producer) count(status string) {
	if p.produced != nil {
		p.produced.WithLabelValues(p.topic, status).Inc()
	}
}

func (p *Producer) observe(op string, start time.Time) {
	if p.duration != nil {
		p.duration.WithLabelValues(p.topic, op).Observe(time.Since(start).Seconds())
	}
}

// Close 关闭主写入器与死信写入器，返回最后一个错误。
func (p *Producer) Close() error {
	var err error
	if dlqErr := p.dlqWriter.Close(); dlqErr != nil {
		p.logger.Error("failed to close DLQ writer", "error", dlqErr)
		err = dlqErr
	}
	if wErr := p.writer.Close(); wErr != nil {
		p.logger.Error("failed to close writer", "error", wErr)
		err = wErr
	}
	return err
}
