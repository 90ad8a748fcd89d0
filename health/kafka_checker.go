package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

const defaultKafkaProbeTimeout = 2 * time.Second

type partitionReader interface {
	ReadPartitions(topics ...string) ([]kafkago.Partition, error)
	Close() error
}

type kafkaDialFunc func(ctx context.Context, addr string) (partitionReader, error)

// KafkaTopicChecker 依次尝试各 broker，确认控制结果 topic 存在且至少有一个分区.
func KafkaTopicChecker(brokers []string, topic string, timeout time.Duration) Checker {
	if timeout <= 0 {
		timeout = defaultKafkaProbeTimeout
	}
	dialer := &kafkago.Dialer{Timeout: timeout}
	return kafkaTopicChecker(brokers, topic, timeout, func(ctx context.Context, addr string) (partitionReader, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	})
}

func kafkaTopicChecker(brokers []string, topic string, timeout time.Duration, dial kafkaDialFunc) Checker {
	return func() error {
		if len(brokers) == 0 {
			return errors.New("no kafka brokers configured")
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var errs []error
		for _, addr := range brokers {
			conn, err := dial(ctx, addr)
			if err != nil {
				errs = append(errs, fmt.Errorf("dial %s: %w", addr, err))
				continue
			}
			partitions, err := conn.ReadPartitions(topic)
			_ = conn.Close()
			if err != nil {
				return fmt.Errorf("read partitions of %q: %w", topic, err)
			}
			if len(partitions) == 0 {
				return fmt.Errorf("topic %q has no partitions", topic)
			}
			return nil
		}
		return errors.Join(errs...)
	}
}
