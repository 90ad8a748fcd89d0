package inventory

import (
	"context"
	"encoding/json"

	"github.com/wyfcoding/revmgmt/messagequeue/kafka"
	"github.com/wyfcoding/revmgmt/xerrors"
)

// Publisher 下发座位控制结果。
type Publisher interface {
	Publish(ctx context.Context, controls *LegControls) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *LegControls) error { return nil }

// KafkaPublisher 以 JSON 编码控制结果，航段 ID 作为消息 key，保证同一航段有序。
type KafkaPublisher struct {
	producer *kafka.Producer
}

// NewKafkaPublisher 基于 Kafka 生产者创建 Publisher。
func NewKafkaPublisher(p *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: p}
}

// Publish 实现 Publisher 接口。
func (p *KafkaPublisher) Publish(ctx context.Context, controls *LegControls) error {
	value, err := json.Marshal(controls)
	if err != nil {
		return xerrors.WrapInternal(err, "encode leg controls")
	}
	key := controls.LegID
	if key == "" {
		key = controls.RunID
	}
	return p.producer.Publish(ctx, []byte(key), value)
}
