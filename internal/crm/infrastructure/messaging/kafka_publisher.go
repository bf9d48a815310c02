// Package messaging 提供领域事件发布者实现
package messaging

import (
	"context"

	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/pkg/logger"
)

// MessageSender Kafka 生产者能力，由 mq.KafkaProducer 实现
type MessageSender interface {
	SendMessage(ctx context.Context, topic string, key string, value any) error
}

// kafkaPublisher 通过 Kafka 发布领域事件
type kafkaPublisher struct {
	producer MessageSender
}

// NewKafkaPublisher 创建 Kafka 事件发布者
func NewKafkaPublisher(producer MessageSender) domain.EventPublisher {
	return &kafkaPublisher{producer: producer}
}

// Publish 实现 domain.EventPublisher.Publish
func (p *kafkaPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	return p.producer.SendMessage(ctx, topic, key, event)
}

// logPublisher 仅记录日志，未配置 Kafka 时使用
type logPublisher struct{}

// NewLogPublisher 创建日志事件发布者
func NewLogPublisher() domain.EventPublisher {
	return logPublisher{}
}

// Publish 实现 domain.EventPublisher.Publish
func (logPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	logger.Debug(ctx, "Domain event", "topic", topic, "key", key, "event", event)
	return nil
}
