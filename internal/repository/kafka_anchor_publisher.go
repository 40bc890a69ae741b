package repository

import (
	"context"
	"strconv"

	"SVUEngine/internal/domain/models"
	"SVUEngine/internal/domain/repository"
	pkgkafka "SVUEngine/pkg/kafka"
)

// KafkaAnchorPublisher implements AnchorPublisher for Kafka. Keys are the
// item id, so per-item ordering is preserved across partitions.
type KafkaAnchorPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAnchorPublisher creates a Kafka anchor publisher.
func NewKafkaAnchorPublisher(producer *pkgkafka.Producer, topic string) repository.AnchorPublisher {
	return &KafkaAnchorPublisher{producer: producer, topic: topic}
}

func (p *KafkaAnchorPublisher) Publish(ctx context.Context, a *models.Anchor) error {
	return p.producer.Publish(ctx, p.topic, anchorKey(a), anchorPayload(a))
}

func (p *KafkaAnchorPublisher) PublishBatch(ctx context.Context, anchors []models.Anchor) error {
	if len(anchors) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(anchors))
	for i := range anchors {
		msgs[i] = pkgkafka.Message{
			Key:   anchorKey(&anchors[i]),
			Value: anchorPayload(&anchors[i]),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaAnchorPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func anchorKey(a *models.Anchor) []byte {
	return []byte(strconv.FormatInt(a.ItemID, 10))
}

func anchorPayload(a *models.Anchor) map[string]interface{} {
	return map[string]interface{}{
		"item_id":   a.ItemID,
		"bucket":    a.Bucket.UTC().Unix(),
		"value":     a.Value,
		"residual":  a.Residual,
		"solved_at": a.SolvedAt.UTC().Unix(),
	}
}
