package usecase

import (
	"context"
	"encoding/json"
	"time"

	"SVUEngine/internal/domain/models"
	domrepo "SVUEngine/internal/domain/repository"
	mid "SVUEngine/internal/middleware"
	pkgkafka "SVUEngine/pkg/kafka"
)

// KafkaObservationsHandler consumes raw observation messages and lands them
// in the staging buffer through the ingest chain.
type KafkaObservationsHandler struct {
	topic   string
	proc    mid.Proc
	metrics domrepo.Metrics
}

func NewKafkaObservationsHandler(topic string, proc mid.Proc, metrics domrepo.Metrics) *KafkaObservationsHandler {
	return &KafkaObservationsHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaObservationsHandler) Topic() string { return h.topic }

// incoming message schema: {item_id, source_id, domain, quote_item_id, ts, value, unit}
func (h *KafkaObservationsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ItemID      int64   `json:"item_id"`
		SourceID    string  `json:"source_id"`
		Domain      string  `json:"domain"`
		QuoteItemID int64   `json:"quote_item_id"`
		TS          int64   `json:"ts"`
		Value       float64 `json:"value"`
		Unit        string  `json:"unit"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.TS > 1e11 { // ms
		m.TS = m.TS / 1000
	}

	o := &models.Observation{
		ItemID:      m.ItemID,
		SourceID:    m.SourceID,
		QuoteItemID: m.QuoteItemID,
		Domain:      models.Domain(m.Domain),
		Timestamp:   time.Unix(m.TS, 0).UTC(),
		Value:       m.Value,
		Unit:        m.Unit,
	}
	if err := h.proc.Process(ctx, o); err != nil {
		h.metrics.RecordError("consumer_ingest")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaObservationsHandler)(nil)
