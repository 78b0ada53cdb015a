package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ava-labs/record-indexer/pkg/types"
)

// Header keys attached to every record message.
const (
	HeaderAuthor    = "author"
	HeaderTimestamp = "timestamp"
)

// MessageProducer is the subset of Producer used by RecordPublisher.
type MessageProducer interface {
	Produce(ctx context.Context, msg Msg) error
}

// RecordPublisher publishes records one message each, keyed by transaction
// hash so that redeliveries of the same record land on the same partition.
type RecordPublisher struct {
	producer MessageProducer
	topic    string
	log      *zap.SugaredLogger
}

func NewRecordPublisher(producer MessageProducer, topic string, log *zap.SugaredLogger) *RecordPublisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RecordPublisher{producer: producer, topic: topic, log: log}
}

// Publish produces records in order and stops at the first failure.
func (p *RecordPublisher) Publish(ctx context.Context, records []types.Record) error {
	for _, r := range records {
		value, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", r.TransactionHash, err)
		}
		msg := Msg{
			Topic: p.topic,
			Key:   []byte(r.TransactionHash),
			Value: value,
			Headers: map[string]string{
				HeaderAuthor:    r.Author,
				HeaderTimestamp: strconv.FormatInt(r.Timestamp, 10),
			},
		}
		if err := p.producer.Produce(ctx, msg); err != nil {
			return fmt.Errorf("produce record %s: %w", r.TransactionHash, err)
		}
	}
	if len(records) > 0 {
		p.log.Infow("published records", "topic", p.topic, "count", len(records))
	}
	return nil
}
