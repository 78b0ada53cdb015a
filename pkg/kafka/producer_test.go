package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// librdkafka connects lazily, so producers can be created and closed without
// a broker.
func newTestProducer(t *testing.T, ctx context.Context, logs bool) *Producer {
	t.Helper()
	cfg := ProducerConfig{BootstrapServers: "localhost:9092", ClientID: "test", Acks: "all", EnableLogs: logs}
	p, err := NewProducer(ctx, cfg.ConfigMap(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return p
}

func TestNewProducer_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewProducer(t.Context(), &kafka.ConfigMap{"no.such.property": 1}, nil)
	require.ErrorContains(t, err, "failed to create kafka producer")
}

func TestProducer_CloseIdempotent(t *testing.T) {
	t.Parallel()

	p := newTestProducer(t, t.Context(), true)
	p.Close(time.Second)
	p.Close(time.Second)

	_, ok := <-p.Errors()
	assert.False(t, ok, "error channel should be closed after Close()")
}

func TestProducer_ErrorChannelBuffered(t *testing.T) {
	t.Parallel()

	p := newTestProducer(t, t.Context(), false)
	defer p.Close(time.Second)
	assert.Equal(t, 1, cap(p.Errors()))
}

func TestProducer_ProduceCanceled(t *testing.T) {
	t.Parallel()

	p := newTestProducer(t, t.Context(), false)
	defer p.Close(0)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := p.Produce(ctx, Msg{Topic: "records", Key: []byte("k"), Value: []byte("v")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProducer_ContextCancelStopsGoroutines(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	p := newTestProducer(t, ctx, true)
	cancel()

	select {
	case <-p.eventsDone:
	case <-time.After(5 * time.Second):
		t.Fatal("event monitor did not stop")
	}
	<-p.logsDone
	p.Close(time.Second)
}
