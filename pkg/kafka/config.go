package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// DefaultFlushTimeout bounds how long Close waits for in-flight deliveries.
const DefaultFlushTimeout = 15 * time.Second

// ProducerConfig holds the configuration for the record producer.
type ProducerConfig struct {
	BootstrapServers  string        `env:"KAFKA_BOOTSTRAP_SERVERS"   envDefault:"localhost:9092"` // Kafka broker addresses
	Topic             string        `env:"KAFKA_TOPIC"               envDefault:"records"`        // Topic new records are published to
	ClientID          string        `env:"KAFKA_CLIENT_ID"           envDefault:"record-indexer"`
	Acks              string        `env:"KAFKA_ACKS"                envDefault:"all"`
	EnableIdempotence bool          `env:"KAFKA_ENABLE_IDEMPOTENCE"  envDefault:"true"`
	FlushTimeout      time.Duration `env:"KAFKA_FLUSH_TIMEOUT"       envDefault:"15s"`
	EnableLogs        bool          `env:"KAFKA_ENABLE_LOGS"         envDefault:"false"` // Enable librdkafka client logs
}

// LoadProducerConfig loads the producer configuration from environment variables.
func LoadProducerConfig() (ProducerConfig, error) {
	var cfg ProducerConfig
	if err := env.Parse(&cfg); err != nil {
		return ProducerConfig{}, fmt.Errorf("failed to parse producer config: %w", err)
	}
	return cfg, nil
}

// Validate reports missing required settings.
func (c ProducerConfig) Validate() error {
	if c.BootstrapServers == "" {
		return errors.New("kafka bootstrap servers are required")
	}
	if c.Topic == "" {
		return errors.New("kafka topic is required")
	}
	return nil
}

// ConfigMap renders the librdkafka settings for c.
func (c ProducerConfig) ConfigMap() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":      c.BootstrapServers,
		"client.id":              c.ClientID,
		"acks":                   c.Acks,
		"enable.idempotence":     c.EnableIdempotence,
		"go.logs.channel.enable": c.EnableLogs,
	}
}
