package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ava-labs/libevm/common"
	"github.com/urfave/cli/v2"

	"github.com/ava-labs/record-indexer/internal/chainclient"
	"github.com/ava-labs/record-indexer/internal/chainclient/evm"
	"github.com/ava-labs/record-indexer/pkg/backscan"
	"github.com/ava-labs/record-indexer/pkg/clickhouse"
	"github.com/ava-labs/record-indexer/pkg/kafka"
	"github.com/ava-labs/record-indexer/pkg/metrics"
)

// Snapshot backends.
const (
	storeFile       = "file"
	storeBolt       = "bolt"
	storeClickHouse = "clickhouse"
)

// History output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
)

// SourceConfig holds the RPC, retry and metrics settings shared by commands
// that read the chain.
type SourceConfig struct {
	Verbose      bool
	RPCURL       string
	ClientType   string
	Contract     string
	ABIFile      string
	EventName    string
	ScanStep     uint64
	RetryBackoff time.Duration
	MaxRetries   int

	MetricsHost   string
	MetricsPort   int
	ChainID       uint64
	Environment   string
	Region        string
	CloudProvider string
}

// MetricsAddr returns the formatted metrics address
func (c *SourceConfig) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// MetricsLabels returns the constant labels applied to every metric.
func (c *SourceConfig) MetricsLabels() metrics.Labels {
	return metrics.Labels{
		EVMChainID:    c.ChainID,
		Contract:      strings.ToLower(c.Contract),
		Environment:   c.Environment,
		Region:        c.Region,
		CloudProvider: c.CloudProvider,
	}
}

// RetryPolicy returns the retry policy for RPC requests.
func (c *SourceConfig) RetryPolicy() chainclient.RetryPolicy {
	return chainclient.RetryPolicy{Backoff: c.RetryBackoff, MaxAttempts: c.MaxRetries}
}

// EVMConfig builds the RPC client configuration, reading the ABI file if set.
func (c *SourceConfig) EVMConfig() (evm.Config, error) {
	cfg := evm.Config{
		ClientType: c.ClientType,
		URL:        c.RPCURL,
		Contract:   c.Contract,
		EventName:  c.EventName,
	}
	if c.ABIFile != "" {
		data, err := os.ReadFile(c.ABIFile)
		if err != nil {
			return evm.Config{}, fmt.Errorf("failed to read ABI file: %w", err)
		}
		cfg.ABI = data
	}
	return cfg, nil
}

// StoreConfig selects the snapshot backend.
type StoreConfig struct {
	Backend    string
	Path       string
	Name       string
	ClickHouse clickhouse.Config
}

// SnapshotConfig holds all configuration for the snapshot command.
type SnapshotConfig struct {
	Source      SourceConfig
	Store       StoreConfig
	Kafka       kafka.ProducerConfig
	Publish     bool
	Mode        backscan.Mode
	Records     int
	FullHistory bool
	Floor       uint64
	Cutoff      uint64
	Interval    time.Duration // 0 runs once
}

// SyncConfig converts the command settings into syncer parameters. Full
// history lifts the size limit.
func (c *SnapshotConfig) SyncConfig() backscan.Config {
	limit := c.Records
	if c.FullHistory {
		limit = 0
	}
	return backscan.Config{
		Mode:   c.Mode,
		Limit:  limit,
		Step:   c.Source.ScanStep,
		Floor:  c.Floor,
		Cutoff: c.Cutoff,
	}
}

// HistoryConfig holds all configuration for the history command.
type HistoryConfig struct {
	Source SourceConfig
	Range  backscan.HistoryRange
	Format string
}

func buildSourceConfig(c *cli.Context) (SourceConfig, error) {
	cfg := SourceConfig{
		Verbose:       c.Bool("verbose"),
		RPCURL:        c.String("rpc-url"),
		ClientType:    c.String("client-type"),
		Contract:      c.String("contract"),
		ABIFile:       c.String("abi-file"),
		EventName:     c.String("event-name"),
		ScanStep:      c.Uint64("scan-step"),
		RetryBackoff:  c.Duration("retry-backoff"),
		MaxRetries:    c.Int("max-retries"),
		MetricsHost:   c.String("metrics-host"),
		MetricsPort:   c.Int("metrics-port"),
		ChainID:       c.Uint64("chain-id"),
		Environment:   c.String("environment"),
		Region:        c.String("region"),
		CloudProvider: c.String("cloud-provider"),
	}

	if cfg.RPCURL == "" {
		return cfg, errors.New("rpc-url is required")
	}
	switch cfg.ClientType {
	case evm.ClientTypeCoreth, evm.ClientTypeSubnetEVM:
	default:
		return cfg, fmt.Errorf("client-type must be %q or %q, got %q", evm.ClientTypeCoreth, evm.ClientTypeSubnetEVM, cfg.ClientType)
	}
	if !common.IsHexAddress(cfg.Contract) {
		return cfg, fmt.Errorf("contract %q is not a valid address", cfg.Contract)
	}
	if cfg.ScanStep == 0 {
		return cfg, errors.New("scan-step must be positive")
	}
	if cfg.RetryBackoff < 0 {
		return cfg, errors.New("retry-backoff must not be negative")
	}
	if cfg.MaxRetries < 0 {
		return cfg, errors.New("max-retries must not be negative")
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return cfg, fmt.Errorf("metrics-port must be between 0 and 65535, got %d", cfg.MetricsPort)
	}
	return cfg, nil
}

func buildStoreConfig(c *cli.Context) (StoreConfig, error) {
	cfg := StoreConfig{
		Backend: c.String("store"),
		Path:    c.String("output"),
		Name:    c.String("snapshot-name"),
	}

	switch cfg.Backend {
	case storeFile, storeBolt:
		if cfg.Path == "" {
			return cfg, fmt.Errorf("output is required for the %s store", cfg.Backend)
		}
	case storeClickHouse:
		chCfg, err := buildClickHouseConfig(c)
		if err != nil {
			return cfg, err
		}
		cfg.ClickHouse = chCfg
	default:
		return cfg, fmt.Errorf("store must be one of %s, %s, %s; got %q", storeFile, storeBolt, storeClickHouse, cfg.Backend)
	}
	if cfg.Backend != storeFile && cfg.Name == "" {
		return cfg, fmt.Errorf("snapshot-name is required for the %s store", cfg.Backend)
	}
	return cfg, nil
}

// buildClickHouseConfig starts from the CLICKHOUSE_* environment and applies
// the flags that were set explicitly.
func buildClickHouseConfig(c *cli.Context) (clickhouse.Config, error) {
	cfg, err := clickhouse.LoadConfig()
	if err != nil {
		return cfg, err
	}
	if c.IsSet("clickhouse-hosts") {
		cfg.Hosts = splitHosts(c.StringSlice("clickhouse-hosts"))
	}
	if c.IsSet("clickhouse-database") {
		cfg.Database = c.String("clickhouse-database")
	}
	if c.IsSet("clickhouse-cluster") {
		cfg.Cluster = c.String("clickhouse-cluster")
	}
	if c.IsSet("clickhouse-table") {
		cfg.SnapshotTable = c.String("clickhouse-table")
	}
	if len(cfg.Hosts) == 0 {
		return cfg, errors.New("at least one clickhouse host is required")
	}
	if cfg.SnapshotTable == "" {
		return cfg, errors.New("clickhouse-table is required")
	}
	return cfg, nil
}

// splitHosts accepts both repeated flags and a single comma-separated value.
func splitHosts(hosts []string) []string {
	var out []string
	for _, h := range hosts {
		for _, part := range strings.Split(h, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func buildKafkaConfig(c *cli.Context) (kafka.ProducerConfig, bool, error) {
	if c.String("kafka-bootstrap-servers") == "" {
		return kafka.ProducerConfig{}, false, nil
	}
	cfg, err := kafka.LoadProducerConfig()
	if err != nil {
		return cfg, false, err
	}
	cfg.BootstrapServers = c.String("kafka-bootstrap-servers")
	cfg.Topic = c.String("kafka-topic")
	cfg.EnableLogs = c.Bool("enable-kafka-logs")
	cfg.FlushTimeout = c.Duration("kafka-flush-timeout")
	if err := cfg.Validate(); err != nil {
		return cfg, false, err
	}
	return cfg, true, nil
}

// buildSnapshotConfig builds a SnapshotConfig from CLI context flags
func buildSnapshotConfig(c *cli.Context) (*SnapshotConfig, error) {
	source, err := buildSourceConfig(c)
	if err != nil {
		return nil, err
	}
	store, err := buildStoreConfig(c)
	if err != nil {
		return nil, err
	}
	kafkaCfg, publish, err := buildKafkaConfig(c)
	if err != nil {
		return nil, fmt.Errorf("failed to build Kafka config: %w", err)
	}
	mode, err := backscan.ParseMode(c.String("mode"))
	if err != nil {
		return nil, err
	}

	cfg := &SnapshotConfig{
		Source:      source,
		Store:       store,
		Kafka:       kafkaCfg,
		Publish:     publish,
		Mode:        mode,
		Records:     c.Int("records"),
		FullHistory: c.Bool("full-history"),
		Floor:       c.Uint64("floor"),
		Cutoff:      c.Uint64("cutoff"),
		Interval:    c.Duration("interval"),
	}
	if !cfg.FullHistory && cfg.Records < 1 {
		return nil, fmt.Errorf("records must be at least 1, got %d", cfg.Records)
	}
	if cfg.Interval < 0 {
		return nil, errors.New("interval must not be negative")
	}
	return cfg, nil
}

// buildHistoryConfig builds a HistoryConfig from CLI context flags
func buildHistoryConfig(c *cli.Context) (*HistoryConfig, error) {
	source, err := buildSourceConfig(c)
	if err != nil {
		return nil, err
	}

	cfg := &HistoryConfig{Source: source, Format: c.String("format")}
	switch cfg.Format {
	case formatTable, formatJSON:
	default:
		return nil, fmt.Errorf("format must be %q or %q, got %q", formatTable, formatJSON, cfg.Format)
	}

	if c.IsSet("from-block") {
		cfg.Range = backscan.HistoryRange{FromBlock: c.Uint64("from-block")}
	} else {
		window := c.Uint64("window")
		if window == 0 {
			return nil, errors.New("window must be positive")
		}
		cfg.Range = backscan.HistoryRange{Window: window}
	}
	return cfg, nil
}
