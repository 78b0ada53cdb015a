package main

import (
	"github.com/urfave/cli/v2"

	"github.com/ava-labs/record-indexer/internal/chainclient"
	"github.com/ava-labs/record-indexer/internal/chainclient/evm"
	"github.com/ava-labs/record-indexer/pkg/backscan"
	"github.com/ava-labs/record-indexer/pkg/kafka"
)

const (
	defaultRPCURL       = "https://arb1.arbitrum.io/rpc"
	defaultContract     = "0xC415e346Ebb297Cf849E2323702C97E6DC01bee7"
	defaultSnapshotPath = "history_snapshot.json"
	defaultSnapshotName = "default"
)

func appFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "env-file",
			Usage:   "Load environment variables from this file before reading flags",
			EnvVars: []string{"ENV_FILE"},
		},
	}
}

// sourceFlags configure the RPC event source shared by snapshot and history.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "rpc-url",
			Aliases: []string{"r"},
			Usage:   "The JSON-RPC URL to read events from",
			EnvVars: []string{"RPC_URL"},
			Value:   defaultRPCURL,
		},
		&cli.StringFlag{
			Name:    "client-type",
			Usage:   "The RPC client flavor (coreth, subnet-evm)",
			EnvVars: []string{"CLIENT_TYPE"},
			Value:   evm.ClientTypeCoreth,
		},
		&cli.StringFlag{
			Name:    "contract",
			Aliases: []string{"c"},
			Usage:   "The address of the contract emitting Record events",
			EnvVars: []string{"CONTRACT_ADDRESS"},
			Value:   defaultContract,
		},
		&cli.StringFlag{
			Name:    "abi-file",
			Usage:   "Path to a JSON ABI declaring the event (embedded Record ABI if empty)",
			EnvVars: []string{"ABI_FILE"},
		},
		&cli.StringFlag{
			Name:    "event-name",
			Usage:   "The name of the event in the ABI",
			EnvVars: []string{"EVENT_NAME"},
			Value:   evm.DefaultEventName,
		},
		&cli.Uint64Flag{
			Name:    "scan-step",
			Aliases: []string{"s"},
			Usage:   "Number of blocks per range query",
			EnvVars: []string{"SCAN_STEP"},
			Value:   backscan.DefaultStep,
		},
		&cli.DurationFlag{
			Name:    "retry-backoff",
			Usage:   "Pause between attempts of a failed RPC request",
			EnvVars: []string{"RETRY_BACKOFF"},
			Value:   chainclient.DefaultRetryBackoff,
		},
		&cli.IntFlag{
			Name:    "max-retries",
			Usage:   "Maximum attempts per RPC request (0 retries until interrupted)",
			EnvVars: []string{"MAX_RETRIES"},
			Value:   0,
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Usage:   "Port for Prometheus metrics server (0 disables it)",
			EnvVars: []string{"METRICS_PORT"},
			Value:   0,
		},
		&cli.Uint64Flag{
			Name:    "chain-id",
			Usage:   "EVM chain ID, used as a metrics label",
			EnvVars: []string{"CHAIN_ID"},
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment for metrics labels (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Cloud region for metrics labels (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Usage:   "Cloud provider for metrics labels (e.g., 'aws', 'oci', 'gcp')",
			EnvVars: []string{"CLOUD_PROVIDER"},
		},
	}
}

// storeFlags select where the snapshot is persisted. ClickHouse connection
// settings beyond these are read from CLICKHOUSE_* variables.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			Usage:   "Snapshot backend (file, bolt, clickhouse)",
			EnvVars: []string{"SNAPSHOT_STORE"},
			Value:   storeFile,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Snapshot file path, or database path for the bolt store",
			EnvVars: []string{"SNAPSHOT_PATH"},
			Value:   defaultSnapshotPath,
		},
		&cli.StringFlag{
			Name:    "snapshot-name",
			Usage:   "Snapshot key in the bolt and clickhouse stores",
			EnvVars: []string{"SNAPSHOT_NAME"},
			Value:   defaultSnapshotName,
		},
		&cli.StringSliceFlag{
			Name:    "clickhouse-hosts",
			Usage:   "ClickHouse server hosts (comma-separated)",
			EnvVars: []string{"CLICKHOUSE_HOSTS"},
		},
		&cli.StringFlag{
			Name:    "clickhouse-database",
			Usage:   "ClickHouse database name",
			EnvVars: []string{"CLICKHOUSE_DATABASE"},
		},
		&cli.StringFlag{
			Name:    "clickhouse-cluster",
			Usage:   "ClickHouse cluster name for ON CLUSTER statements",
			EnvVars: []string{"CLICKHOUSE_CLUSTER"},
		},
		&cli.StringFlag{
			Name:    "clickhouse-table",
			Usage:   "ClickHouse table holding snapshots",
			EnvVars: []string{"CLICKHOUSE_SNAPSHOT_TABLE"},
		},
	}
}

func kafkaFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "kafka-bootstrap-servers",
			Usage:   "Kafka bootstrap servers; newly added records are published when set",
			EnvVars: []string{"KAFKA_BOOTSTRAP_SERVERS"},
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Usage:   "Kafka topic for newly added records",
			EnvVars: []string{"KAFKA_TOPIC"},
			Value:   "records",
		},
		&cli.BoolFlag{
			Name:    "enable-kafka-logs",
			Usage:   "Enable librdkafka client logs",
			EnvVars: []string{"KAFKA_ENABLE_LOGS"},
		},
		&cli.DurationFlag{
			Name:    "kafka-flush-timeout",
			Usage:   "How long to wait for in-flight Kafka deliveries on shutdown",
			EnvVars: []string{"KAFKA_FLUSH_TIMEOUT"},
			Value:   kafka.DefaultFlushTimeout,
		},
	}
}

func snapshotFlags() []cli.Flag {
	flags := append(sourceFlags(), storeFlags()...)
	flags = append(flags, kafkaFlags()...)
	return append(flags,
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   "How scanned records are merged: batch, capped or resume",
			EnvVars: []string{"SNAPSHOT_MODE"},
			Value:   string(backscan.ModeResume),
		},
		&cli.IntFlag{
			Name:    "records",
			Aliases: []string{"n"},
			Usage:   "Maximum number of records kept in the snapshot",
			EnvVars: []string{"SNAPSHOT_RECORDS"},
			Value:   backscan.DefaultLimit,
		},
		&cli.BoolFlag{
			Name:    "full-history",
			Usage:   "Keep every record and scan down to the floor block",
			EnvVars: []string{"FULL_HISTORY"},
		},
		&cli.Uint64Flag{
			Name:    "floor",
			Usage:   "Lowest block to scan",
			EnvVars: []string{"SCAN_FLOOR"},
		},
		&cli.Uint64Flag{
			Name:    "cutoff",
			Usage:   "Stop at blocks older than this unix timestamp (0 disables)",
			EnvVars: []string{"SCAN_CUTOFF"},
		},
		&cli.DurationFlag{
			Name:    "interval",
			Usage:   "Re-run the sync every interval until interrupted (0 runs once)",
			EnvVars: []string{"SNAPSHOT_INTERVAL"},
		},
	)
}

func historyFlags() []cli.Flag {
	return append(sourceFlags(),
		&cli.Uint64Flag{
			Name:    "window",
			Aliases: []string{"w"},
			Usage:   "Read the last N blocks (ignored when --from-block is set)",
			EnvVars: []string{"HISTORY_WINDOW"},
			Value:   backscan.DefaultWindow,
		},
		&cli.Uint64Flag{
			Name:    "from-block",
			Usage:   "Read every block from this height to the head",
			EnvVars: []string{"HISTORY_FROM_BLOCK"},
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: table or json",
			EnvVars: []string{"HISTORY_FORMAT"},
			Value:   formatTable,
		},
	)
}

func removeFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
		},
	}, storeFlags()...)
}
