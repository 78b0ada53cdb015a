package clickhouse

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the connection settings for the snapshot store.
// MaxBlockSize is the recommended maximum number of rows in a single block.
// see here: https://clickhouse.com/docs/operations/settings/settings
type Config struct {
	Hosts              []string `env:"CLICKHOUSE_HOSTS"                envSeparator:"," envDefault:"localhost:9000"`
	Database           string   `env:"CLICKHOUSE_DATABASE"             envDefault:"default"`
	Username           string   `env:"CLICKHOUSE_USERNAME"             envDefault:"default"`
	Password           string   `env:"CLICKHOUSE_PASSWORD"             envDefault:""`
	Cluster            string   `env:"CLICKHOUSE_CLUSTER"              envDefault:""`
	SnapshotTable      string   `env:"CLICKHOUSE_SNAPSHOT_TABLE"       envDefault:"record_snapshots"`
	Debug              bool     `env:"CLICKHOUSE_DEBUG"                envDefault:"false"`
	TLS                bool     `env:"CLICKHOUSE_TLS"                  envDefault:"false"`
	InsecureSkipVerify bool     `env:"CLICKHOUSE_INSECURE_SKIP_VERIFY" envDefault:"false"`
	MaxExecutionTime   int      `env:"CLICKHOUSE_MAX_EXECUTION_TIME"   envDefault:"60"` // seconds
	DialTimeout        int      `env:"CLICKHOUSE_DIAL_TIMEOUT"         envDefault:"30"` // seconds
	MaxOpenConns       int      `env:"CLICKHOUSE_MAX_OPEN_CONNS"       envDefault:"2"`
	MaxIdleConns       int      `env:"CLICKHOUSE_MAX_IDLE_CONNS"       envDefault:"2"`
	ConnMaxLifetime    int      `env:"CLICKHOUSE_CONN_MAX_LIFETIME"    envDefault:"10"` // minutes
	MaxBlockSize       int      `env:"CLICKHOUSE_MAX_BLOCK_SIZE"       envDefault:"1000"`
	ClientName         string   `env:"CLICKHOUSE_CLIENT_NAME"          envDefault:"record-indexer"`
	ClientVersion      string   `env:"CLICKHOUSE_CLIENT_VERSION"       envDefault:"1.0"`
}

// LoadConfig reads the configuration from CLICKHOUSE_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse clickhouse config: %w", err)
	}
	return cfg, nil
}
