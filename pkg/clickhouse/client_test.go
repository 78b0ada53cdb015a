package clickhouse

import (
	"errors"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ava-labs/record-indexer/pkg/clickhouse/mocks"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"CLICKHOUSE_HOSTS", "CLICKHOUSE_DATABASE", "CLICKHOUSE_SNAPSHOT_TABLE", "CLICKHOUSE_TLS"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9000"}, cfg.Hosts)
	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, "record_snapshots", cfg.SnapshotTable)
	assert.False(t, cfg.TLS)
	assert.Equal(t, 60, cfg.MaxExecutionTime)
	assert.Equal(t, "record-indexer", cfg.ClientName)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOSTS", "ch1:9000,ch2:9000")
	t.Setenv("CLICKHOUSE_DATABASE", "records")
	t.Setenv("CLICKHOUSE_CLUSTER", "main")
	t.Setenv("CLICKHOUSE_DIAL_TIMEOUT", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"ch1:9000", "ch2:9000"}, cfg.Hosts)
	assert.Equal(t, "records", cfg.Database)
	assert.Equal(t, "main", cfg.Cluster)
	assert.Equal(t, 5, cfg.DialTimeout)
}

func TestLoadConfig_ParseError(t *testing.T) {
	t.Setenv("CLICKHOUSE_DIAL_TIMEOUT", "soon")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "failed to parse clickhouse config")
}

func TestConfig_Options(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Hosts:            []string{"localhost:9000"},
		Database:         "testdb",
		Username:         "user",
		Password:         "pass",
		MaxExecutionTime: 120,
		MaxBlockSize:     2000,
		DialTimeout:      3,
		ConnMaxLifetime:  20,
		ClientName:       "custom-client",
		ClientVersion:    "2.0",
	}

	opts := cfg.Options(zap.NewNop().Sugar())
	assert.Equal(t, cfg.Hosts, opts.Addr)
	assert.Equal(t, "testdb", opts.Auth.Database)
	assert.Equal(t, 120, opts.Settings[maxExecutionTime])
	assert.Equal(t, 2000, opts.Settings[maxBlockSize])
	assert.Equal(t, 3*time.Second, opts.DialTimeout)
	assert.Equal(t, 20*time.Minute, opts.ConnMaxLifetime)
	assert.Equal(t, "custom-client", opts.ClientInfo.Products[0].Name)
	assert.Nil(t, opts.TLS)
	assert.Nil(t, opts.Debugf)

	cfg.TLS = true
	cfg.Debug = true
	opts = cfg.Options(zap.NewNop().Sugar())
	require.NotNil(t, opts.TLS)
	assert.False(t, opts.TLS.InsecureSkipVerify)
	assert.NotNil(t, opts.Debugf)
}

func TestNew_NoHosts(t *testing.T) {
	t.Parallel()

	c, err := New(t.Context(), Config{}, nil)
	require.Error(t, err)
	assert.Nil(t, c)
}

func TestNew_PingFailure(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Hosts:       []string{"127.0.0.1:1"},
		Database:    "test",
		DialTimeout: 1,
	}

	c, err := New(t.Context(), cfg, zap.NewNop().Sugar())
	require.Error(t, err)
	assert.Nil(t, c)
}

func TestClient_Methods(t *testing.T) {
	t.Parallel()

	conn := &mocks.MockConn{}
	conn.On("Ping", mock.Anything).Return(nil).Once()
	conn.On("Close").Return(nil).Once()

	c := Wrap(conn, zap.NewNop().Sugar())
	assert.Equal(t, conn, c.Conn())
	require.NoError(t, c.Ping(t.Context()))
	require.NoError(t, c.Close())
	conn.AssertExpectations(t)
}

func TestClient_PingException(t *testing.T) {
	t.Parallel()

	exception := &clickhouse.Exception{Code: 516, Message: "Authentication failed"}
	conn := &mocks.MockConn{}
	conn.On("Ping", mock.Anything).Return(exception)

	err := Wrap(conn, zap.NewNop().Sugar()).Ping(t.Context())

	var ex *clickhouse.Exception
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, int32(516), ex.Code)
	conn.AssertExpectations(t)
}
