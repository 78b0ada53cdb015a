// Package recordsrepo keeps record snapshots in ClickHouse. Every save
// appends a new version of the named snapshot and loads read the newest one.
package recordsrepo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/record-indexer/pkg/clickhouse"
	"github.com/ava-labs/record-indexer/pkg/snapshot"
	"github.com/ava-labs/record-indexer/pkg/types"
)

var _ snapshot.Store = (*Repository)(nil)

//go:embed queries/create-table.sql
var createTableQuery string

//go:embed queries/write-snapshot.sql
var writeSnapshotQuery string

//go:embed queries/read-snapshot.sql
var readSnapshotQuery string

//go:embed queries/delete-snapshot.sql
var deleteSnapshotQuery string

// Repository implements snapshot.Store on top of a ReplacingMergeTree table
// keyed by snapshot name.
type Repository struct {
	client   clickhouse.Client
	log      *zap.SugaredLogger
	cluster  string
	database string
	table    string
	name     string
	now      func() time.Time

	mu          sync.Mutex
	lastVersion uint64
}

// NewRepository creates the snapshot table if needed and returns a store for
// the snapshot called name. An empty cluster targets a single node.
func NewRepository(
	ctx context.Context,
	client clickhouse.Client,
	log *zap.SugaredLogger,
	cluster, database, table, name string,
) (*Repository, error) {
	if database == "" || table == "" {
		return nil, errors.New("clickhouse database and table are required")
	}
	if name == "" {
		return nil, errors.New("snapshot name is required")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Repository{
		client:   client,
		log:      log,
		cluster:  cluster,
		database: database,
		table:    table,
		name:     name,
		now:      time.Now,
	}
	if err := r.Initialize(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) onCluster() string {
	if r.cluster == "" {
		return ""
	}
	return "ON CLUSTER " + r.cluster
}

// Initialize ensures the snapshot table exists.
// Schema:
//   - name: String (sorting key)
//   - version: UInt64 (ReplacingMergeTree keeps the highest)
//   - record_count: UInt32
//   - payload: String holding the JSON array of records
func (r *Repository) Initialize(ctx context.Context) error {
	query := fmt.Sprintf(createTableQuery, r.database, r.table, r.onCluster())
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create snapshot table: %w", err)
	}
	return nil
}

// Load returns the newest version of the snapshot, or nil when none exists.
func (r *Repository) Load(ctx context.Context) ([]types.Record, error) {
	var (
		version uint64
		payload string
	)
	query := fmt.Sprintf(readSnapshotQuery, r.database, r.table)
	err := r.client.Conn().
		QueryRow(ctx, query, r.name).
		Scan(&version, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	r.mu.Lock()
	r.lastVersion = max(r.lastVersion, version)
	r.mu.Unlock()

	return snapshot.Decode(r.Location(), []byte(payload))
}

// Save writes records as a new version of the snapshot.
func (r *Repository) Save(ctx context.Context, records []types.Record) error {
	payload, err := snapshot.Encode(records)
	if err != nil {
		return err
	}
	version := r.nextVersion()
	query := fmt.Sprintf(writeSnapshotQuery, r.database, r.table)
	err = r.client.Conn().
		Exec(ctx, query, r.name, version, uint32(len(records)), string(payload))
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	r.log.Debugw("snapshot version written", "name", r.name, "version", version, "records", len(records))
	return nil
}

// nextVersion returns a wall clock version that is strictly greater than any
// version this store has seen.
func (r *Repository) nextVersion() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := uint64(r.now().UnixNano())
	if v <= r.lastVersion {
		v = r.lastVersion + 1
	}
	r.lastVersion = v
	return v
}

// Delete removes every version of the snapshot.
func (r *Repository) Delete(ctx context.Context) error {
	query := fmt.Sprintf(deleteSnapshotQuery, r.database, r.table, r.onCluster())
	if err := r.client.Conn().Exec(ctx, query, r.name); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (r *Repository) Location() string {
	return fmt.Sprintf("clickhouse://%s.%s#%s", r.database, r.table, r.name)
}

// Close closes the underlying client.
func (r *Repository) Close() error {
	return r.client.Close()
}
