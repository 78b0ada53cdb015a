package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ava-labs/record-indexer/pkg/types"
)

var snapshotsBucket = []byte("snapshots")

// BoltStore keeps named snapshots in an embedded bbolt database. Each snapshot
// is one JSON value keyed by its name, so a Save is a single transaction.
type BoltStore struct {
	db   *bolt.DB
	name []byte
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the database at path and binds the store to
// the snapshot called name.
func NewBoltStore(path, name string) (*BoltStore, error) {
	if name == "" {
		return nil, errors.New("snapshot name is required")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(snapshotsBucket); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, name: []byte(name)}, nil
}

func (s *BoltStore) Load(_ context.Context) ([]types.Record, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		// Get's slice is only valid inside the transaction
		if v := tx.Bucket(snapshotsBucket).Get(s.name); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.Location(), err)
	}
	if data == nil {
		return nil, nil
	}
	return Decode(s.Location(), data)
}

func (s *BoltStore) Save(_ context.Context, records []types.Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Put(s.name, data)
	})
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", s.Location(), err)
	}
	return nil
}

func (s *BoltStore) Delete(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Delete(s.name)
	})
}

func (s *BoltStore) Location() string {
	return s.db.Path() + "#" + string(s.name)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
