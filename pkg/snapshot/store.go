// Package snapshot persists the bounded record set between runs.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ava-labs/record-indexer/pkg/types"
)

// ErrCorrupt is wrapped by Load when persisted data exists but cannot be
// decoded. Callers may treat the snapshot as empty and rebuild it.
var ErrCorrupt = errors.New("corrupt snapshot")

// Store reads and writes a full snapshot. Implementations assume a single
// writer.
type Store interface {
	// Load returns the persisted snapshot, or nil with no error when none exists.
	Load(ctx context.Context) ([]types.Record, error)
	// Save replaces the persisted snapshot with records.
	Save(ctx context.Context, records []types.Record) error
	// Delete removes the persisted snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context) error
	// Location describes where the snapshot lives, for logs.
	Location() string
	Close() error
}

// Encode renders records in the persisted snapshot format: an indented JSON
// array, never null.
func Encode(records []types.Record) ([]byte, error) {
	if records == nil {
		records = []types.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode parses the persisted snapshot format. Malformed input is reported
// as ErrCorrupt, prefixed with location.
func Decode(location string, data []byte) ([]types.Record, error) {
	var records []types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, location, err)
	}
	for i, r := range records {
		if r.TransactionHash == "" {
			return nil, fmt.Errorf("%w: %s: record %d has no transactionHash", ErrCorrupt, location, i)
		}
	}
	return records, nil
}
