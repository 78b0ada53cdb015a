package types

import (
	"fmt"
	"slices"
)

// Record is a single normalized Record event emitted by the tracked contract.
// TransactionHash is the identity key: one event per transaction, so two
// records sharing a hash are the same logical entry regardless of the other
// fields.
type Record struct {
	Author          string `json:"author"`
	Timestamp       int64  `json:"timestamp"`
	Content         string `json:"content"`
	TransactionHash string `json:"transactionHash"`
}

// HashSet is a set of transaction hashes.
type HashSet map[string]struct{}

// Hashes returns the set of transaction hashes in records.
func Hashes(records []Record) HashSet {
	set := make(HashSet, len(records))
	for _, r := range records {
		set[r.TransactionHash] = struct{}{}
	}
	return set
}

// Has reports whether hash is in the set.
func (s HashSet) Has(hash string) bool {
	_, ok := s[hash]
	return ok
}

// Add inserts hash and reports whether it was not present before.
func (s HashSet) Add(hash string) bool {
	if _, ok := s[hash]; ok {
		return false
	}
	s[hash] = struct{}{}
	return true
}

// SortDescending stably sorts records by timestamp, newest first. Records with
// equal timestamps keep their relative order.
func SortDescending(records []Record) {
	slices.SortStableFunc(records, func(a, b Record) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return 0
		}
	})
}

// Validate checks the snapshot invariants: unique transaction hashes,
// non-increasing timestamps and, when limit > 0, at most limit records.
func Validate(records []Record, limit int) error {
	if limit > 0 && len(records) > limit {
		return fmt.Errorf("snapshot has %d records, limit is %d", len(records), limit)
	}
	seen := make(HashSet, len(records))
	for i, r := range records {
		if r.TransactionHash == "" {
			return fmt.Errorf("record %d has an empty transaction hash", i)
		}
		if !seen.Add(r.TransactionHash) {
			return fmt.Errorf("duplicate transaction hash %s at index %d", r.TransactionHash, i)
		}
		if i > 0 && r.Timestamp > records[i-1].Timestamp {
			return fmt.Errorf(
				"records out of order at index %d: timestamp %d after %d",
				i, r.Timestamp, records[i-1].Timestamp,
			)
		}
	}
	return nil
}
