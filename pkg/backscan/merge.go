package backscan

import "github.com/ava-labs/record-indexer/pkg/types"

// AppendUnique appends the records of events (newest first) whose hash has not
// been seen in this session. It stops accepting once the session holds target
// records; target 0 accepts everything. It returns the records added.
func AppendUnique(s *Session, events []types.Record, target int) []types.Record {
	start := len(s.Found)
	for _, r := range events {
		if target > 0 && len(s.Found) >= target {
			break
		}
		if !s.Seen.Add(r.TransactionHash) {
			continue
		}
		s.Found = append(s.Found, r)
	}
	return s.Found[start:]
}

// ConnectionPoint walks events (newest first) and appends unseen records until
// it meets a hash present in existing. The hit sets s.ConnectionFound and
// nothing at or after it is considered. target bounds the session as in
// AppendUnique. It returns the records added.
func ConnectionPoint(s *Session, events []types.Record, existing types.HashSet, target int) []types.Record {
	start := len(s.Found)
	for _, r := range events {
		if existing.Has(r.TransactionHash) {
			s.ConnectionFound = true
			break
		}
		if target > 0 && len(s.Found) >= target {
			break
		}
		if !s.Seen.Add(r.TransactionHash) {
			continue
		}
		s.Found = append(s.Found, r)
	}
	return s.Found[start:]
}

// UnionCap merges fresh records into existing ones keyed by transaction hash.
// On a conflict the fresh copy wins. The union is sorted newest first, fresh
// records ahead of existing ones with the same timestamp, and cut to n records
// (0 keeps everything). Neither input is modified.
func UnionCap(existing, fresh []types.Record, n int) []types.Record {
	seen := make(types.HashSet, len(existing)+len(fresh))
	union := make([]types.Record, 0, len(existing)+len(fresh))
	for _, src := range [][]types.Record{fresh, existing} {
		for _, r := range src {
			if seen.Add(r.TransactionHash) {
				union = append(union, r)
			}
		}
	}
	types.SortDescending(union)
	if n > 0 && len(union) > n {
		union = union[:n]
	}
	return union
}

// Normalize deduplicates, sorts and caps a loaded snapshot. changed reports
// whether the result differs from records.
func Normalize(records []types.Record, n int) (normalized []types.Record, changed bool) {
	normalized = UnionCap(records, nil, n)
	if len(normalized) != len(records) {
		return normalized, true
	}
	for i := range records {
		if records[i] != normalized[i] {
			return normalized, true
		}
	}
	return normalized, false
}
