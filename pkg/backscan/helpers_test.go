package backscan

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/ava-labs/record-indexer/internal/chainclient"
	"github.com/ava-labs/record-indexer/pkg/snapshot"
	"github.com/ava-labs/record-indexer/pkg/types"
)

func rec(hash string, ts int64) types.Record {
	return types.Record{
		Author:          "0x00000000000000000000000000000000000000aa",
		Timestamp:       ts,
		Content:         "content of " + hash,
		TransactionHash: hash,
	}
}

func hashesOf(records []types.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.TransactionHash
	}
	return out
}

type blockRange struct {
	From, To uint64
}

// fakeChain is an in-memory event source. Events are keyed by block and kept
// in emission order.
type fakeChain struct {
	mu         sync.Mutex
	head       uint64
	headErr    error
	events     map[uint64][]types.Record
	blockTime  func(height uint64) (uint64, bool)
	failRanges map[blockRange]error

	queries   []blockRange
	tsQueries []uint64
}

var _ chainclient.EventSource = (*fakeChain)(nil)

func newFakeChain(head uint64) *fakeChain {
	return &fakeChain{
		head:       head,
		events:     make(map[uint64][]types.Record),
		failRanges: make(map[blockRange]error),
	}
}

// emit appends records to block in emission order.
func (f *fakeChain) emit(block uint64, records ...types.Record) *fakeChain {
	f.events[block] = append(f.events[block], records...)
	return f
}

func (f *fakeChain) Head(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.headErr
}

func (f *fakeChain) BlockTimestamp(_ context.Context, height uint64) (uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tsQueries = append(f.tsQueries, height)
	if f.blockTime == nil {
		return 0, false, nil
	}
	ts, ok := f.blockTime(height)
	return ts, ok, nil
}

func (f *fakeChain) QueryEvents(_ context.Context, from, to uint64) ([]types.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := blockRange{from, to}
	f.queries = append(f.queries, r)
	if err, ok := f.failRanges[r]; ok {
		return nil, err
	}
	var out []types.Record
	for _, block := range slices.Sorted(maps.Keys(f.events)) {
		if block >= from && block <= to {
			out = append(out, f.events[block]...)
		}
	}
	return out, nil
}

func (f *fakeChain) queried() []blockRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.queries)
}

// memStore is an in-memory snapshot.Store that keeps every saved version.
type memStore struct {
	mu      sync.Mutex
	current []types.Record
	exists  bool
	loadErr error
	saveErr func(n int) error // called with the 1-based save number
	saves   [][]types.Record
}

var _ snapshot.Store = (*memStore)(nil)

func newMemStore(initial ...types.Record) *memStore {
	s := &memStore{}
	if initial != nil {
		s.current = slices.Clone(initial)
		s.exists = true
	}
	return s
}

func (s *memStore) Load(context.Context) ([]types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if !s.exists {
		return nil, nil
	}
	return slices.Clone(s.current), nil
}

func (s *memStore) Save(_ context.Context, records []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		if err := s.saveErr(len(s.saves) + 1); err != nil {
			return err
		}
	}
	s.current = slices.Clone(records)
	s.exists = true
	s.saves = append(s.saves, slices.Clone(records))
	return nil
}

func (s *memStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current, s.exists = nil, false
	return nil
}

func (s *memStore) Location() string { return "memory" }

func (s *memStore) Close() error { return nil }

func (s *memStore) saved() [][]types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.saves)
}

// recordingPublisher stores every published batch.
type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]types.Record
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, records []types.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, slices.Clone(records))
	return nil
}

var errFlaky = errors.New("flaky node")
