// Package backscan walks a contract's event log backward from the chain head
// in fixed-size block ranges and folds the events into a bounded snapshot.
package backscan

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/ava-labs/record-indexer/internal/chainclient"
	"github.com/ava-labs/record-indexer/pkg/metrics"
	"github.com/ava-labs/record-indexer/pkg/types"
)

// DefaultStep is the number of blocks queried per range.
const DefaultStep = 2000

// ErrInvalidConfig is returned for scan parameters that cannot work.
var ErrInvalidConfig = errors.New("invalid scan configuration")

// Chunk is the result of one range query. Events are ordered newest first.
type Chunk struct {
	From   uint64
	To     uint64
	Events []types.Record
}

// Scanner enumerates block ranges from a head down to Floor.
type Scanner struct {
	Source chainclient.EventSource
	Step   uint64
	// Floor is the lowest block scanned. It is capped at the head.
	Floor uint64
	// Cutoff stops the scan before querying a range whose first block is
	// older than this unix timestamp. 0 disables it.
	Cutoff  uint64
	Log     *zap.SugaredLogger
	Metrics *metrics.Metrics
}

// Validate checks the scanner parameters.
func (s *Scanner) Validate() error {
	if s.Source == nil {
		return fmt.Errorf("%w: no event source", ErrInvalidConfig)
	}
	if s.Step == 0 {
		return fmt.Errorf("%w: step must be positive", ErrInvalidConfig)
	}
	return nil
}

// Chunks returns an iterator over the ranges below and including head, newest
// first. The iterator performs no I/O until Next is called.
func (s *Scanner) Chunks(head uint64) *ChunkIterator {
	log := s.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	it := &ChunkIterator{
		scanner: s,
		log:     log,
		floor:     min(s.Floor, head),
		current:   head,
		exhausted: head == 0,
	}
	if err := s.Validate(); err != nil {
		it.err = err
		it.done = true
	}
	return it
}

// ChunkIterator yields the chunks of one backward scan. It is finite and
// cannot be restarted:
//
//	for it.Next(ctx) {
//		chunk := it.Chunk()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
type ChunkIterator struct {
	scanner   *Scanner
	log       *zap.SugaredLogger
	floor     uint64
	current   uint64
	exhausted bool

	chunk  Chunk
	done   bool
	err    error
	reason StopReason
}

// Next fetches the next older range. It returns false once the scan is over,
// after which Err and Reason tell why.
func (it *ChunkIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.fail(err)
		return false
	}
	if it.exhausted {
		it.Stop(StopExhausted)
		return false
	}

	s := it.scanner
	from := it.floor
	if it.current-it.floor >= s.Step {
		from = it.current - s.Step + 1
	}
	to := it.current

	if s.Cutoff > 0 {
		ts, found, err := s.Source.BlockTimestamp(ctx, from)
		if err != nil {
			it.fail(err)
			return false
		}
		if found && ts < s.Cutoff {
			it.log.Infow("cutoff reached",
				"block", from,
				"blockTimestamp", ts,
				"cutoff", s.Cutoff,
			)
			it.Stop(StopCutoff)
			return false
		}
	}

	events, err := s.Source.QueryEvents(ctx, from, to)
	if err != nil {
		it.fail(err)
		return false
	}
	slices.Reverse(events)
	it.chunk = Chunk{From: from, To: to, Events: events}
	s.Metrics.ObserveChunk(from, len(events))

	// Block 0 is only read as part of a wider range.
	if from == it.floor || from == 1 {
		it.exhausted = true
	} else {
		it.current = from - 1
	}
	return true
}

// Chunk returns the chunk fetched by the last successful Next.
func (it *ChunkIterator) Chunk() Chunk {
	return it.chunk
}

// Cursor returns the scan position after the last fetched chunk.
func (it *ChunkIterator) Cursor() Cursor {
	return Cursor{Current: it.current, From: it.chunk.From, To: it.chunk.To}
}

// Stop ends the scan with reason. Later calls to Next return false.
func (it *ChunkIterator) Stop(reason StopReason) {
	if it.done {
		return
	}
	it.done = true
	it.reason = reason
}

// Err returns the error that ended the scan, if any.
func (it *ChunkIterator) Err() error {
	return it.err
}

// Reason returns why the scan ended, or StopNone while it is running or after
// an error.
func (it *ChunkIterator) Reason() StopReason {
	return it.reason
}

func (it *ChunkIterator) fail(err error) {
	it.done = true
	it.err = err
}
