package backscan

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/ava-labs/record-indexer/internal/chainclient"
	"github.com/ava-labs/record-indexer/pkg/metrics"
	"github.com/ava-labs/record-indexer/pkg/types"
)

// DefaultWindow is the number of most recent blocks read by default.
const DefaultWindow = 1000

// HistoryRange selects the blocks to read. A non-zero Window reads the last
// Window blocks up to the head; otherwise every block from FromBlock on is read.
type HistoryRange struct {
	FromBlock uint64
	Window    uint64
}

// floor returns the lowest block of the range for the given head.
func (r HistoryRange) floor(head uint64) uint64 {
	if r.Window == 0 {
		return r.FromBlock
	}
	if r.Window > head {
		return 0
	}
	return head - r.Window + 1
}

// Reader reads every record in a block range without persisting anything.
type Reader struct {
	Source  chainclient.EventSource
	Step    uint64
	Log     *zap.SugaredLogger
	Metrics *metrics.Metrics
}

// Read scans rng and returns the chain head and the distinct records found,
// oldest first.
func (r *Reader) Read(ctx context.Context, rng HistoryRange) (uint64, []types.Record, error) {
	head, err := r.Source.Head(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("get chain head: %w", err)
	}
	r.Metrics.SetHead(head)

	floor := rng.floor(head)
	if floor > head {
		return head, nil, fmt.Errorf("%w: from block %d is above head %d", ErrInvalidConfig, floor, head)
	}

	scanner := &Scanner{
		Source:  r.Source,
		Step:    r.Step,
		Floor:   floor,
		Log:     r.Log,
		Metrics: r.Metrics,
	}
	session := NewSession()
	it := scanner.Chunks(head)
	for it.Next(ctx) {
		AppendUnique(session, it.Chunk().Events, 0)
	}
	if err := it.Err(); err != nil {
		return head, nil, fmt.Errorf("read history [%d, %d]: %w", floor, head, err)
	}

	records := session.Found
	slices.Reverse(records)
	return head, records, nil
}
