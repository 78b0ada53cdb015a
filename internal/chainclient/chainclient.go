package chainclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/record-indexer/pkg/types"
)

// ErrPermanent marks failures that retrying cannot fix: an unknown endpoint,
// a malformed contract address or ABI, or a method the node does not serve.
var ErrPermanent = errors.New("permanent chain client error")

// EventSource is the read side of the chain the scanner depends on.
type EventSource interface {
	// Head returns the current chain head height.
	Head(ctx context.Context) (uint64, error)

	// BlockTimestamp returns the timestamp of the block at height. found is
	// false when the node does not know the block.
	BlockTimestamp(ctx context.Context, height uint64) (ts uint64, found bool, err error)

	// QueryEvents returns the Record events emitted in [from, to], in
	// ascending on-chain order.
	QueryEvents(ctx context.Context, from, to uint64) ([]types.Record, error)
}

// Permanent wraps err so that IsPermanent reports true for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err must not be retried. Context cancellation
// and deadline errors count as permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
