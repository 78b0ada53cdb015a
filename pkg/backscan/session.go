package backscan

import "github.com/ava-labs/record-indexer/pkg/types"

// Cursor is the position of a backward scan. Current is the highest block not
// yet scanned; From and To bound the chunk scanned last.
type Cursor struct {
	Current uint64
	From    uint64
	To      uint64
}

// Session is the state of one scan run. It is created per run, owned by the
// caller and never persisted.
type Session struct {
	Cursor Cursor

	// Seen holds every transaction hash encountered in this run, accepted or not.
	Seen types.HashSet

	// Found holds the records accepted as new, in discovery order (newest first).
	Found []types.Record

	// ConnectionFound is set once a record already present in the persisted
	// snapshot has been encountered.
	ConnectionFound bool

	Chunks int
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{Seen: make(types.HashSet)}
}
