package backscan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/record-indexer/internal/chainclient"
	"github.com/ava-labs/record-indexer/pkg/metrics"
	"github.com/ava-labs/record-indexer/pkg/snapshot"
	"github.com/ava-labs/record-indexer/pkg/types"
)

// DefaultLimit is the default number of records kept in a snapshot.
const DefaultLimit = 10

// Mode selects how a run folds scanned records into the snapshot.
type Mode string

const (
	// ModeBatch ignores the persisted snapshot and rebuilds it from the newest
	// Limit distinct records.
	ModeBatch Mode = "batch"
	// ModeCapped unions new records with the persisted snapshot, counting the
	// persisted records toward the target.
	ModeCapped Mode = "capped"
	// ModeResume scans until it reaches a record already in the persisted
	// snapshot, then unions what it found in front of it.
	ModeResume Mode = "resume"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeBatch, ModeCapped, ModeResume:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
	}
}

// Publisher receives records right before the snapshot containing them is saved.
type Publisher interface {
	Publish(ctx context.Context, records []types.Record) error
}

// Config holds the parameters of a snapshot run.
type Config struct {
	Mode Mode
	// Limit caps the snapshot size. 0 keeps every record and disables the
	// target condition.
	Limit  int
	Step   uint64
	Floor  uint64
	Cutoff uint64
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidConfig)
	}
	if c.Step == 0 {
		return fmt.Errorf("%w: step must be positive", ErrInvalidConfig)
	}
	return nil
}

// Result summarizes a run.
type Result struct {
	Head uint64
	// Added holds the records that entered the snapshot during the run, newest first.
	Added []types.Record
	// Snapshot is the last saved snapshot, or the loaded one if nothing was saved.
	Snapshot []types.Record
	Chunks   int
	Saves    int
	Reason   StopReason
}

// Syncer brings a persisted snapshot up to date with the chain.
type Syncer struct {
	source    chainclient.EventSource
	store     snapshot.Store
	cfg       Config
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics // nil if metrics disabled
	publisher Publisher        // nil if publishing disabled
}

// Option configures the Syncer.
type Option func(*Syncer)

// WithMetrics enables metrics collection for the syncer.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) {
		s.metrics = m
	}
}

// WithPublisher forwards records added to the snapshot to p.
func WithPublisher(p Publisher) Option {
	return func(s *Syncer) {
		s.publisher = p
	}
}

// NewSyncer creates a Syncer. source should already retry transient failures,
// see chainclient.WithRetry.
func NewSyncer(
	source chainclient.EventSource,
	store snapshot.Store,
	cfg Config,
	log *zap.SugaredLogger,
	opts ...Option,
) (*Syncer, error) {
	if source == nil || store == nil {
		return nil, fmt.Errorf("%w: source and store are required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Syncer{
		source: source,
		store:  store,
		cfg:    cfg,
		log:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run performs one synchronization. The snapshot is saved after every chunk
// that changes it, so an interrupted run leaves the last saved state intact.
// A failed save or publish ends the run with an error.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	var existing []types.Record
	if s.cfg.Mode != ModeBatch {
		existing = s.loadExisting(ctx)
	}

	head, err := s.source.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain head: %w", err)
	}
	s.metrics.SetHead(head)

	s.log.Infow("starting scan",
		"mode", s.cfg.Mode,
		"head", head,
		"limit", s.cfg.Limit,
		"step", s.cfg.Step,
		"floor", s.cfg.Floor,
		"cutoff", s.cfg.Cutoff,
		"existing", len(existing),
		"snapshot", s.store.Location(),
	)

	scanner := &Scanner{
		Source:  s.source,
		Step:    s.cfg.Step,
		Floor:   s.cfg.Floor,
		Cutoff:  s.cfg.Cutoff,
		Log:     s.log,
		Metrics: s.metrics,
	}
	existingSet := types.Hashes(existing)
	policy := s.stopPolicy(existingSet)
	session := NewSession()
	res := &Result{Head: head, Snapshot: existing}

	it := scanner.Chunks(head)
	for it.Next(ctx) {
		chunk := it.Chunk()
		session.Chunks++
		session.Cursor = it.Cursor()
		s.merge(session, chunk.Events, existingSet)

		s.log.Infow("scanned range",
			"from", chunk.From,
			"to", chunk.To,
			"events", len(chunk.Events),
			"found", len(session.Found),
			"target", s.cfg.Limit,
		)

		next := UnionCap(existing, session.Found, s.cfg.Limit)
		if !slices.Equal(next, res.Snapshot) {
			added := newIn(next, res.Snapshot)
			if err := s.commit(ctx, next, added); err != nil {
				res.Chunks = session.Chunks
				return res, err
			}
			res.Snapshot = next
			res.Added = append(res.Added, added...)
			res.Saves++
			s.log.Infow("snapshot updated",
				"path", s.store.Location(),
				"records", len(next),
				"added", len(added),
				"found", len(session.Found),
			)
		}

		if reason, stop := policy.Check(session); stop {
			it.Stop(reason)
		}
	}
	res.Chunks = session.Chunks
	if err := it.Err(); err != nil {
		return res, fmt.Errorf("scan at block %d: %w", it.Cursor().Current, err)
	}
	res.Reason = it.Reason()

	s.log.Infow("scan finished",
		"reason", res.Reason.String(),
		"added", len(res.Added),
		"records", len(res.Snapshot),
		"chunks", res.Chunks,
		"saves", res.Saves,
	)
	return res, nil
}

// loadExisting reads the persisted snapshot. Unreadable state is logged and
// replaced by an empty snapshot.
func (s *Syncer) loadExisting(ctx context.Context) []types.Record {
	records, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, snapshot.ErrCorrupt) {
			s.metrics.IncError(metrics.ErrTypeCorruptSnapshot)
		}
		s.log.Warnw("could not read snapshot, starting from empty state",
			"path", s.store.Location(),
			"error", err,
		)
		return nil
	}
	normalized, changed := Normalize(records, s.cfg.Limit)
	if changed {
		s.log.Warnw("persisted snapshot was not normalized, fixed in memory",
			"path", s.store.Location(),
			"loaded", len(records),
			"kept", len(normalized),
		)
	}
	return normalized
}

func (s *Syncer) stopPolicy(existing types.HashSet) StopPolicy {
	switch s.cfg.Mode {
	case ModeCapped:
		return StopPolicy{Target: s.cfg.Limit, Baseline: len(existing), Known: existing}
	case ModeResume:
		return StopPolicy{Target: s.cfg.Limit, ConnectionPoint: true}
	default:
		return StopPolicy{Target: s.cfg.Limit}
	}
}

func (s *Syncer) merge(session *Session, events []types.Record, existing types.HashSet) {
	if s.cfg.Mode == ModeResume {
		ConnectionPoint(session, events, existing, s.cfg.Limit)
		return
	}
	AppendUnique(session, events, s.cfg.Limit)
}

// commit publishes the added records and saves the snapshot. Publishing first
// means a crash in between republishes on the next run instead of losing them.
func (s *Syncer) commit(ctx context.Context, next, added []types.Record) error {
	if s.publisher != nil && len(added) > 0 {
		if err := s.publisher.Publish(ctx, added); err != nil {
			return fmt.Errorf("publish records: %w", err)
		}
	}

	start := time.Now()
	err := s.store.Save(ctx, next)
	s.metrics.RecordSnapshotSave(err, time.Since(start).Seconds(), len(next))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.metrics.AddRecords(len(added))
	return nil
}

// newIn returns the records of next whose hash is not in prev.
func newIn(next, prev []types.Record) []types.Record {
	known := types.Hashes(prev)
	var added []types.Record
	for _, r := range next {
		if !known.Has(r.TransactionHash) {
			added = append(added, r)
		}
	}
	return added
}
