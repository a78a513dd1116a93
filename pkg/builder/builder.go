// Package builder is the tree builder service from spec.md §4.5: the
// control loop that drives inclusion, owning the in-memory accumulator
// for one accumulator kind. Shaped like the teacher's pkg/node.Node: a
// struct holding injected dependencies, a Config struct, a constructor
// that validates and Fatalws on construction errors, and Start/Stop
// methods around a background goroutine.
package builder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/engineerr"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/metrics"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/store"
	"go.uber.org/zap"
)

const builderLockTTL = 30 * time.Second

// Config holds tree builder configuration, per SPEC_FULL.md §9's
// recognized keys.
type Config struct {
	PollInterval         time.Duration
	BatchSize            int
	EnableStartupRebuild bool
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:         10 * time.Second,
		BatchSize:            100,
		EnableStartupRebuild: true,
	}
}

// Builder drives inclusion for one accumulator kind. The in-memory
// accumulator is its only long-lived mutable state, encapsulated behind
// this single owner per spec.md §9.
type Builder struct {
	kind    commitment.AccumulatorKind
	store   store.ICommitmentStore
	acc     accumulator
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Builder

	mu         sync.Mutex
	halted     bool
	haltReason string

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Builder for kind. Fatalws on an unrecognized kind,
// matching the teacher's NewNode convention of failing fast on
// unrecoverable construction errors.
func New(kind commitment.AccumulatorKind, st store.ICommitmentStore, cfg Config, logger *zap.Logger, m *metrics.Builder) *Builder {
	var acc accumulator
	switch kind {
	case commitment.AccumulatorMMR:
		acc = newMMRAccumulator()
	case commitment.AccumulatorPoseidon:
		acc = newPoseidonAccumulator()
	default:
		logger.Sugar().Fatalw("unrecognized accumulator kind", "kind", kind)
	}

	return &Builder{
		kind:    kind,
		store:   st,
		acc:     acc,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// Root returns the accumulator's current root, safe to call concurrently
// with the poll loop.
func (b *Builder) Root() [32]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acc.root()
}

// LeafCount returns the accumulator's current leaf count.
func (b *Builder) LeafCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acc.leafCount()
}

// Halted reports whether the builder has refused further work after an
// InvariantViolation, and why.
func (b *Builder) Halted() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.halted, b.haltReason
}

func (b *Builder) halt(reason string) {
	b.mu.Lock()
	b.halted = true
	b.haltReason = reason
	b.mu.Unlock()

	b.logger.Sugar().Errorw("builder halted", "kind", b.kind, "reason", reason)
	if b.metrics != nil {
		b.metrics.BuilderHalted.Set(1)
	}
}

// Rebuild replays every included row for this accumulator kind, ordered
// by leaf_index, then asserts the reconstructed root equals the last
// replayed row's stored merkle_root (spec.md §4.5 step 1). On a root
// mismatch, a leaf_index the accumulator would not assign, a failed
// replay, or a missing leaf_index/merkle_root, the builder halts and
// InvariantViolation is returned.
func (b *Builder) Rebuild() error {
	if !b.cfg.EnableStartupRebuild {
		return nil
	}

	start := time.Now()
	rows, err := b.store.FetchAllIncludedOrdered(b.kind)
	if err != nil {
		return fmt.Errorf("builder: rebuild fetch failed: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	fail := func(reason string) error {
		b.mu.Unlock()
		b.halt(reason)
		b.mu.Lock()
		return &engineerr.InvariantViolation{Reason: reason}
	}

	for _, row := range rows {
		if row.LeafIndex == nil {
			return fail(fmt.Sprintf("commitment %d included=true but leaf_index is nil", row.ID))
		}

		leafIndex, _, err := b.acc.append(row.CommitmentHash)
		if err != nil {
			return fail(fmt.Sprintf("rebuild append failed for commitment %d: %v", row.ID, err))
		}
		if leafIndex != *row.LeafIndex {
			return fail(fmt.Sprintf("commitment %d expected leaf_index %d, accumulator assigned %d", row.ID, *row.LeafIndex, leafIndex))
		}
	}

	if len(rows) > 0 {
		last := rows[len(rows)-1]
		if last.MerkleRoot == nil {
			return fail(fmt.Sprintf("commitment %d included=true but merkle_root is nil", last.ID))
		}
		if b.acc.root() != *last.MerkleRoot {
			return fail(fmt.Sprintf("rebuilt root mismatch for kind %s: accumulator produced a different root than commitment %d's stored merkle_root", b.kind, last.ID))
		}
	}

	if b.metrics != nil {
		b.metrics.RebuildDurationSecs.Observe(time.Since(start).Seconds())
		b.metrics.AccumulatorLeafCount.Set(float64(b.acc.leafCount()))
	}

	b.logger.Sugar().Infow("builder rebuild complete", "kind", b.kind, "leaves", b.acc.leafCount())
	return nil
}

// Start acquires the singleton advisory lock for this accumulator kind
// and launches the poll loop goroutine. Returns an error if the lock is
// already held by another builder instance.
func (b *Builder) Start(ctx context.Context) error {
	granted, err := b.store.AcquireBuilderLock(b.kind, builderLockTTL)
	if err != nil {
		return fmt.Errorf("builder: failed to acquire advisory lock: %w", err)
	}
	if !granted {
		return fmt.Errorf("builder: another instance already holds the advisory lock for kind %s", b.kind)
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	go b.run(runCtx)
	return nil
}

// Stop signals the poll loop to exit after finishing its current row, and
// waits for it to do so. No work is abandoned mid-row.
func (b *Builder) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.done != nil {
		<-b.done
	}
	if err := b.store.ReleaseBuilderLock(b.kind); err != nil {
		b.logger.Sugar().Warnw("failed to release builder lock", "kind", b.kind, "error", err)
	}
}

func (b *Builder) run(ctx context.Context) {
	defer close(b.done)

	pollTicker := time.NewTicker(b.cfg.PollInterval)
	defer pollTicker.Stop()

	lockTicker := time.NewTicker(builderLockTTL / 3)
	defer lockTicker.Stop()

	for {
		select {
		case <-pollTicker.C:
			if halted, _ := b.Halted(); halted {
				continue
			}
			if err := b.tick(ctx); err != nil {
				b.logger.Sugar().Warnw("builder poll tick aborted", "kind", b.kind, "error", err)
				if b.metrics != nil {
					b.metrics.PollTickErrors.Inc()
				}
			}
		case <-lockTicker.C:
			if err := b.store.RenewBuilderLock(b.kind, builderLockTTL); err != nil {
				b.logger.Sugar().Warnw("failed to renew builder lock", "kind", b.kind, "error", err)
			}
		case <-ctx.Done():
			b.logger.Sugar().Infow("builder shutting down", "kind", b.kind)
			return
		}
	}
}

// tick drains up to BatchSize pending rows, processing them strictly
// sequentially in id order. The shutdown signal is checked only between
// rows, never mid-row.
func (b *Builder) tick(ctx context.Context) error {
	pending, err := b.store.FetchPending(b.kind, b.cfg.BatchSize)
	if err != nil {
		return &engineerr.StoreTransient{Op: "FetchPending", Err: err}
	}

	for _, row := range pending {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := b.processRow(row); err != nil {
			return err
		}
	}
	return nil
}

// processRow appends row's commitment_hash, computes its proof, and calls
// mark_included. On a transient store error the in-memory append is
// rolled back and the error is returned so the whole tick aborts,
// retaining in-memory state unchanged for the next tick's retry. On any
// other failure (decode error, invariant breach, conflict, permanent
// store error) the append is rolled back and only this row is marked
// FAILED; the batch continues.
func (b *Builder) processRow(row *commitment.Commitment) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.acc.snapshot()

	leafIndex, newRoot, err := b.acc.append(row.CommitmentHash)
	if err != nil {
		b.acc.restore(snap)
		b.failRowLocked(row.ID, fmt.Sprintf("append failed: %v", err))
		return nil
	}

	proof, err := b.acc.proofFor(leafIndex, row.CommitmentHash)
	if err != nil {
		b.acc.restore(snap)
		b.failRowLocked(row.ID, fmt.Sprintf("proof construction failed: %v", err))
		return nil
	}

	err = b.store.MarkIncluded(row.ID, leafIndex, proof, newRoot)
	if err == nil {
		b.logger.Sugar().Infow("commitment included", "kind", b.kind, "commitment_id", row.ID, "leaf_index", leafIndex)
		if b.metrics != nil {
			b.metrics.RowsIncluded.Inc()
			b.metrics.AccumulatorLeafCount.Set(float64(b.acc.leafCount()))
		}
		return nil
	}

	var transient *engineerr.StoreTransient
	if errors.As(err, &transient) {
		b.acc.restore(snap)
		return err
	}

	b.acc.restore(snap)
	b.failRowLocked(row.ID, fmt.Sprintf("mark_included failed: %v", err))
	return nil
}

func (b *Builder) failRowLocked(id uint64, reason string) {
	if err := b.store.MarkFailed(id, reason); err != nil {
		b.logger.Sugar().Errorw("failed to mark commitment FAILED", "kind", b.kind, "commitment_id", id, "error", err)
		return
	}
	b.logger.Sugar().Warnw("commitment marked FAILED", "kind", b.kind, "commitment_id", id, "reason", reason)
	if b.metrics != nil {
		b.metrics.RowsFailed.Inc()
	}
}
