// Package store defines the durable record of every commitment and its
// inclusion state, per spec.md §4.4 — the only stateful surface in the
// engine. Structurally this is the teacher's pkg/persistence generalized
// from key-share/session state to commitment rows: same interface shape,
// same badger/memory backend split, same HealthCheck contract.
package store

import (
	"time"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
)

// ICommitmentStore is the durable store of commitments and their
// inclusion state. All implementations must be thread-safe; commitments
// are inserted and read concurrently by watchers, API handlers, and the
// builder.
type ICommitmentStore interface {
	// InsertCommitment assigns a dense increasing id and (via the nonce
	// allocator, in the same transaction) the owner's next nonce. Initial
	// status is PENDING_TREE_INCLUSION, included=false.
	InsertCommitment(kind commitment.AccumulatorKind, ownerKey [32]byte, amount uint64, commitmentHash [32]byte) (id uint64, nonce uint64, err error)

	// FetchPending returns up to limit rows with
	// status=PENDING_TREE_INCLUSION AND included=false for the given
	// accumulator kind, ordered by id ascending.
	FetchPending(kind commitment.AccumulatorKind, limit int) ([]*commitment.Commitment, error)

	// FetchAllIncludedOrdered returns every included row for kind, ordered
	// by leaf_index ascending. Used by the builder to rebuild its
	// in-memory accumulator on startup.
	FetchAllIncludedOrdered(kind commitment.AccumulatorKind) ([]*commitment.Commitment, error)

	// MarkIncluded atomically sets included=true, writes leaf_index,
	// proof, and merkle_root, and transitions status to
	// PENDING_PROOF_GENERATION. Re-invoking with arguments identical to an
	// already-included row is a no-op (spec.md §8); a leaf_index already
	// held by another row, or a row already included with different
	// values, returns *engineerr.Conflict.
	MarkIncluded(id uint64, leafIndex uint64, proof *commitment.Proof, merkleRoot [32]byte) error

	// MarkFailed transitions the row to FAILED and increments
	// retry_count. Idempotent.
	MarkFailed(id uint64, reason string) error

	// Close cleanly shuts down the store. Idempotent.
	Close() error

	// HealthCheck verifies the store is operational. Called during
	// startup so the service fails fast.
	HealthCheck() error

	// AcquireBuilderLock enforces the single-builder-per-accumulator-kind
	// deployment invariant from spec.md §4.5: at most one builder instance
	// per kind may hold this lock at a time. Returns false (not an error)
	// if another holder's lease has not yet expired.
	AcquireBuilderLock(kind commitment.AccumulatorKind, ttl time.Duration) (bool, error)

	// RenewBuilderLock extends the caller's lease. Call sites must already
	// hold the lock; renewal does not re-check ownership.
	RenewBuilderLock(kind commitment.AccumulatorKind, ttl time.Duration) error

	// ReleaseBuilderLock drops the lease early, e.g. on graceful shutdown.
	ReleaseBuilderLock(kind commitment.AccumulatorKind) error
}
