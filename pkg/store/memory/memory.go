// Package memory is an in-memory ICommitmentStore for tests, structurally
// the teacher's pkg/persistence/memory.MemoryPersistence generalized from
// key-share/session state to commitment rows.
package memory

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/engineerr"
)

// MemoryStore is an in-memory implementation of store.ICommitmentStore.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex. Deep copies data to prevent external
// mutation of returned rows.
type MemoryStore struct {
	mu sync.RWMutex

	rows   map[uint64]*commitment.Commitment
	nextID uint64

	// nonces tracks the next nonce to hand out per owner_key, shared
	// across accumulator kinds (spec.md §3's nonce record is keyed only
	// by owner_key).
	nonces map[[32]byte]uint64

	// leafIndexOwner enforces I2: leaf_index uniqueness is scoped per
	// accumulator kind.
	leafIndexOwner map[commitment.AccumulatorKind]map[uint64]uint64

	// builderLockExpiry tracks the advisory lock lease per accumulator
	// kind (spec.md §4.5's singleton-builder deployment invariant).
	builderLockExpiry map[commitment.AccumulatorKind]time.Time

	closed bool
}

// New creates a new in-memory commitment store. Prints a loud warning
// since this should only be used for testing.
func New() *MemoryStore {
	fmt.Fprintln(os.Stderr, "⚠️  WARNING: Using in-memory commitment store - ALL DATA WILL BE LOST ON RESTART")
	fmt.Fprintln(os.Stderr, "⚠️  This should ONLY be used for testing. Use store/badger for production")

	return &MemoryStore{
		rows:              make(map[uint64]*commitment.Commitment),
		nonces:            make(map[[32]byte]uint64),
		leafIndexOwner:    make(map[commitment.AccumulatorKind]map[uint64]uint64),
		builderLockExpiry: make(map[commitment.AccumulatorKind]time.Time),
	}
}

// AcquireBuilderLock grants the lease if no unexpired lease is held.
func (s *MemoryStore) AcquireBuilderLock(kind commitment.AccumulatorKind, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, fmt.Errorf("commitment store is closed")
	}

	if expiry, held := s.builderLockExpiry[kind]; held && time.Now().Before(expiry) {
		return false, nil
	}

	s.builderLockExpiry[kind] = time.Now().Add(ttl)
	return true, nil
}

// RenewBuilderLock extends the caller's lease unconditionally.
func (s *MemoryStore) RenewBuilderLock(kind commitment.AccumulatorKind, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("commitment store is closed")
	}

	s.builderLockExpiry[kind] = time.Now().Add(ttl)
	return nil
}

// ReleaseBuilderLock drops the lease early.
func (s *MemoryStore) ReleaseBuilderLock(kind commitment.AccumulatorKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("commitment store is closed")
	}

	delete(s.builderLockExpiry, kind)
	return nil
}

// InsertCommitment assigns id and nonce within the lock, emulating a
// single transaction (spec.md §4.6: allocation shares the insertion
// transaction, so it never skips even under rollback).
func (s *MemoryStore) InsertCommitment(kind commitment.AccumulatorKind, ownerKey [32]byte, amount uint64, commitmentHash [32]byte) (uint64, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, 0, fmt.Errorf("commitment store is closed")
	}

	id := s.nextID
	s.nextID++

	nonce := s.nonces[ownerKey]
	s.nonces[ownerKey] = nonce + 1

	s.rows[id] = &commitment.Commitment{
		ID:             id,
		Kind:           kind,
		OwnerKey:       ownerKey,
		Amount:         amount,
		Nonce:          nonce,
		CommitmentHash: commitmentHash,
		Status:         commitment.StatusPendingTreeInclusion,
		Included:       false,
	}

	return id, nonce, nil
}

// FetchPending returns rows ready for inclusion, ordered by id ascending.
func (s *MemoryStore) FetchPending(kind commitment.AccumulatorKind, limit int) ([]*commitment.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("commitment store is closed")
	}

	ids := make([]uint64, 0)
	for id, row := range s.rows {
		if row.Kind == kind && row.ReadyForInclusion() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	result := make([]*commitment.Commitment, 0, len(ids))
	for _, id := range ids {
		result = append(result, deepCopy(s.rows[id]))
	}
	return result, nil
}

// FetchAllIncludedOrdered returns every included row for kind, ordered by
// leaf_index ascending.
func (s *MemoryStore) FetchAllIncludedOrdered(kind commitment.AccumulatorKind) ([]*commitment.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("commitment store is closed")
	}

	var included []*commitment.Commitment
	for _, row := range s.rows {
		if row.Kind == kind && row.Included {
			included = append(included, row)
		}
	}
	sort.Slice(included, func(i, j int) bool {
		return *included[i].LeafIndex < *included[j].LeafIndex
	})

	result := make([]*commitment.Commitment, len(included))
	for i, row := range included {
		result[i] = deepCopy(row)
	}
	return result, nil
}

// MarkIncluded is atomic under the store's lock: sets included=true,
// writes leaf_index/proof/merkle_root, and transitions status.
func (s *MemoryStore) MarkIncluded(id uint64, leafIndex uint64, proof *commitment.Proof, merkleRoot [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("commitment store is closed")
	}

	row, ok := s.rows[id]
	if !ok {
		return &engineerr.StorePermanent{Op: "MarkIncluded", Err: fmt.Errorf("no such commitment id %d", id)}
	}

	if row.Included {
		// Idempotence per spec.md §8: re-running with identical arguments
		// on an already-included row is a no-op, not an error.
		if *row.LeafIndex == leafIndex && *row.MerkleRoot == merkleRoot {
			return nil
		}
		return &engineerr.Conflict{Reason: fmt.Sprintf("commitment %d already included at leaf_index %d", id, *row.LeafIndex)}
	}

	owners := s.leafIndexOwner[row.Kind]
	if owners == nil {
		owners = make(map[uint64]uint64)
		s.leafIndexOwner[row.Kind] = owners
	}
	if existingID, taken := owners[leafIndex]; taken && existingID != id {
		return &engineerr.Conflict{Reason: fmt.Sprintf("leaf_index %d already held by commitment %d", leafIndex, existingID)}
	}

	if !row.Status.CanTransition(commitment.StatusPendingProofGen) {
		return &engineerr.StorePermanent{Op: "MarkIncluded", Err: fmt.Errorf("commitment %d in status %s cannot transition to %s", id, row.Status, commitment.StatusPendingProofGen)}
	}

	li := leafIndex
	root := merkleRoot
	row.LeafIndex = &li
	row.Proof = proof
	row.MerkleRoot = &root
	row.Included = true
	row.Status = commitment.StatusPendingProofGen
	owners[leafIndex] = id

	return nil
}

// MarkFailed transitions the row to FAILED and increments retry_count.
// Idempotent.
func (s *MemoryStore) MarkFailed(id uint64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("commitment store is closed")
	}

	row, ok := s.rows[id]
	if !ok {
		return &engineerr.StorePermanent{Op: "MarkFailed", Err: fmt.Errorf("no such commitment id %d", id)}
	}

	if row.Status == commitment.StatusFailed {
		return nil
	}
	if !row.Status.CanTransition(commitment.StatusFailed) {
		return &engineerr.StorePermanent{Op: "MarkFailed", Err: fmt.Errorf("commitment %d in status %s cannot transition to FAILED", id, row.Status)}
	}

	row.Status = commitment.StatusFailed
	row.RetryCount++
	_ = reason
	return nil
}

// Close shuts down the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// HealthCheck verifies the store is operational.
func (s *MemoryStore) HealthCheck() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("commitment store is closed")
	}
	return nil
}

func deepCopy(c *commitment.Commitment) *commitment.Commitment {
	cp := *c
	if c.LeafIndex != nil {
		li := *c.LeafIndex
		cp.LeafIndex = &li
	}
	if c.MerkleRoot != nil {
		root := *c.MerkleRoot
		cp.MerkleRoot = &root
	}
	if c.Proof != nil {
		proofCopy := *c.Proof
		cp.Proof = &proofCopy
	}
	return &cp
}
