// Package testutil holds shared test fixtures for the commitment tree
// engine, mirroring the teacher's pkg/testutil/helpers.go: small
// Create*-named constructors for deterministic test data, used across
// package test files instead of duplicating setup per test.
package testutil

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/store"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/store/memory"
)

// NewTestStore builds an in-memory commitment store for tests, closing
// it automatically via t.Cleanup.
func NewTestStore(t *testing.T) store.ICommitmentStore {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// CreateTestOwnerKey derives a deterministic 32-byte owner key from seed,
// so tests reading different owners get distinguishable, reproducible keys.
func CreateTestOwnerKey(seed byte) [32]byte {
	return [32]byte(crypto.Keccak256Hash([]byte{'o', 'w', 'n', 'e', 'r', seed}))
}

// CreateTestCommitmentHash derives a deterministic 32-byte commitment
// hash from seed.
func CreateTestCommitmentHash(seed byte) [32]byte {
	return [32]byte(crypto.Keccak256Hash([]byte{'c', 'o', 'm', 'm', 'i', 't', seed}))
}

// CreateTestCommitmentBatch inserts n commitments of kind into st, all
// from distinct owners with sequential seeds, and returns the assigned
// ids in insertion order.
func CreateTestCommitmentBatch(t *testing.T, st store.ICommitmentStore, kind commitment.AccumulatorKind, n int) []uint64 {
	t.Helper()

	ids := make([]uint64, n)
	for i := 0; i < n; i++ {
		owner := CreateTestOwnerKey(byte(i))
		hash := CreateTestCommitmentHash(byte(i))
		id, _, err := st.InsertCommitment(kind, owner, uint64(100+i), hash)
		if err != nil {
			t.Fatalf("testutil: failed to insert test commitment %d: %v", i, err)
		}
		ids[i] = id
	}
	return ids
}
