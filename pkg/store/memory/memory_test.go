package memory

import (
	"testing"
	"time"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/engineerr"
	"github.com/stretchr/testify/require"
)

func ownerA() [32]byte { var o [32]byte; o[31] = 0xAA; return o }
func ownerB() [32]byte { var o [32]byte; o[31] = 0xBB; return o }

func TestInsertAssignsIDAndContiguousNonce(t *testing.T) {
	s := New()

	id1, nonce1, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerA(), 100, [32]byte{1})
	require.NoError(t, err)
	id2, nonce2, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerA(), 200, [32]byte{2})
	require.NoError(t, err)
	id3, nonce3, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerB(), 50, [32]byte{3})
	require.NoError(t, err)

	require.Equal(t, []uint64{0, 1, 2}, []uint64{id1, id2, id3})
	require.Equal(t, uint64(0), nonce1)
	require.Equal(t, uint64(1), nonce2)
	require.Equal(t, uint64(0), nonce3)
}

func TestFetchPendingOrderedByID(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		_, _, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerA(), uint64(i), [32]byte{byte(i)})
		require.NoError(t, err)
	}

	pending, err := s.FetchPending(commitment.AccumulatorMMR, 3)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	require.Equal(t, uint64(0), pending[0].ID)
	require.Equal(t, uint64(1), pending[1].ID)
	require.Equal(t, uint64(2), pending[2].ID)
}

func TestFetchPendingScopedByKind(t *testing.T) {
	s := New()
	_, _, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerA(), 1, [32]byte{1})
	require.NoError(t, err)
	_, _, err = s.InsertCommitment(commitment.AccumulatorPoseidon, ownerA(), 2, [32]byte{2})
	require.NoError(t, err)

	mmrPending, err := s.FetchPending(commitment.AccumulatorMMR, 10)
	require.NoError(t, err)
	require.Len(t, mmrPending, 1)

	poseidonPending, err := s.FetchPending(commitment.AccumulatorPoseidon, 10)
	require.NoError(t, err)
	require.Len(t, poseidonPending, 1)
}

func TestMarkIncludedThenFetchAllIncludedOrdered(t *testing.T) {
	s := New()
	id0, _, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerA(), 1, [32]byte{1})
	require.NoError(t, err)
	id1, _, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerA(), 2, [32]byte{2})
	require.NoError(t, err)

	root0 := [32]byte{0xAA}
	root1 := [32]byte{0xBB}
	require.NoError(t, s.MarkIncluded(id1, 1, nil, root1))
	require.NoError(t, s.MarkIncluded(id0, 0, nil, root0))

	included, err := s.FetchAllIncludedOrdered(commitment.AccumulatorMMR)
	require.NoError(t, err)
	require.Len(t, included, 2)
	require.Equal(t, id0, included[0].ID)
	require.Equal(t, id1, included[1].ID)
	require.Equal(t, commitment.StatusPendingProofGen, included[0].Status)
}

func TestMarkIncludedIdempotentOnIdenticalArgs(t *testing.T) {
	s := New()
	id, _, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerA(), 1, [32]byte{1})
	require.NoError(t, err)

	root := [32]byte{0xCC}
	require.NoError(t, s.MarkIncluded(id, 0, nil, root))
	require.NoError(t, s.MarkIncluded(id, 0, nil, root)) // no-op, not an error
}

func TestMarkIncludedConflictOnDifferentArgs(t *testing.T) {
	s := New()
	id, _, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerA(), 1, [32]byte{1})
	require.NoError(t, err)

	require.NoError(t, s.MarkIncluded(id, 0, nil, [32]byte{0xCC}))

	err = s.MarkIncluded(id, 0, nil, [32]byte{0xDD})
	require.Error(t, err)
	var conflict *engineerr.Conflict
	require.ErrorAs(t, err, &conflict)
}

func TestMarkIncludedConflictOnDuplicateLeafIndex(t *testing.T) {
	s := New()
	id0, _, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerA(), 1, [32]byte{1})
	require.NoError(t, err)
	id1, _, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerA(), 2, [32]byte{2})
	require.NoError(t, err)

	require.NoError(t, s.MarkIncluded(id0, 0, nil, [32]byte{0xAA}))

	err = s.MarkIncluded(id1, 0, nil, [32]byte{0xBB})
	require.Error(t, err)
	var conflict *engineerr.Conflict
	require.ErrorAs(t, err, &conflict)
}

func TestMarkFailedIncrementsRetryCountAndIsIdempotent(t *testing.T) {
	s := New()
	id, _, err := s.InsertCommitment(commitment.AccumulatorMMR, ownerA(), 1, [32]byte{1})
	require.NoError(t, err)

	require.NoError(t, s.MarkFailed(id, "bad hash"))
	require.NoError(t, s.MarkFailed(id, "bad hash again"))

	pending, err := s.FetchPending(commitment.AccumulatorMMR, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
	require.Equal(t, uint32(1), s.rows[id].RetryCount)
}

func TestHealthCheckAfterClose(t *testing.T) {
	s := New()
	require.NoError(t, s.HealthCheck())
	require.NoError(t, s.Close())
	require.Error(t, s.HealthCheck())
}

func TestAcquireBuilderLockRejectsSecondHolderUntilReleased(t *testing.T) {
	s := New()

	granted, err := s.AcquireBuilderLock(commitment.AccumulatorMMR, time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	granted, err = s.AcquireBuilderLock(commitment.AccumulatorMMR, time.Minute)
	require.NoError(t, err)
	require.False(t, granted)

	// A different accumulator kind is an independent lock.
	granted, err = s.AcquireBuilderLock(commitment.AccumulatorPoseidon, time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	require.NoError(t, s.ReleaseBuilderLock(commitment.AccumulatorMMR))

	granted, err = s.AcquireBuilderLock(commitment.AccumulatorMMR, time.Minute)
	require.NoError(t, err)
	require.True(t, granted)
}

func TestAcquireBuilderLockGrantedAfterExpiry(t *testing.T) {
	s := New()

	granted, err := s.AcquireBuilderLock(commitment.AccumulatorMMR, time.Millisecond)
	require.NoError(t, err)
	require.True(t, granted)

	time.Sleep(5 * time.Millisecond)

	granted, err = s.AcquireBuilderLock(commitment.AccumulatorMMR, time.Minute)
	require.NoError(t, err)
	require.True(t, granted)
}

func TestRenewBuilderLockExtendsLease(t *testing.T) {
	s := New()

	granted, err := s.AcquireBuilderLock(commitment.AccumulatorMMR, time.Millisecond)
	require.NoError(t, err)
	require.True(t, granted)

	require.NoError(t, s.RenewBuilderLock(commitment.AccumulatorMMR, time.Minute))

	time.Sleep(5 * time.Millisecond)

	granted, err = s.AcquireBuilderLock(commitment.AccumulatorMMR, time.Minute)
	require.NoError(t, err)
	require.False(t, granted)
}
