package badger

import (
	"testing"
	"time"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/engineerr"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/logger"
	"github.com/stretchr/testify/require"
)

func testOwner(b byte) [32]byte { var o [32]byte; o[31] = b; return o }

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bs, err := New(tmpDir, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })
	return bs
}

func TestBadgerInsertAndFetchPending(t *testing.T) {
	bs := newTestStore(t)

	id, nonce, err := bs.InsertCommitment(commitment.AccumulatorMMR, testOwner(1), 100, [32]byte{7})
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)
	require.Equal(t, uint64(0), nonce)

	pending, err := bs.FetchPending(commitment.AccumulatorMMR, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, id, pending[0].ID)
	require.Equal(t, commitment.StatusPendingTreeInclusion, pending[0].Status)
}

func TestBadgerNonceContiguousPerOwner(t *testing.T) {
	bs := newTestStore(t)

	_, n0, err := bs.InsertCommitment(commitment.AccumulatorMMR, testOwner(1), 1, [32]byte{1})
	require.NoError(t, err)
	_, n1, err := bs.InsertCommitment(commitment.AccumulatorMMR, testOwner(1), 2, [32]byte{2})
	require.NoError(t, err)
	_, n2, err := bs.InsertCommitment(commitment.AccumulatorMMR, testOwner(2), 3, [32]byte{3})
	require.NoError(t, err)

	require.Equal(t, uint64(0), n0)
	require.Equal(t, uint64(1), n1)
	require.Equal(t, uint64(0), n2)
}

func TestBadgerMarkIncludedPersistsAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bs, err := New(tmpDir, testLogger)
	require.NoError(t, err)

	id, _, err := bs.InsertCommitment(commitment.AccumulatorMMR, testOwner(1), 1, [32]byte{9})
	require.NoError(t, err)
	root := [32]byte{0xAB}
	require.NoError(t, bs.MarkIncluded(id, 0, nil, root))
	require.NoError(t, bs.Close())

	reopened, err := New(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	included, err := reopened.FetchAllIncludedOrdered(commitment.AccumulatorMMR)
	require.NoError(t, err)
	require.Len(t, included, 1)
	require.Equal(t, id, included[0].ID)
	require.Equal(t, uint64(0), *included[0].LeafIndex)
	require.Equal(t, root, *included[0].MerkleRoot)
}

func TestBadgerMarkIncludedConflictOnDuplicateLeafIndex(t *testing.T) {
	bs := newTestStore(t)

	id0, _, err := bs.InsertCommitment(commitment.AccumulatorMMR, testOwner(1), 1, [32]byte{1})
	require.NoError(t, err)
	id1, _, err := bs.InsertCommitment(commitment.AccumulatorMMR, testOwner(1), 2, [32]byte{2})
	require.NoError(t, err)

	require.NoError(t, bs.MarkIncluded(id0, 0, nil, [32]byte{0xAA}))

	err = bs.MarkIncluded(id1, 0, nil, [32]byte{0xBB})
	require.Error(t, err)
	var conflict *engineerr.Conflict
	require.ErrorAs(t, err, &conflict)
}

func TestBadgerMarkFailedIsIdempotent(t *testing.T) {
	bs := newTestStore(t)

	id, _, err := bs.InsertCommitment(commitment.AccumulatorMMR, testOwner(1), 1, [32]byte{1})
	require.NoError(t, err)

	require.NoError(t, bs.MarkFailed(id, "bad hash"))
	require.NoError(t, bs.MarkFailed(id, "bad hash"))

	pending, err := bs.FetchPending(commitment.AccumulatorMMR, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestBadgerHealthCheck(t *testing.T) {
	bs := newTestStore(t)
	require.NoError(t, bs.HealthCheck())
}

func TestBadgerAcquireBuilderLockRejectsSecondHolderUntilReleased(t *testing.T) {
	bs := newTestStore(t)

	granted, err := bs.AcquireBuilderLock(commitment.AccumulatorMMR, time.Minute)
	require.NoError(t, err)
	require.True(t, granted)

	granted, err = bs.AcquireBuilderLock(commitment.AccumulatorMMR, time.Minute)
	require.NoError(t, err)
	require.False(t, granted)

	require.NoError(t, bs.ReleaseBuilderLock(commitment.AccumulatorMMR))

	granted, err = bs.AcquireBuilderLock(commitment.AccumulatorMMR, time.Minute)
	require.NoError(t, err)
	require.True(t, granted)
}

func TestBadgerAcquireBuilderLockGrantedAfterExpiry(t *testing.T) {
	bs := newTestStore(t)

	granted, err := bs.AcquireBuilderLock(commitment.AccumulatorMMR, time.Millisecond)
	require.NoError(t, err)
	require.True(t, granted)

	time.Sleep(5 * time.Millisecond)

	granted, err = bs.AcquireBuilderLock(commitment.AccumulatorMMR, time.Minute)
	require.NoError(t, err)
	require.True(t, granted)
}

func TestBadgerRenewBuilderLockExtendsLease(t *testing.T) {
	bs := newTestStore(t)

	granted, err := bs.AcquireBuilderLock(commitment.AccumulatorMMR, time.Millisecond)
	require.NoError(t, err)
	require.True(t, granted)

	require.NoError(t, bs.RenewBuilderLock(commitment.AccumulatorMMR, time.Minute))

	time.Sleep(5 * time.Millisecond)

	granted, err = bs.AcquireBuilderLock(commitment.AccumulatorMMR, time.Minute)
	require.NoError(t, err)
	require.False(t, granted)
}
