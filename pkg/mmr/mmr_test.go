package mmr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func leafAt(i byte) [32]byte {
	var l [32]byte
	l[31] = i
	return l
}

func TestAppendSingleLeafVerifies(t *testing.T) {
	m := New()
	leaf := leafAt(0x2A)
	pos, _, root, err := m.Append(leaf)
	require.NoError(t, err)
	require.Equal(t, uint64(0), pos)

	proof, err := m.ProofForLeaf(pos, leaf)
	require.NoError(t, err)
	require.True(t, Verify(leaf, proof, root))
}

func TestEveryLeafVerifiesAgainstCurrentRootAcrossSizes(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 6, 7, 8, 15, 16, 17} {
		m := New()
		leaves := make([][32]byte, n)
		for i := 0; i < n; i++ {
			leaves[i] = leafAt(byte(i + 1))
			_, _, _, err := m.Append(leaves[i])
			require.NoError(t, err)
		}

		root := m.Root()
		for i := 0; i < n; i++ {
			proof, err := m.ProofForLeaf(uint64(i), leaves[i])
			require.NoError(t, err)
			require.True(t, Verify(leaves[i], proof, root), "leaf %d of %d should verify", i, n)
		}
	}
}

func TestProofStillVerifiesAfterLaterAppends(t *testing.T) {
	m := New()
	leaf0 := leafAt(1)
	_, _, _, err := m.Append(leaf0)
	require.NoError(t, err)

	for i := 2; i <= 6; i++ {
		_, _, _, err := m.Append(leafAt(byte(i)))
		require.NoError(t, err)
	}

	root := m.Root()
	proof, err := m.ProofForLeaf(0, leaf0)
	require.NoError(t, err)
	require.True(t, Verify(leaf0, proof, root))
}

func TestTamperedSiblingRejected(t *testing.T) {
	// Scenario 2 from spec.md §8, with a second leaf appended so that
	// leaf 0's proof has a sibling whose byte can be flipped.
	m := New()
	leaf := leafAt(0x2A)
	_, _, _, err := m.Append(leaf)
	require.NoError(t, err)

	other := leafAt(0x99)
	_, _, root, err := m.Append(other)
	require.NoError(t, err)

	proof, err := m.ProofForLeaf(0, leaf)
	require.NoError(t, err)
	require.True(t, Verify(leaf, proof, root))

	tampered := *proof
	tampered.SiblingHashes = append([][32]byte(nil), proof.SiblingHashes...)
	tampered.SiblingHashes[0][0] ^= 0xFF
	require.False(t, Verify(leaf, &tampered, root))
}

func TestWrongLeafRejected(t *testing.T) {
	m := New()
	leaf := leafAt(1)
	_, _, _, err := m.Append(leaf)
	require.NoError(t, err)
	_, _, root, err := m.Append(leafAt(2))
	require.NoError(t, err)

	proof, err := m.ProofForLeaf(0, leaf)
	require.NoError(t, err)
	require.False(t, Verify(leafAt(99), proof, root))
}

func TestProofForLeafOutOfRange(t *testing.T) {
	m := New()
	_, _, _, err := m.Append(leafAt(1))
	require.NoError(t, err)

	_, err = m.ProofForLeaf(5, leafAt(1))
	require.Error(t, err)

	var pe *ProofError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "OutOfRange", pe.Reason)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m := New()
	for i := 1; i <= 3; i++ {
		_, _, _, err := m.Append(leafAt(byte(i)))
		require.NoError(t, err)
	}
	snap := m.Snapshot()
	rootBefore := m.Root()

	_, _, _, err := m.Append(leafAt(4))
	require.NoError(t, err)
	require.NotEqual(t, rootBefore, m.Root())

	m.Restore(snap)
	require.Equal(t, rootBefore, m.Root())
	require.Equal(t, uint64(3), m.LeafCount())
}

func TestSizeForLeafCountAndInverse(t *testing.T) {
	for n := uint64(0); n < 64; n++ {
		size := sizeForLeafCount(n)
		got, ok := leafCountFromSize(size)
		require.True(t, ok)
		require.Equal(t, n, got)
	}
}

func TestLeafCountFromSizeRejectsInvalidSize(t *testing.T) {
	_, ok := leafCountFromSize(2)
	require.False(t, ok)
}

func TestPeakRangesCoverLeafCountExactly(t *testing.T) {
	for _, n := range []uint64{1, 2, 3, 5, 7, 11, 16, 31} {
		ranges := peakRanges(n)
		var total uint64
		for _, r := range ranges {
			total += r.Size
		}
		require.Equal(t, n, total)
	}
}

func TestRootChangesWithSize(t *testing.T) {
	peaks := [][32]byte{leafAt(1), leafAt(2)}
	r1 := Root(3, peaks)
	r2 := Root(4, peaks)
	require.NotEqual(t, r1, r2)
}
