package mmr

import (
	"math/bits"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/hash"
)

func newLeafMountain(globalIndex uint64, leafHash [32]byte) *mountain {
	return &mountain{
		height:      0,
		rows:        [][][32]byte{{leafHash}},
		leafIndices: []uint64{globalIndex},
	}
}

// merge combines two equal-height mountains (a older/left, b newer/right)
// into the perfect binary subtree one height taller.
func merge(a, b *mountain) *mountain {
	rows := make([][][32]byte, a.height+2)
	for i := 0; i <= a.height; i++ {
		row := make([][32]byte, 0, len(a.rows[i])+len(b.rows[i]))
		row = append(row, a.rows[i]...)
		row = append(row, b.rows[i]...)
		rows[i] = row
	}
	rows[a.height+1] = [][32]byte{hash.KeccakPair(a.root(), b.root())}

	leafIndices := make([]uint64, 0, len(a.leafIndices)+len(b.leafIndices))
	leafIndices = append(leafIndices, a.leafIndices...)
	leafIndices = append(leafIndices, b.leafIndices...)

	return &mountain{height: a.height + 1, rows: rows, leafIndices: leafIndices}
}

// Append appends leaf (its raw 32-byte value; hashed with keccak_single
// before insertion) to the accumulator, merging equal-height peaks as a
// binary counter increment would carry. It returns the leaf's 0-based
// position, the current peaks (largest-first), and the new root.
func (m *MMR) Append(leaf [32]byte) (leafPosition uint64, peaks [][32]byte, root [32]byte, err error) {
	leafHash := hash.KeccakSingle(leaf)
	globalIndex := uint64(len(m.leafOwner))

	cur := newLeafMountain(globalIndex, leafHash)
	m.mountains = append(m.mountains, cur)
	m.leafOwner = append(m.leafOwner, leafRef{m: cur, local: 0})

	for len(m.mountains) >= 2 {
		n := len(m.mountains)
		a, b := m.mountains[n-2], m.mountains[n-1]
		if a.height != b.height {
			break
		}
		merged := merge(a, b)
		m.mountains = m.mountains[:n-2]
		m.mountains = append(m.mountains, merged)

		for i, idx := range merged.leafIndices {
			m.leafOwner[idx] = leafRef{m: merged, local: i}
		}
	}

	return globalIndex, m.Peaks(), m.Root(), nil
}

// Peaks returns the current peak hashes, largest height first.
func (m *MMR) Peaks() [][32]byte {
	peaks := make([][32]byte, len(m.mountains))
	for i, mt := range m.mountains {
		peaks[i] = mt.root()
	}
	return peaks
}

// Root returns the current bound root for this accumulator.
func (m *MMR) Root() [32]byte {
	return Root(m.Size(), m.Peaks())
}

// siblingPath walks leafPosition's owning mountain bottom-up, collecting
// the sibling hash at each level.
func (m *MMR) siblingPath(leafPosition uint64) ([][32]byte, error) {
	if leafPosition >= uint64(len(m.leafOwner)) {
		return nil, errOutOfRange(leafPosition, uint64(len(m.leafOwner)))
	}

	ref := m.leafOwner[leafPosition]
	siblings := make([][32]byte, 0, ref.m.height)
	local := ref.local
	for level := 0; level < ref.m.height; level++ {
		row := ref.m.rows[level]
		var siblingIdx int
		if local%2 == 0 {
			siblingIdx = local + 1
		} else {
			siblingIdx = local - 1
		}
		siblings = append(siblings, row[siblingIdx])
		local /= 2
	}
	return siblings, nil
}

// ProofForLeaf builds the inclusion proof for the leaf at leafPosition.
// leaf must be the original (pre-hash) value supplied to Append — the MMR
// only retains keccak_single(leaf) internally in its mountain rows, so the
// caller (which already knows the commitment hash it appended) passes it
// back in here rather than the accumulator trying to recover it.
func (m *MMR) ProofForLeaf(leafPosition uint64, leaf [32]byte) (*Proof, error) {
	siblings, err := m.siblingPath(leafPosition)
	if err != nil {
		return nil, err
	}

	return &Proof{
		LeafIndex:     uint32(leafPosition),
		LeafValue:     leaf,
		SiblingHashes: siblings,
		Peaks:         m.Peaks(),
		MMRSize:       uint32(m.Size()),
	}, nil
}

// Verify checks that proof attests leaf's inclusion under expectedRoot.
func Verify(leaf [32]byte, proof *Proof, expectedRoot [32]byte) bool {
	if proof == nil || proof.LeafValue != leaf {
		return false
	}

	if Root(uint64(proof.MMRSize), proof.Peaks) != expectedRoot {
		return false
	}

	n, ok := leafCountFromSize(uint64(proof.MMRSize))
	if !ok {
		return false
	}

	ranges := peakRanges(n)
	if len(ranges) != len(proof.Peaks) {
		return false
	}

	leafIdx := uint64(proof.LeafIndex)
	peakIdx := -1
	var local uint64
	for i, r := range ranges {
		if leafIdx >= r.Start && leafIdx < r.Start+r.Size {
			peakIdx = i
			local = leafIdx - r.Start
			break
		}
	}
	if peakIdx < 0 {
		return false
	}

	height := bits.Len64(ranges[peakIdx].Size) - 1
	if len(proof.SiblingHashes) != height {
		return false
	}

	h := hash.KeccakSingle(leaf)
	pos := local
	for k := 0; k < height; k++ {
		sibling := proof.SiblingHashes[k]
		if pos%2 == 0 {
			h = hash.KeccakPair(h, sibling)
		} else {
			h = hash.KeccakPair(sibling, h)
		}
		pos /= 2
	}

	for _, p := range proof.Peaks {
		if p == h {
			return true
		}
	}
	return false
}
