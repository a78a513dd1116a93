package poseidontree

import (
	"bytes"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/hash"
)

// Build constructs a balanced binary Merkle tree over leaves (already
// commitment-hashed) using poseidon_pair. Level 0 is the leaves in
// insertion order; for level k, adjacent nodes are paired, duplicating the
// last node into itself when the level has an odd count, until a single
// root node remains. A one-leaf tree's root is that leaf unchanged — no
// additional hashing is applied, since the leaf is already a commitment
// hash and there is nothing to pair it with.
func Build(leaves [][32]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyLeaves
	}

	levels := make([][][32]byte, 0, 1)
	current := make([][32]byte, len(leaves))
	copy(current, leaves)
	levels = append(levels, current)

	for len(current) > 1 {
		next := make([][32]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := current[i]
			if i+1 < len(current) {
				right = current[i+1]
			}
			parent, err := hash.PoseidonPair(left, right)
			if err != nil {
				return nil, err
			}
			next = append(next, parent)
		}
		levels = append(levels, next)
		current = next
	}

	return &Tree{leaves: append([][32]byte(nil), leaves...), levels: levels}, nil
}

// BuildBounded behaves like Build but additionally rejects leaf counts
// that would not fit within a tree of the given depth.
func BuildBounded(leaves [][32]byte, depth int) (*Tree, error) {
	if depth >= 0 && depth < 63 {
		if uint64(len(leaves)) > (uint64(1) << uint(depth)) {
			return nil, ErrInvalidDepth
		}
	}
	return Build(leaves)
}

// Root returns the tree's root. Panics only if the tree is empty, which
// Build never produces.
func (t *Tree) Root() [32]byte {
	last := t.levels[len(t.levels)-1]
	return last[0]
}

// Len returns the number of leaves in the tree.
func (t *Tree) Len() int { return len(t.leaves) }

// ProofFor builds the inclusion proof for the leaf at index.
func (t *Tree) ProofFor(index int) (*Proof, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, errOutOfRange(index, len(t.leaves))
	}

	siblings := make([][32]byte, 0, len(t.levels)-1)
	i := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		var siblingIdx int
		if i%2 == 0 {
			siblingIdx = i + 1
		} else {
			siblingIdx = i - 1
		}
		if siblingIdx >= len(nodes) || siblingIdx < 0 {
			siblingIdx = i
		}
		siblings = append(siblings, nodes[siblingIdx])
		i /= 2
	}

	return &Proof{
		Leaf:     t.leaves[index],
		Siblings: siblings,
		Root:     t.Root(),
		Index:    uint64(index),
	}, nil
}

// IndexOf returns the index of leaf in the tree, or ErrLeafNotFound.
func (t *Tree) IndexOf(leaf [32]byte) (int, error) {
	for i, l := range t.leaves {
		if bytes.Equal(l[:], leaf[:]) {
			return i, nil
		}
	}
	return 0, ErrLeafNotFound
}

// Verify checks proof against its embedded root by folding from the leaf:
// starting with h = proof.Leaf, for each sibling s at level k, h =
// poseidon_pair(h, s) if bit k of proof.Index is 0, else poseidon_pair(s, h).
// Accepts iff the folded h equals proof.Root.
func Verify(proof *Proof) bool {
	if proof == nil {
		return false
	}

	h := proof.Leaf
	for k, sibling := range proof.Siblings {
		bit := (proof.Index >> uint(k)) & 1
		var err error
		if bit == 0 {
			h, err = hash.PoseidonPair(h, sibling)
		} else {
			h, err = hash.PoseidonPair(sibling, h)
		}
		if err != nil {
			return false
		}
	}

	return h == proof.Root
}
