// Package poseidontree builds the L2 Merkle tree over Poseidon leaves,
// relayed back to L1 for withdrawal verification. The tree's height is the
// smallest that holds its leaves; it is not padded to a fixed depth.
// It is structurally the teacher's pkg/merkle.MerkleTree
// generalized from keccak to Poseidon and from "acknowledgement" leaves to
// opaque, already-hashed commitment leaves.
package poseidontree

// Tree is a balanced binary Merkle tree built with poseidon_pair.
type Tree struct {
	// leaves are the original leaf values in insertion order.
	leaves [][32]byte

	// levels stores every level of the tree bottom-up; levels[0] is the
	// leaves, levels[len(levels)-1] is the single-node root level.
	levels [][][32]byte
}

// Proof is the ordered sibling path from a leaf to the tree's root.
type Proof struct {
	Leaf     [32]byte
	Siblings [][32]byte
	Root     [32]byte
	Index    uint64
}
