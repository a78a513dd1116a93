package builder

import (
	"fmt"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/mmr"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/poseidontree"
)

// accumulator is the uniform operation set spec.md §9 calls for: a small
// tagged variant over (Mmr, PoseidonTree) rather than runtime
// polymorphism, narrowed to exactly what the builder's control loop needs.
type accumulator interface {
	kind() commitment.AccumulatorKind
	leafCount() int
	root() [32]byte
	append(leaf [32]byte) (leafIndex uint64, newRoot [32]byte, err error)
	proofFor(leafIndex uint64, leaf [32]byte) (*commitment.Proof, error)
	snapshot() any
	restore(snap any)
}

// mmrAccumulator adapts pkg/mmr.MMR to the accumulator interface.
type mmrAccumulator struct {
	m *mmr.MMR
}

func newMMRAccumulator() *mmrAccumulator {
	return &mmrAccumulator{m: mmr.New()}
}

func (a *mmrAccumulator) kind() commitment.AccumulatorKind { return commitment.AccumulatorMMR }
func (a *mmrAccumulator) leafCount() int                   { return int(a.m.LeafCount()) }
func (a *mmrAccumulator) root() [32]byte                   { return a.m.Root() }

func (a *mmrAccumulator) append(leaf [32]byte) (uint64, [32]byte, error) {
	pos, _, root, err := a.m.Append(leaf)
	return pos, root, err
}

func (a *mmrAccumulator) proofFor(leafIndex uint64, leaf [32]byte) (*commitment.Proof, error) {
	p, err := a.m.ProofForLeaf(leafIndex, leaf)
	if err != nil {
		return nil, err
	}
	return commitment.FromMMRProof(p), nil
}

func (a *mmrAccumulator) snapshot() any { return a.m.Snapshot() }

func (a *mmrAccumulator) restore(snap any) {
	a.m.Restore(snap.(mmr.Snapshot))
}

// poseidonAccumulator adapts poseidontree's batch-built contract (spec.md
// §4.2) to the builder's per-leaf append model: each append re-runs Build
// over every leaf seen so far. This matches the tree's documented
// construction rule exactly (a *batch*-built Merkle tree) rather
// than inventing an incremental Poseidon update the spec never describes.
type poseidonAccumulator struct {
	leaves [][32]byte
	tree   *poseidontree.Tree
}

func newPoseidonAccumulator() *poseidonAccumulator {
	return &poseidonAccumulator{}
}

func (a *poseidonAccumulator) kind() commitment.AccumulatorKind {
	return commitment.AccumulatorPoseidon
}

func (a *poseidonAccumulator) leafCount() int { return len(a.leaves) }

func (a *poseidonAccumulator) root() [32]byte {
	if a.tree == nil {
		return [32]byte{}
	}
	return a.tree.Root()
}

func (a *poseidonAccumulator) append(leaf [32]byte) (uint64, [32]byte, error) {
	candidate := append(append([][32]byte(nil), a.leaves...), leaf)
	tree, err := poseidontree.Build(candidate)
	if err != nil {
		return 0, [32]byte{}, err
	}
	a.leaves = candidate
	a.tree = tree
	return uint64(len(a.leaves) - 1), tree.Root(), nil
}

func (a *poseidonAccumulator) proofFor(leafIndex uint64, leaf [32]byte) (*commitment.Proof, error) {
	if a.tree == nil {
		return nil, fmt.Errorf("builder: poseidon tree is empty")
	}
	p, err := a.tree.ProofFor(int(leafIndex))
	if err != nil {
		return nil, err
	}
	return commitment.FromPoseidonProof(p), nil
}

// poseidonSnapshot captures the leaf slice and derived tree for rollback.
// Rebuilding candidate slices on append never mutates a, so the snapshot
// only needs to remember the shorter leaf slice and its tree.
type poseidonSnapshot struct {
	leaves [][32]byte
	tree   *poseidontree.Tree
}

func (a *poseidonAccumulator) snapshot() any {
	return poseidonSnapshot{leaves: a.leaves, tree: a.tree}
}

func (a *poseidonAccumulator) restore(snap any) {
	s := snap.(poseidonSnapshot)
	a.leaves = s.leaves
	a.tree = s.tree
}
