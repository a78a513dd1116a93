// Package commitment defines the durable record of a bridge event
// (deposit or withdrawal) and its inclusion state, per spec.md §3, along
// with the proof wire format the store persists and the API/prover
// consume (spec.md §6).
package commitment

// AccumulatorKind tags which accumulator a commitment belongs to. Deposit
// commitments are included in the MMR; withdrawal commitments are
// included in the L2 Poseidon Merkle tree. A builder instance serves
// exactly one kind (spec.md §4.5).
type AccumulatorKind string

const (
	AccumulatorMMR      AccumulatorKind = "mmr"
	AccumulatorPoseidon AccumulatorKind = "poseidon"
)

// Commitment is one row per bridge event, per spec.md §3.
type Commitment struct {
	ID             uint64
	Kind           AccumulatorKind
	OwnerKey       [32]byte
	Amount         uint64
	Nonce          uint64
	CommitmentHash [32]byte
	Status         Status

	// LeafIndex is nil unless Included is true (I1).
	LeafIndex *uint64

	// Proof is nil unless Included is true.
	Proof *Proof

	// MerkleRoot is nil unless Included is true; it is the accumulator
	// root immediately after this leaf was appended (I6).
	MerkleRoot *[32]byte

	Included   bool
	RetryCount uint32
}

// ReadyForInclusion reports whether c is eligible to be picked up by
// fetch_pending: pending status and not yet included.
func (c *Commitment) ReadyForInclusion() bool {
	return c.Status == StatusPendingTreeInclusion && !c.Included
}
