package store

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/commitment"
)

// commitmentRecord is the durable JSON shape for a commitment row. Fixed
// 32-byte fields are hex-encoded for the same reason spec.md §6 mandates
// hex for wire proofs: byte arrays aren't human-inspectable as raw JSON
// number arrays, and badger's value log is often inspected by hand during
// incident response.
type commitmentRecord struct {
	ID             uint64          `json:"id"`
	Kind           string          `json:"kind"`
	OwnerKey       string          `json:"owner_key"`
	Amount         uint64          `json:"amount"`
	Nonce          uint64          `json:"nonce"`
	CommitmentHash string          `json:"commitment_hash"`
	Status         string          `json:"status"`
	LeafIndex      *uint64         `json:"leaf_index,omitempty"`
	Proof          json.RawMessage `json:"proof,omitempty"`
	MerkleRoot     *string         `json:"merkle_root,omitempty"`
	Included       bool            `json:"included"`
	RetryCount     uint32          `json:"retry_count"`
}

// MarshalCommitment serializes a Commitment row to JSON bytes.
func MarshalCommitment(c *commitment.Commitment) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("cannot marshal nil Commitment")
	}

	rec := commitmentRecord{
		ID:             c.ID,
		Kind:           string(c.Kind),
		OwnerKey:       "0x" + hex.EncodeToString(c.OwnerKey[:]),
		Amount:         c.Amount,
		Nonce:          c.Nonce,
		CommitmentHash: "0x" + hex.EncodeToString(c.CommitmentHash[:]),
		Status:         string(c.Status),
		LeafIndex:      c.LeafIndex,
		Included:       c.Included,
		RetryCount:     c.RetryCount,
	}

	if c.MerkleRoot != nil {
		root := "0x" + hex.EncodeToString(c.MerkleRoot[:])
		rec.MerkleRoot = &root
	}

	if c.Proof != nil {
		raw, err := json.Marshal(c.Proof)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal proof: %w", err)
		}
		rec.Proof = raw
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Commitment to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalCommitment deserializes a Commitment row from JSON bytes.
func UnmarshalCommitment(data []byte) (*commitment.Commitment, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var rec commitmentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to Commitment: %w", err)
	}

	status, err := commitment.ParseStatus(rec.Status)
	if err != nil {
		return nil, err
	}

	c := &commitment.Commitment{
		ID:         rec.ID,
		Kind:       commitment.AccumulatorKind(rec.Kind),
		Amount:     rec.Amount,
		Nonce:      rec.Nonce,
		Status:     status,
		LeafIndex:  rec.LeafIndex,
		Included:   rec.Included,
		RetryCount: rec.RetryCount,
	}

	if err := decodeHex32(rec.OwnerKey, &c.OwnerKey); err != nil {
		return nil, fmt.Errorf("owner_key: %w", err)
	}
	if err := decodeHex32(rec.CommitmentHash, &c.CommitmentHash); err != nil {
		return nil, fmt.Errorf("commitment_hash: %w", err)
	}

	if rec.MerkleRoot != nil {
		var root [32]byte
		if err := decodeHex32(*rec.MerkleRoot, &root); err != nil {
			return nil, fmt.Errorf("merkle_root: %w", err)
		}
		c.MerkleRoot = &root
	}

	if len(rec.Proof) > 0 {
		proof, err := commitment.UnmarshalProofAs(c.Kind, rec.Proof)
		if err != nil {
			return nil, fmt.Errorf("proof: %w", err)
		}
		c.Proof = proof
	}

	return c, nil
}

func decodeHex32(s string, out *[32]byte) error {
	if len(s) != 66 || s[0:2] != "0x" {
		return fmt.Errorf("expected 0x-prefixed 64-hex-digit string, got %q", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return err
	}
	copy(out[:], b)
	return nil
}
