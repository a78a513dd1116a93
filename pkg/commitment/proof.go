package commitment

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/mmr"
	"github.com/Layr-Labs/bridge-commitment-engine/pkg/poseidontree"
)

// hex32 is a 32-byte word serialized as a lowercase, 0x-prefixed, 64-hex-digit
// string, per spec.md §6's wire format.
type hex32 [32]byte

func (h hex32) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(h[:]))
}

func (h *hex32) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) != 66 || s[0] != '0' || s[1] != 'x' {
		return fmt.Errorf("commitment: hex32 must be 0x-prefixed and 64 hex digits, got %q", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return fmt.Errorf("commitment: invalid hex32 %q: %w", s, err)
	}
	copy(h[:], b)
	return nil
}

// PoseidonProofWire is the exact wire shape for L2 Poseidon proofs, per
// spec.md §6: {leaf, siblings, root, index}.
type PoseidonProofWire struct {
	Leaf     hex32   `json:"leaf"`
	Siblings []hex32 `json:"siblings"`
	Root     hex32   `json:"root"`
	Index    uint64  `json:"index"`
}

// MMRProofWire is the exact wire shape for MMR proofs, per spec.md §6:
// {leaf_index, leaf_value, sibling_hashes, peaks, mmr_size}.
type MMRProofWire struct {
	LeafIndex     uint32  `json:"leaf_index"`
	LeafValue     hex32   `json:"leaf_value"`
	SiblingHashes []hex32 `json:"sibling_hashes"`
	Peaks         []hex32 `json:"peaks"`
	MMRSize       uint32  `json:"mmr_size"`
}

// Proof is the structured value stored on a Commitment row: exactly one
// of Poseidon or MMR is set, matching the commitment's AccumulatorKind.
type Proof struct {
	Poseidon *PoseidonProofWire
	MMR      *MMRProofWire
}

// FromPoseidonProof converts an in-memory poseidontree.Proof to its wire
// form.
func FromPoseidonProof(p *poseidontree.Proof) *Proof {
	siblings := make([]hex32, len(p.Siblings))
	for i, s := range p.Siblings {
		siblings[i] = hex32(s)
	}
	return &Proof{Poseidon: &PoseidonProofWire{
		Leaf:     hex32(p.Leaf),
		Siblings: siblings,
		Root:     hex32(p.Root),
		Index:    p.Index,
	}}
}

// ToPoseidonProof converts a wire-form Poseidon proof back to the
// in-memory type expected by poseidontree.Verify.
func (p *Proof) ToPoseidonProof() (*poseidontree.Proof, error) {
	if p == nil || p.Poseidon == nil {
		return nil, fmt.Errorf("commitment: not a poseidon proof")
	}
	w := p.Poseidon
	siblings := make([][32]byte, len(w.Siblings))
	for i, s := range w.Siblings {
		siblings[i] = [32]byte(s)
	}
	return &poseidontree.Proof{
		Leaf:     [32]byte(w.Leaf),
		Siblings: siblings,
		Root:     [32]byte(w.Root),
		Index:    w.Index,
	}, nil
}

// FromMMRProof converts an in-memory mmr.Proof to its wire form.
func FromMMRProof(p *mmr.Proof) *Proof {
	siblings := make([]hex32, len(p.SiblingHashes))
	for i, s := range p.SiblingHashes {
		siblings[i] = hex32(s)
	}
	peaks := make([]hex32, len(p.Peaks))
	for i, pk := range p.Peaks {
		peaks[i] = hex32(pk)
	}
	return &Proof{MMR: &MMRProofWire{
		LeafIndex:     p.LeafIndex,
		LeafValue:     hex32(p.LeafValue),
		SiblingHashes: siblings,
		Peaks:         peaks,
		MMRSize:       p.MMRSize,
	}}
}

// ToMMRProof converts a wire-form MMR proof back to the in-memory type
// expected by mmr.Verify.
func (p *Proof) ToMMRProof() (*mmr.Proof, error) {
	if p == nil || p.MMR == nil {
		return nil, fmt.Errorf("commitment: not an mmr proof")
	}
	w := p.MMR
	siblings := make([][32]byte, len(w.SiblingHashes))
	for i, s := range w.SiblingHashes {
		siblings[i] = [32]byte(s)
	}
	peaks := make([][32]byte, len(w.Peaks))
	for i, pk := range w.Peaks {
		peaks[i] = [32]byte(pk)
	}
	return &mmr.Proof{
		LeafIndex:     w.LeafIndex,
		LeafValue:     [32]byte(w.LeafValue),
		SiblingHashes: siblings,
		Peaks:         peaks,
		MMRSize:       w.MMRSize,
	}, nil
}

// MarshalJSON emits whichever of Poseidon/MMR is set, matching the exact
// field sets from spec.md §6 (no wrapping object).
func (p Proof) MarshalJSON() ([]byte, error) {
	if p.Poseidon != nil {
		return json.Marshal(p.Poseidon)
	}
	if p.MMR != nil {
		return json.Marshal(p.MMR)
	}
	return nil, fmt.Errorf("commitment: proof has neither poseidon nor mmr form set")
}

// UnmarshalProofAs parses raw as the wire form appropriate to kind.
func UnmarshalProofAs(kind AccumulatorKind, raw []byte) (*Proof, error) {
	switch kind {
	case AccumulatorPoseidon:
		var w PoseidonProofWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &Proof{Poseidon: &w}, nil
	case AccumulatorMMR:
		var w MMRProofWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &Proof{MMR: &w}, nil
	default:
		return nil, fmt.Errorf("commitment: unrecognized accumulator kind %q", kind)
	}
}
