package mmr

import "fmt"

// ProofError is the MMR error taxonomy from spec.md §4.3.
type ProofError struct {
	Reason string
	Detail string
}

func (e *ProofError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("mmr: %s", e.Reason)
	}
	return fmt.Sprintf("mmr: %s: %s", e.Reason, e.Detail)
}

// The values below name the verification failure kinds. No function in
// this package returns them: Verify reports each of these conditions as a
// plain false.
var (
	// ErrInvalidMmrSize names a proof whose mmr_size does not correspond
	// to any valid leaf count.
	ErrInvalidMmrSize = &ProofError{Reason: "InvalidMmrSize"}
	// ErrInvalidProof names a malformed proof shape (wrong sibling count
	// for the indicated leaf position).
	ErrInvalidProof = &ProofError{Reason: "InvalidProof"}
	// ErrUnknownPeak names a recomputed peak that is not present in
	// proof.Peaks.
	ErrUnknownPeak = &ProofError{Reason: "UnknownPeak"}
)

func errOutOfRange(pos uint64, count uint64) *ProofError {
	return &ProofError{Reason: "OutOfRange", Detail: fmt.Sprintf("leaf position %d, %d leaves", pos, count)}
}
