package poseidontree

import "fmt"

// BuildError reports a failure while constructing a Tree.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string { return "poseidontree: build: " + e.Reason }

// ErrEmptyLeaves is returned by Build when given no leaves.
var ErrEmptyLeaves = &BuildError{Reason: "EmptyLeaves"}

// ErrInvalidDepth is returned by Build when the leaf count exceeds
// 2^tree_depth for the configured tree depth.
var ErrInvalidDepth = &BuildError{Reason: "InvalidDepth"}

// ProofError reports a failure producing or checking a Proof.
type ProofError struct {
	Reason string
	Detail string
}

func (e *ProofError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("poseidontree: proof: %s", e.Reason)
	}
	return fmt.Sprintf("poseidontree: proof: %s: %s", e.Reason, e.Detail)
}

// errOutOfRange builds the OutOfRange error ProofFor returns when the
// index is outside the tree.
func errOutOfRange(index int, n int) *ProofError {
	return &ProofError{Reason: "OutOfRange", Detail: fmt.Sprintf("index %d, %d leaves", index, n)}
}

// ErrLeafNotFound is returned when a leaf value cannot be located in the tree.
var ErrLeafNotFound = &ProofError{Reason: "LeafNotFound"}

// ErrInvalidProof names the InvalidProof failure kind. No function in this
// package returns it: Verify reports a failed proof as a plain false.
var ErrInvalidProof = &ProofError{Reason: "InvalidProof"}
