package hash

import "fmt"

// DomainError reports a value that cannot be interpreted as an element of
// the field a hash family operates over (treated as a validation error by
// callers: reject at entry, no state change).
type DomainError struct {
	// Family names which hash family rejected the value ("poseidon").
	Family string
	// Len is the byte length of the rejected value (the value itself is
	// never embedded in the error to keep error strings safe to log).
	Len int
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("hash: %s: %d-byte value exceeds field modulus", e.Family, e.Len)
}
