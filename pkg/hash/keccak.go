package hash

import "github.com/ethereum/go-ethereum/crypto"

// KeccakSingle computes keccak256(x). Output is the full 32-byte digest;
// no truncation.
func KeccakSingle(x [32]byte) [32]byte {
	return [32]byte(crypto.Keccak256Hash(x[:]))
}

// KeccakPair computes keccak256(l || r), left then right concatenation.
func KeccakPair(l, r [32]byte) [32]byte {
	buf := make([]byte, 64)
	copy(buf[:32], l[:])
	copy(buf[32:], r[:])
	return [32]byte(crypto.Keccak256Hash(buf))
}
