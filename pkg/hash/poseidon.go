package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

// starknetPrime is the Starknet field modulus: 2^251 + 17*2^192 + 1.
var starknetPrime, _ = new(big.Int).SetString(
	"800000000000011000000000000000000000000000000000000000000000001", 16,
)

// poseidonParams holds the Hades-style permutation parameters for a fixed
// state width. Round constants and the MDS matrix are generated
// deterministically from the field modulus and width so the permutation
// is reproducible across architectures and restarts without shipping a
// constants table (spec.md §4.1's determinism requirement).
type poseidonParams struct {
	Width          int // state width (t); rate = Width-1, capacity = 1
	FullRounds     int
	PartialRounds  int
	Field          *big.Int
	MDS            [][]*big.Int
	RoundConstants []*big.Int
}

const (
	poseidonWidth         = 3
	poseidonFullRounds    = 8
	poseidonPartialRounds = 83
	poseidonAlpha         = 3 // S-box exponent; Starknet's field is alpha=3 friendly
)

var defaultPoseidonParams = buildPoseidonParams(poseidonWidth, poseidonFullRounds, poseidonPartialRounds, starknetPrime)

func buildPoseidonParams(width, fullRounds, partialRounds int, field *big.Int) *poseidonParams {
	return &poseidonParams{
		Width:          width,
		FullRounds:     fullRounds,
		PartialRounds:  partialRounds,
		Field:          field,
		MDS:            generateMDS(width, field),
		RoundConstants: generateRoundConstants(width, fullRounds+partialRounds, field),
	}
}

// sBox applies x^alpha mod field.
func sBox(x, field *big.Int) *big.Int {
	return new(big.Int).Exp(x, big.NewInt(poseidonAlpha), field)
}

// mdsMul multiplies the state vector by the MDS matrix, mod field.
func mdsMul(state []*big.Int, mds [][]*big.Int, field *big.Int) []*big.Int {
	out := make([]*big.Int, len(state))
	for i := range out {
		acc := new(big.Int)
		for j, s := range state {
			term := new(big.Int).Mul(mds[i][j], s)
			acc.Add(acc, term)
		}
		out[i] = acc.Mod(acc, field)
	}
	return out
}

// generateMDS builds a width x width Cauchy matrix MDS[i][j] = 1/(x_i - y_j)
// mod field, with x_i = i and y_j = width+j so that x_i != y_j always holds.
// Cauchy matrices are MDS (maximum distance separable) by construction,
// the standard choice for Poseidon-family permutations.
func generateMDS(width int, field *big.Int) [][]*big.Int {
	mds := make([][]*big.Int, width)
	for i := 0; i < width; i++ {
		row := make([]*big.Int, width)
		xi := big.NewInt(int64(i))
		for j := 0; j < width; j++ {
			yj := big.NewInt(int64(width + j))
			diff := new(big.Int).Sub(xi, yj)
			diff.Mod(diff, field)
			inv := new(big.Int).ModInverse(diff, field)
			row[j] = inv
		}
		mds[i] = row
	}
	return mds
}

// generateRoundConstants deterministically derives width*rounds field
// elements by expanding a fixed domain-separated counter through SHA-256
// and reducing each 32-byte block mod field. Determinism (not cryptographic
// unpredictability) is the only property required here: the same
// (width, rounds, field) triple always yields the same constants, on any
// architecture, on any run.
func generateRoundConstants(width, rounds int, field *big.Int) []*big.Int {
	n := width * rounds
	out := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		var buf [12]byte
		copy(buf[0:4], []byte("rc32"))
		binary.BigEndian.PutUint64(buf[4:12], uint64(i))
		sum := sha256.Sum256(buf[:])
		v := new(big.Int).SetBytes(sum[:])
		out[i] = v.Mod(v, field)
	}
	return out
}

// permute runs the full Hades permutation (full rounds, then partial
// rounds with S-box applied only to state[0], then full rounds again) in
// place over state, returning the new state.
func permute(params *poseidonParams, state []*big.Int) []*big.Int {
	field := params.Field
	halfFull := params.FullRounds / 2
	round := 0

	addConstants := func(r int) {
		for i := range state {
			state[i] = new(big.Int).Add(state[i], params.RoundConstants[r*params.Width+i])
			state[i].Mod(state[i], field)
		}
	}

	for r := 0; r < halfFull; r++ {
		addConstants(round)
		round++
		for i := range state {
			state[i] = sBox(state[i], field)
		}
		state = mdsMul(state, params.MDS, field)
	}

	for r := 0; r < params.PartialRounds; r++ {
		addConstants(round)
		round++
		state[0] = sBox(state[0], field)
		state = mdsMul(state, params.MDS, field)
	}

	for r := 0; r < halfFull; r++ {
		addConstants(round)
		round++
		for i := range state {
			state[i] = sBox(state[i], field)
		}
		state = mdsMul(state, params.MDS, field)
	}

	return state
}

func bytesToField(x [32]byte, field *big.Int) (*big.Int, error) {
	v := new(big.Int).SetBytes(x[:])
	if v.Cmp(field) >= 0 {
		return nil, &DomainError{Family: "poseidon", Len: len(x)}
	}
	return v, nil
}

func fieldToBytes(v *big.Int) [32]byte {
	var out [32]byte
	b := v.Bytes()
	copy(out[32-len(b):], b)
	return out
}

// domain separation tags mixed into the capacity element so single-input
// and pair-input hashing can never collide for the same input bytes.
const (
	domainPoseidonSingle = 1
	domainPoseidonPair   = 2
)

// PoseidonPair is the canonical two-input sponge over the Starknet field.
func PoseidonPair(l, r [32]byte) ([32]byte, error) {
	params := defaultPoseidonParams
	lf, err := bytesToField(l, params.Field)
	if err != nil {
		return [32]byte{}, err
	}
	rf, err := bytesToField(r, params.Field)
	if err != nil {
		return [32]byte{}, err
	}

	state := []*big.Int{lf, rf, big.NewInt(domainPoseidonPair)}
	state = permute(params, state)
	return fieldToBytes(state[0]), nil
}

// PoseidonSingle is the one-input sponge, used for domain-separated leaf
// hashing when required.
func PoseidonSingle(x [32]byte) ([32]byte, error) {
	params := defaultPoseidonParams
	xf, err := bytesToField(x, params.Field)
	if err != nil {
		return [32]byte{}, err
	}

	state := []*big.Int{xf, big.NewInt(0), big.NewInt(domainPoseidonSingle)}
	state = permute(params, state)
	return fieldToBytes(state[0]), nil
}
