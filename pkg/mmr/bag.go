package mmr

import (
	"math/bits"

	"github.com/Layr-Labs/bridge-commitment-engine/pkg/hash"
	"github.com/holiman/uint256"
)

// bagPeaks right-folds peaks (ordered largest/oldest-first,
// smallest/newest-last, matching this package's mountain ordering) into a
// single hash: bag = peaks[last]; for i from len-2 downto 0, bag =
// keccak_pair(peaks[i], bag). An empty peak set bags to the zero hash.
func bagPeaks(peaks [][32]byte) [32]byte {
	if len(peaks) == 0 {
		return [32]byte{}
	}

	bag := peaks[len(peaks)-1]
	for i := len(peaks) - 2; i >= 0; i-- {
		bag = hash.KeccakPair(peaks[i], bag)
	}
	return bag
}

// beU256 big-endian-encodes size into a 32-byte word using uint256, the
// same size-prefix encoding spec.md §4.3's root() binds into the root to
// prevent trivial same-peaks-different-size extension attacks.
func beU256(size uint64) [32]byte {
	return uint256.NewInt(size).Bytes32()
}

// Root computes root = keccak_pair(be_u256(size), bag(peaks)).
func Root(size uint64, peaks [][32]byte) [32]byte {
	return hash.KeccakPair(beU256(size), bagPeaks(peaks))
}

// sizeForLeafCount returns the canonical MMR node-position size for n
// leaves: size = 2n - popcount(n).
func sizeForLeafCount(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return 2*n - uint64(bits.OnesCount64(n))
}

// leafCountFromSize inverts sizeForLeafCount. sizeForLeafCount is strictly
// increasing, so the inverse (when it exists) is unique.
func leafCountFromSize(size uint64) (uint64, bool) {
	if size == 0 {
		return 0, true
	}

	lo, hi := uint64(0), size
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if sizeForLeafCount(mid) <= size {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if sizeForLeafCount(lo) != size {
		return 0, false
	}
	return lo, true
}

// peakRange describes one peak's leaf-index window [Start, Start+Size).
type peakRange struct {
	Start uint64
	Size  uint64
}

// peakRanges decomposes n leaves into their peak windows, largest height
// (and largest leaf window) first, matching the set bits of n from MSB to
// LSB — the same order this package's append algorithm produces.
func peakRanges(n uint64) []peakRange {
	var ranges []peakRange
	start := uint64(0)
	for b := 63; b >= 0; b-- {
		if n&(uint64(1)<<uint(b)) != 0 {
			size := uint64(1) << uint(b)
			ranges = append(ranges, peakRange{Start: start, Size: size})
			start += size
		}
	}
	return ranges
}
