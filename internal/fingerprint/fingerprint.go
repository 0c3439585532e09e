// Package fingerprint derives the 32-bit comparison key shared by every
// B+tree in the ZipCache core. All three tiers (DRAM tree, SSD tree,
// large-object index) hash keys the same way so that a given key routes to
// the same ordinal position regardless of which tier answers a GET.
package fingerprint

import (
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is the 32-bit hash of an application key.
type Fingerprint = uint32

// reserved is never returned by Of. The DRAM leaf and sub-page layouts use
// the literal value 0 to mean "empty slot" (spec.md §9, "Zero fingerprint"),
// so a key that legitimately hashes to 0 is remapped to this constant
// instead of being silently dropped.
const reserved Fingerprint = 1

// Of hashes key into a non-zero 32-bit fingerprint. It is deterministic and
// non-cryptographic: two calls with the same bytes always agree, which is
// the only property every tier's ordering depends on.
func Of(key []byte) Fingerprint {
	fp := Fingerprint(xxhash.Sum64(key))
	if fp == 0 {
		return reserved
	}
	return fp
}

// knuthMultiplier is Knuth's multiplicative hashing constant
// (2^32 / golden ratio, rounded to an odd integer).
const knuthMultiplier = 2654435769

// Slot maps a fingerprint to one of n equally sized slots (n must be a power
// of two — 16 sub-pages per super-leaf, or a DRAM leaf's configured
// num_sub_pages). The mapping must be reproduced identically by every tier
// that shares this key space (spec.md invariant 1), and must be stable
// across the lifetime of the owning leaf — it depends only on fp and n.
func Slot(fp Fingerprint, n int) int {
	h := uint32(fp) * knuthMultiplier
	shift := 32 - bits.TrailingZeros32(uint32(n))
	return int(h >> uint(shift))
}
