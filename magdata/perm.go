package magdata

import (
	"encoding/binary"
	"hash/crc32"
)

// permParams derives the (offset, skip) pair a slot "prefers" from the
// slot index itself, the way the teacher's chash package derives them
// from a backend name: two independent CRC32 hashes of the slot index,
// salted with distinct suffixes. This is the documented choice §4.2
// and §9 call out as an implementer decision; any two independent
// hashes with high pairwise-distinctness would satisfy the contract.
func permParams(slot int32, m uint32) (offset uint32, skip uint32) {
	var key [4]byte
	binary.BigEndian.PutUint32(key[:], uint32(slot))

	offsetMsg := append(append([]byte{}, key[:]...), "offset"...)
	skipMsg := append(append([]byte{}, key[:]...), "skip"...)

	offset = crc32.ChecksumIEEE(offsetMsg) % m
	skip = crc32.ChecksumIEEE(skipMsg)%(m-1) + 1
	return offset, skip
}

// permState iterates the infinite permutation p(i) = (offset + i*skip)
// mod m one element at a time, without ever materializing the table.
// It exists to pin down and test that equivalence (see perm_test.go);
// Populate runs the same value/skip step directly against the region's
// next[]/permSkip[] arrays rather than allocating one of these per
// active slot.
//
// skipBar = m - skip is carried as in §4.2's incremental formulation;
// next(value) = (value + (m - skipBar)) mod m, which is algebraically
// value+skip mod m.
type permState struct {
	value   uint32
	skipBar uint32
	m       uint32
}

func newPermState(offset, skip, m uint32) *permState {
	return &permState{value: offset, skipBar: m - skip, m: m}
}

// next returns the current permutation value and advances to the next one.
func (p *permState) next() uint32 {
	v := p.value
	p.value = (p.value + (p.m - p.skipBar)) % p.m
	return v
}
