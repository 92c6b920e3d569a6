// Package tuplehash derives a packet fingerprint from its 5-tuple: the
// source IP, source port, destination IP, destination port and IP
// protocol number. The fingerprint is reduced modulo the Maglev table
// size M by the caller to index the lookup table; hashing the 5-tuple
// itself is the data-plane collaborator's responsibility, not the
// core's (see magdata's Dispatch).
package tuplehash

import (
	"encoding/binary"
	"hash/crc32"
	"net"
)

// Hash computes a CRC32 fingerprint over the connection 5-tuple. It is
// deterministic and allocation-light so it can run on the packet fast
// path; callers needing packets of the same flow to land on the same
// backend should hold source/destination fixed across calls (NAT'd
// return traffic should swap src/dst before hashing, a decision left
// to the caller).
func Hash(srcIP net.IP, srcPort uint16, dstIP net.IP, dstPort uint16, proto uint8) (uint32, error) {
	h := crc32.NewIEEE()

	if _, err := h.Write(srcIP.To16()); err != nil {
		return 0, err
	}
	if _, err := h.Write(dstIP.To16()); err != nil {
		return 0, err
	}

	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], srcPort)
	if _, err := h.Write(portBuf[:]); err != nil {
		return 0, err
	}
	binary.BigEndian.PutUint16(portBuf[:], dstPort)
	if _, err := h.Write(portBuf[:]); err != nil {
		return 0, err
	}

	if _, err := h.Write([]byte{proto}); err != nil {
		return 0, err
	}

	return h.Sum32(), nil
}
