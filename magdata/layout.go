// Package magdata implements the dynamic Maglev consistent-hashing
// table: a prime-sized lookup table over a fixed-capacity pool of
// target slots, laid out in a single contiguous region so that one
// writer can republish it while many lock-free readers dispatch
// packets against it.
//
// The region is position-independent: callers acquire a *View over a
// []byte by calling Init once and Map thereafter (including from a
// second process sharing the same memory), and all state lives in
// offsets into that region, never in machine pointers.
package magdata

import (
	"sync/atomic"
	"unsafe"
)

// header is the fixed-size prefix of the region. Its binary layout
// (little-endian on the little-endian platforms Go targets) matches
// the wire format documented in the specification: M and N as two
// u32s followed by a reserved u64, 16 bytes total.
type header struct {
	M        uint32
	N        uint32
	Reserved uint64
}

const headerSize = uint32(unsafe.Sizeof(header{}))

// sizeFor returns the region length for an already-reduced table size
// m (a prime) and slot count n, per the layout documented in the
// specification:
//
//	offset 0:                     header{M,N,reserved}
//	offset H:                     active[N]     : i32
//	offset H+4N:                  lookup[M]     : i32
//	offset H+4N+4M:                next[N]       : i32 (scratch)
//	offset H+4N+4M+4N:             permOffset[N] : i32 (scratch)
//	offset H+4N+4M+8N:             permSkip[N]   : i32 (scratch)
func sizeFor(m, n uint32) uint32 {
	return headerSize + 4*m + 16*n
}

// Len returns the exact region size required for a table sized with
// the largest prime <= M0 and N slots. It is deterministic and does
// not allocate.
func Len(m0, n uint32) (uint32, error) {
	if n == 0 {
		return 0, ErrInvalidArgument
	}
	m, err := PrimeBelow(m0)
	if err != nil {
		return 0, err
	}
	return sizeFor(m, n), nil
}

// View overlays typed access onto an initialized region. It holds no
// machine pointers into anything but the backing slice itself, so it
// remains valid for as long as that slice does.
type View struct {
	region []byte

	hdr *header

	active     []int32
	lookup     []int32
	next       []int32
	permOffset []int32
	permSkip   []int32
}

func int32SliceAt(region []byte, off, count uint32) []int32 {
	if count == 0 {
		return nil
	}
	ptr := unsafe.Pointer(&region[off])
	return unsafe.Slice((*int32)(ptr), count)
}

func newView(region []byte, m, n uint32) *View {
	hdr := (*header)(unsafe.Pointer(&region[0]))
	off := headerSize
	active := int32SliceAt(region, off, n)
	off += 4 * n
	lookup := int32SliceAt(region, off, m)
	off += 4 * m
	next := int32SliceAt(region, off, n)
	off += 4 * n
	permOffset := int32SliceAt(region, off, n)
	off += 4 * n
	permSkip := int32SliceAt(region, off, n)

	return &View{
		region:     region,
		hdr:        hdr,
		active:     active,
		lookup:     lookup,
		next:       next,
		permOffset: permOffset,
		permSkip:   permSkip,
	}
}

// Init writes the header, fixes M = PrimeBelow(M0), and initializes
// active[] and lookup[] to all -1 (empty). It fails with
// ErrBufferTooSmall if len(region) < Len(M0, N) and ErrInvalidArgument
// on malformed parameters.
func Init(m0, n uint32, region []byte) (*View, error) {
	if m0 < 2 || n == 0 || region == nil {
		return nil, ErrInvalidArgument
	}
	need, err := Len(m0, n)
	if err != nil {
		return nil, err
	}
	if uint32(len(region)) < need {
		return nil, ErrBufferTooSmall
	}

	m, err := PrimeBelow(m0)
	if err != nil {
		return nil, err
	}

	hdr := (*header)(unsafe.Pointer(&region[0]))
	hdr.M = m
	hdr.N = n
	hdr.Reserved = 0

	v := newView(region, m, n)
	for i := range v.active {
		v.active[i] = -1
	}
	for i := range v.lookup {
		v.lookup[i] = -1
	}
	for i := range v.next {
		v.next[i] = 0
	}
	for i := range v.permOffset {
		v.permOffset[i] = 0
	}
	for i := range v.permSkip {
		v.permSkip[i] = 0
	}
	return v, nil
}

// Map overlays a view onto an already-initialized region without
// mutating it. It is idempotent and cheap: this is how independent
// processes (or a second call in the same process) attach to a
// region previously set up by Init.
func Map(region []byte) (*View, error) {
	if region == nil || uint32(len(region)) < headerSize {
		return nil, ErrInvalidArgument
	}
	hdr := (*header)(unsafe.Pointer(&region[0]))
	if hdr.N == 0 || hdr.M < 2 {
		return nil, ErrInvalidArgument
	}
	need := sizeFor(hdr.M, hdr.N)
	if uint32(len(region)) < need {
		return nil, ErrBufferTooSmall
	}
	return newView(region, hdr.M, hdr.N), nil
}

// M returns the lookup table size (a prime), fixed at Init time.
func (v *View) M() uint32 { return v.hdr.M }

// N returns the maximum number of target slots, fixed at Init time.
func (v *View) N() uint32 { return v.hdr.N }

// Active exposes the N-slot active vector with value semantics: slot
// j holds a target id >= 0 when occupied, or -1 when empty. Only the
// single writer may mutate this slice; it is the caller's
// responsibility to invoke Populate after any change.
func (v *View) Active() []int32 { return v.active }

// Lookup performs a single atomic word load of lookup[i], so it never
// returns a torn value. While a Populate is running it may return the
// pre-populate value, the post-populate value, or -1 (see Populate). It is
// the reader-side primitive; Dispatch is the convenience wrapper most
// callers want.
func (v *View) Lookup(i uint32) int32 {
	return atomic.LoadInt32(&v.lookup[i])
}

// Dispatch maps a packet fingerprint to a target slot index, or -1 if
// no target is currently active. The caller is responsible for
// tolerating a slot index that was deactivated moments ago; the
// transport layer recovers from such brief misroutes.
func (v *View) Dispatch(fingerprint uint64) int32 {
	return v.Lookup(uint32(fingerprint % uint64(v.M())))
}
