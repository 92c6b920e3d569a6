package magdata

import "sync/atomic"

// Populate recomputes lookup[0..M) from active[0..N), following the
// canonical Maglev streaming algorithm: each active slot is given an
// infinite preference permutation, and slots take turns claiming the
// next unclaimed table entry their permutation names, round-robin in
// ascending slot order, until the table is full.
//
// Ascending slot order (not insertion order) is required for
// cross-writer reproducibility: two independent processes populating
// from the same active[] snapshot must compute byte-identical
// lookup[] tables.
//
// Populate is pure computation over the region and performs no
// allocation: lookup[] doubles as the "claimed" sentinel array
// (cleared to -1 before the round-robin begins), and permOffset[],
// permSkip[] and next[] are the per-slot permutation state the
// round-robin actually runs on. permOffset[j]/permSkip[j] hold the
// (offset, skip) pair derived from slot j; next[j] is that slot's
// current position in its own permutation, advanced in place on every
// claim. No per-call scratch of any kind is allocated on the heap.
//
// Each lookup[] entry is written with a single atomic store, so a
// concurrent reader never sees a torn word. Because lookup[] is first
// cleared to -1 and then refilled, a reader that runs while Populate
// is in progress may see the previous value, -1, or the new value.
func (v *View) Populate() {
	m := v.M()
	n := v.N()

	for i := uint32(0); i < m; i++ {
		atomic.StoreInt32(&v.lookup[i], -1)
	}

	var activeCount uint32
	for j := uint32(0); j < n; j++ {
		if v.active[j] < 0 {
			continue
		}
		activeCount++
		offset, skip := permParams(int32(j), m)
		v.permOffset[j] = int32(offset)
		v.permSkip[j] = int32(skip)
		v.next[j] = int32(offset)
	}
	if activeCount == 0 {
		return
	}

	var filled uint32
	for {
		for j := uint32(0); j < n; j++ {
			if v.active[j] < 0 {
				continue
			}

			skip := uint32(v.permSkip[j])
			candidate := uint32(v.next[j])
			for atomic.LoadInt32(&v.lookup[candidate]) != -1 {
				candidate = (candidate + skip) % m
			}
			v.next[j] = int32((candidate + skip) % m)
			atomic.StoreInt32(&v.lookup[candidate], int32(j))

			filled++
			if filled == m {
				return
			}
		}
	}
}
