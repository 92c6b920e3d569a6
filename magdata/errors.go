package magdata

import "errors"

// Sentinel errors surfaced by the core. All other operations (Populate,
// Map, Dispatch) are total on well-formed input and cannot fail.
var (
	// ErrInvalidArgument is returned when M0 < 2, N == 0, or a region
	// pointer is nil/too short to even hold the header.
	ErrInvalidArgument = errors.New("magdata: invalid argument")
	// ErrBufferTooSmall is returned when a caller-supplied region is
	// shorter than Len(M0, N).
	ErrBufferTooSmall = errors.New("magdata: buffer too small")
)
