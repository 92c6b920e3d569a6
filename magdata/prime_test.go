package magdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func refIsPrime(n uint32) bool {
	if n < 2 {
		return false
	}
	for d := uint32(2); d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

func TestPrimeBelow(t *testing.T) {
	t.Run("InvalidArgument", func(t *testing.T) {
		_, err := PrimeBelow(0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = PrimeBelow(1)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("ExhaustiveSmallRange", func(t *testing.T) {
		// For every n in [2, 3000], PrimeBelow(n) must be prime and no
		// prime q with PrimeBelow(n) < q <= n may exist.
		for n := uint32(2); n <= 3000; n++ {
			p, err := PrimeBelow(n)
			assert.NoError(t, err)
			assert.True(t, refIsPrime(p), "PrimeBelow(%d) = %d is not prime", n, p)
			for q := p + 1; q <= n; q++ {
				assert.False(t, refIsPrime(q), "PrimeBelow(%d) = %d but %d is also prime and <= n", n, p, q)
			}
		}
	})

	t.Run("LargeSpotChecks", func(t *testing.T) {
		cases := map[uint32]uint32{
			1000:    997,
			10000:   9973,
			65537:   65537,
			655373:  655373,
			1000000: 999983,
		}
		for n, want := range cases {
			p, err := PrimeBelow(n)
			assert.NoError(t, err)
			assert.Equal(t, want, p, "PrimeBelow(%d)", n)
		}
	})

	t.Run("SmallestPrimeIsTwo", func(t *testing.T) {
		p, err := PrimeBelow(2)
		assert.NoError(t, err)
		assert.Equal(t, uint32(2), p)
	})
}
