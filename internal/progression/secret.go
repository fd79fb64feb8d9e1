package progression

import (
	"crypto/rand"
	"math/big"
)

// Source yields uniform integers in [0, n).
type Source interface {
	Intn(n int) int
}

// CryptoSource draws from crypto/rand.
type CryptoSource struct{}

// Intn returns a uniform value in [0, n). n <= 0 yields 0.
func (CryptoSource) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// edgeDivisor sets the share of the range excluded at each end when trimming.
const edgeDivisor = 10

// Draw picks a secret inside d's range. With trimEdges the outer tenth at each
// end is excluded so boundary guesses do not win trivially; ranges too small to
// trim are used whole.
func Draw(src Source, d Difficulty, trimEdges bool) int {
	lo, hi := d.Low, d.High
	if trimEdges {
		margin := d.Span() / edgeDivisor
		if lo+margin <= hi-margin {
			lo, hi = lo+margin, hi-margin
		}
	}
	return lo + src.Intn(hi-lo+1)
}
