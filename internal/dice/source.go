package dice

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"sync"
)

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Uint64n returns a uniformly distributed random value in [0, n).
	//
	// Precondition: n > 0.
	Uint64n(n uint64) uint64
}

// cryptoSource implements Source using crypto/rand. It holds no state, so
// concurrent callers never contend.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Uint64n is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Uint64n returns a cryptographically secure random value in [0, n).
//
// Precondition: n > 0. Panics with "dice: Uint64n called with n == 0" otherwise.
// Panics with "dice: crypto/rand failure: <err>" if crypto/rand fails.
func (c *cryptoSource) Uint64n(n uint64) uint64 {
	if n == 0 {
		panic("dice: Uint64n called with n == 0")
	}
	val, err := rand.Int(rand.Reader, new(big.Int).SetUint64(n))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return val.Uint64()
}

// seededSource is a PCG generator shared across callers. The mutex keeps
// draws from interleaving inside the generator state.
type seededSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededSource returns a deterministic Source: two sources built from the
// same seed produce the same sequence of draws.
func NewSeededSource(seed uint64) Source {
	return &seededSource{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Uint64n returns a pseudo-random value in [0, n).
//
// Precondition: n > 0. Panics with "dice: Uint64n called with n == 0" otherwise.
func (s *seededSource) Uint64n(n uint64) uint64 {
	if n == 0 {
		panic("dice: Uint64n called with n == 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Uint64N(n)
}
