package gemm

import "math/rand"

// The tuner draws randomness in three places: shuffling a one-away
// neighborhood, reshuffling on each descent, and filling host matrices.
// Giving each consumer its own stream keeps them from perturbing one
// another — adding a matrix fill must not change which candidate a search
// tries first — while a single master seed makes the whole run replayable.

// Stream tags. Descent streams occupy the tail of the tag space, one tag
// per descent index.
const (
	streamNeighbors int64 = iota
	streamFill
	streamDescent0
)

// RandSource derives the independent random streams of one tuning run from
// a master seed.
type RandSource struct {
	seed int64
}

// NewRandSource returns a RandSource for the given master seed. Two
// sources with equal seeds derive identical streams.
func NewRandSource(seed int64) *RandSource {
	return &RandSource{seed: seed}
}

// Seed returns the master seed.
func (s *RandSource) Seed() int64 { return s.seed }

// Neighbors returns the stream used to shuffle a one-away neighborhood.
func (s *RandSource) Neighbors() *rand.Rand { return s.stream(streamNeighbors) }

// Fill returns the stream used for host-side random matrix fill.
func (s *RandSource) Fill() *rand.Rand { return s.stream(streamFill) }

// Descent returns the stream for candidate shuffling in descent i, so each
// descent of a search reorders independently of the others.
func (s *RandSource) Descent(i int) *rand.Rand {
	return s.stream(streamDescent0 + int64(i))
}

// stream builds a fresh generator for one tag. Calling it twice with the
// same tag yields two generators at the start of the same sequence. The
// seed/tag pair goes through two mixing rounds: bare math/rand sources
// seeded with consecutive integers start off visibly correlated, and
// descent tags are consecutive integers.
func (s *RandSource) stream(tag int64) *rand.Rand {
	x := uint64(s.seed) + goldenGamma*uint64(tag+1)
	return rand.New(rand.NewSource(int64(mix64(mix64(x)))))
}

const goldenGamma = 0x9e3779b97f4a7c15

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x += goldenGamma
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
