package gemm

import (
	"testing"
)

func TestRandSource_EqualSeedsEqualStreams(t *testing.T) {
	// GIVEN two sources built from the same master seed
	s1 := NewRandSource(42)
	s2 := NewRandSource(42)

	// WHEN the same stream is derived from both
	r1 := s1.Neighbors()
	r2 := s2.Neighbors()

	// THEN the draws are identical
	for i := 0; i < 100; i++ {
		v1, v2 := r1.Int63(), r2.Int63()
		if v1 != v2 {
			t.Fatalf("draw %d: %d != %d", i, v1, v2)
		}
	}
}

func TestRandSource_StreamsAreIndependent(t *testing.T) {
	s := NewRandSource(42)

	// consecutive descent tags must not produce correlated draws
	r1 := s.Descent(0)
	r2 := s.Descent(1)
	same := true
	for i := 0; i < 10; i++ {
		if r1.Int63() != r2.Int63() {
			same = false
		}
	}
	if same {
		t.Error("descent streams produced identical draws")
	}

	// the named streams differ from each other too
	if s.Neighbors().Int63() == s.Fill().Int63() {
		t.Error("neighbors and fill streams start at the same point")
	}
}

func TestRandSource_StreamsRestartFromTheTop(t *testing.T) {
	// a re-derived stream replays from its start, which is what makes a
	// descent replayable without carrying generator state around
	s := NewRandSource(7)
	first := s.Descent(3).Int63()
	again := s.Descent(3).Int63()
	if first != again {
		t.Errorf("re-derived stream diverged: %d != %d", first, again)
	}
	if s.Seed() != 7 {
		t.Errorf("Seed: got %d, want 7", s.Seed())
	}
}
