// Package testutil provides shared test helpers and synthetic dataset
// fixtures.
//
// Frames are described with plain values in wire terms (sensor enums as ints,
// transforms as 16 row-major doubles) and encoded with the same field layout
// the decoder reads, so fixtures exercise the full decode path.
package testutil

import "testing"

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Identity16 returns the identity transform as 16 row-major values.
func Identity16() []float64 {
	return Translation16(0, 0, 0)
}

// Translation16 returns a pure translation as 16 row-major values.
func Translation16(x, y, z float64) []float64 {
	return []float64{
		1, 0, 0, x,
		0, 1, 0, y,
		0, 0, 1, z,
		0, 0, 0, 1,
	}
}
