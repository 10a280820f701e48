// Package similarity scores two perceptual signatures against each other.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"duplicateimagefinder/types"
)

// ErrWidthMismatch is returned when two signatures of different widths are compared
var ErrWidthMismatch = errors.New("signature widths differ")

// Distance returns the Hamming distance between two signatures
func Distance(a, b types.Signature) (int, error) {
	if a.Bits != b.Bits || len(a.Hash) != len(b.Hash) {
		return 0, fmt.Errorf("%w: %d vs %d bits", ErrWidthMismatch, a.Bits, b.Bits)
	}
	d := 0
	for i := range a.Hash {
		d += bits.OnesCount64(a.Hash[i] ^ b.Hash[i])
	}
	return d, nil
}

// Confidence converts a Hamming distance into a 0-100 similarity percentage
func Confidence(distance, width int) int {
	if width <= 0 {
		return 0
	}
	if distance < 0 {
		distance = 0
	}
	if distance > width {
		distance = width
	}
	return int(math.Round(100 * (1 - float64(distance)/float64(width))))
}

// Score compares two signatures and returns the pair result
func Score(a, b types.Signature) (types.PairResult, error) {
	d, err := Distance(a, b)
	if err != nil {
		return types.PairResult{}, err
	}
	return types.PairResult{
		A:          a.Ref,
		B:          b.Ref,
		Distance:   d,
		Confidence: Confidence(d, a.Bits),
	}, nil
}
