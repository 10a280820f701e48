package imageprocessor

import (
	"fmt"
	"strings"

	"duplicateimagefinder/types"
)

// Algorithm names a perceptual hash
type Algorithm string

const (
	// AlgorithmAverage thresholds each pixel against the image mean
	AlgorithmAverage Algorithm = "average"
	// AlgorithmPerceptual thresholds low DCT frequencies against their median
	AlgorithmPerceptual Algorithm = "perceptual"
	// AlgorithmDifference compares neighbouring pixels
	AlgorithmDifference Algorithm = "difference"
)

// Defaults used when nothing else is configured
const (
	DefaultAlgorithm = AlgorithmAverage
	DefaultHashSize  = 8
)

// Algorithms lists the supported algorithms
var Algorithms = []Algorithm{AlgorithmAverage, AlgorithmPerceptual, AlgorithmDifference}

// HashSizes lists the supported hash sizes; the signature width is size squared
var HashSizes = []int{8, 16}

// ParseAlgorithm resolves a user supplied algorithm name
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, a := range Algorithms {
		if strings.EqualFold(name, string(a)) {
			return a, nil
		}
	}
	return "", &types.ConfigurationError{
		Field:  "hash",
		Reason: fmt.Sprintf("unknown algorithm %q", name),
	}
}

// ValidateHashSize reports whether size is supported
func ValidateHashSize(size int) error {
	for _, s := range HashSizes {
		if s == size {
			return nil
		}
	}
	return &types.ConfigurationError{
		Field:  "hash-size",
		Reason: fmt.Sprintf("must be one of %v, got %d", HashSizes, size),
	}
}

// Fingerprinter turns image files into signatures. It is safe for
// concurrent use.
type Fingerprinter struct {
	registry  *ImageLoaderRegistry
	algorithm Algorithm
	size      int
}

// NewFingerprinter creates a fingerprinter over the given registry
func NewFingerprinter(registry *ImageLoaderRegistry, algorithm Algorithm, size int) (*Fingerprinter, error) {
	if _, err := ParseAlgorithm(string(algorithm)); err != nil {
		return nil, err
	}
	if err := ValidateHashSize(size); err != nil {
		return nil, err
	}
	return &Fingerprinter{registry: registry, algorithm: algorithm, size: size}, nil
}

// Bits returns the width of every signature this fingerprinter produces
func (f *Fingerprinter) Bits() int {
	return f.size * f.size
}

// Fingerprint decodes the referenced image and hashes it. Any failure,
// including a crash inside the native decoder, is returned as a
// *types.DecodeFailure.
func (f *Fingerprinter) Fingerprint(ref types.ImageRef) (sig types.Signature, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &types.DecodeFailure{Ref: ref, Err: fmt.Errorf("decoder panic: %v", r)}
		}
	}()

	img, err := f.registry.LoadImage(ref.Path)
	if err != nil {
		img.Close()
		return types.Signature{}, &types.DecodeFailure{Ref: ref, Err: err}
	}
	defer img.Close()

	var bits []bool
	switch f.algorithm {
	case AlgorithmPerceptual:
		bits, err = ComputePerceptualHash(img, f.size)
	case AlgorithmDifference:
		bits, err = ComputeDifferenceHash(img, f.size)
	default:
		bits, err = ComputeAverageHash(img, f.size)
	}
	if err != nil {
		return types.Signature{}, &types.DecodeFailure{Ref: ref, Err: err}
	}
	if len(bits) != f.Bits() {
		return types.Signature{}, &types.DecodeFailure{
			Ref: ref,
			Err: fmt.Errorf("hash produced %d bits, expected %d", len(bits), f.Bits()),
		}
	}

	return types.NewSignature(ref, bits), nil
}
