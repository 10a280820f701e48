package types

import (
	"fmt"
	"strings"
)

// Origin tags which collection an image was enumerated from
type Origin string

const (
	// OriginPrimary marks images from the main directory or library
	OriginPrimary Origin = "primary"
	// OriginCompare marks images from the second directory in cross-compare mode
	OriginCompare Origin = "compare"
)

// ImageRef identifies one image of the run
type ImageRef struct {
	Path   string `json:"path"`
	Origin Origin `json:"origin"`
}

// Key returns a string unique per (origin, path)
func (r ImageRef) Key() string {
	return string(r.Origin) + "\x00" + r.Path
}

// Less orders refs by path, then origin
func (r ImageRef) Less(o ImageRef) bool {
	if r.Path != o.Path {
		return r.Path < o.Path
	}
	return r.Origin < o.Origin
}

// Signature is the perceptual fingerprint of one image.
// Bits is the signature width; Hash holds the bits packed
// little-endian into 64-bit words.
type Signature struct {
	Ref  ImageRef
	Bits int
	Hash []uint64
}

// NewSignature packs a bit slice into a Signature
func NewSignature(ref ImageRef, bits []bool) Signature {
	words := make([]uint64, (len(bits)+63)/64)
	for i, set := range bits {
		if set {
			words[i/64] |= 1 << uint(i%64)
		}
	}
	return Signature{Ref: ref, Bits: len(bits), Hash: words}
}

// Hex renders the signature words as a hexadecimal string
func (s Signature) Hex() string {
	var b strings.Builder
	for i := len(s.Hash) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "%016x", s.Hash[i])
	}
	return b.String()
}

// PairResult holds the similarity between two images
type PairResult struct {
	A          ImageRef
	B          ImageRef
	Distance   int
	Confidence int
}

// DuplicateGroup is one connected component of retained pairs
type DuplicateGroup struct {
	Index         int
	Members       []ImageRef
	Pairs         []PairResult
	MaxConfidence int
}

// Stats summarizes the work done by a run
type Stats struct {
	ImagesSeen         int   `json:"images_seen"`
	ImagesIndexed      int   `json:"images_indexed"`
	ImagesSkipped      int   `json:"images_skipped"`
	PairsCompared      int64 `json:"pairs_compared"`
	PairsRetained      int   `json:"pairs_retained"`
	ComparisonFailures int   `json:"comparison_failures"`
}

// Report is the finalized output of a run
type Report struct {
	Groups             []DuplicateGroup
	Skipped            []*DecodeFailure
	ComparisonFailures []*ComparisonFailure
	Stats              Stats
	Threshold          int
	Inverse            bool
	IndexOnly          bool
}
