package scanner

import (
	"duplicateimagefinder/types"
)

// Fingerprinter produces the signature of one image
type Fingerprinter interface {
	Bits() int
	Fingerprint(ref types.ImageRef) (types.Signature, error)
}

// Progress receives one call per finished task
type Progress interface {
	Record(result ProcessImageResult)
}

// ProcessImageResult holds the result of processing an image
type ProcessImageResult struct {
	Ref     types.ImageRef
	Success bool
	Error   error
	IsRaw   bool
	IsTif   bool
}

// Table is the signature table built by a scan. Signatures are sorted by
// origin (primary first) and then path, and each ref appears once.
type Table struct {
	Signatures []types.Signature
	Skipped    []*types.DecodeFailure
	Seen       int
}

// Primary returns the signatures tagged primary
func (t *Table) Primary() []types.Signature {
	return t.byOrigin(types.OriginPrimary)
}

// Compare returns the signatures tagged compare
func (t *Table) Compare() []types.Signature {
	return t.byOrigin(types.OriginCompare)
}

func (t *Table) byOrigin(origin types.Origin) []types.Signature {
	var out []types.Signature
	for _, s := range t.Signatures {
		if s.Ref.Origin == origin {
			out = append(out, s)
		}
	}
	return out
}
