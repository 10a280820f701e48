// Package imageprocessor loads images of various formats as grayscale
// matrices and reduces them to fixed-width perceptual signatures.
package imageprocessor

import "gocv.io/x/gocv"

// ImageLoader is the interface that all image loaders must implement
type ImageLoader interface {
	// CanLoad checks if the loader can handle the given file
	CanLoad(path string) bool

	// LoadImage loads and returns the image as a single channel Mat
	LoadImage(path string) (gocv.Mat, error)
}
