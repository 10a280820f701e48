package imageprocessor

import (
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

// BaseImageLoader provides common functionality for all image loaders
type BaseImageLoader struct {
	// Formats this loader can handle
	SupportedFormats []FormatType
}

// CanLoad checks if this loader supports the file's format
func (l *BaseImageLoader) CanLoad(path string) bool {
	format := GetFileFormat(path)
	for _, supported := range l.SupportedFormats {
		if format == supported {
			return fileExists(path)
		}
	}
	return false
}

// DefaultLoadImage reads the file with OpenCV as grayscale
func (l *BaseImageLoader) DefaultLoadImage(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), newImageLoadError("failed to load image", path)
	}
	return img, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// newImageLoadError creates a standardized error for image loading failures
func newImageLoadError(message, path string) error {
	return fmt.Errorf("%s: %s", message, path)
}
