package imageprocessor

import (
	"gocv.io/x/gocv"
)

// StandardImageLoader handles the formats OpenCV decodes natively
type StandardImageLoader struct {
	BaseImageLoader
}

// NewStandardImageLoader creates a new loader for standard image formats
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatBMP,
			},
		},
	}
}

// LoadImage loads a standard image format
func (l *StandardImageLoader) LoadImage(path string) (gocv.Mat, error) {
	return l.DefaultLoadImage(path)
}

// GoImageLoader decodes formats OpenCV builds commonly lack (GIF, WebP)
// or handle inconsistently (multi-page TIFF) with the Go image codecs
type GoImageLoader struct {
	BaseImageLoader
}

// NewGoImageLoader creates a loader backed by the Go image codecs
func NewGoImageLoader() *GoImageLoader {
	return &GoImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatGIF,
				FormatTIFF,
				FormatWEBP,
			},
		},
	}
}

// LoadImage decodes the first frame and converts it to a gray Mat
func (l *GoImageLoader) LoadImage(path string) (gocv.Mat, error) {
	img, err := tryGoImagePackages(path)
	if err != nil {
		return gocv.NewMat(), newImageLoadError("failed to decode image ("+err.Error()+")", path)
	}
	return gocvMatFromGoImage(img)
}
