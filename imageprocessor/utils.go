package imageprocessor

import (
	"fmt"
	"image"
	"os"
	"os/exec"

	// Register decoders with image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"gocv.io/x/gocv"
)

// Check if exiftool is available on the system
func hasExiftool() bool {
	_, err := exec.LookPath("exiftool")
	return err == nil
}

// Try to load an image using the Go image packages
func tryGoImagePackages(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// gocvMatFromGoImage converts any Go image into a single channel Mat
func gocvMatFromGoImage(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return gocv.NewMat(), fmt.Errorf("image has no pixels")
	}

	gray, ok := img.(*image.Gray)
	if !ok || bounds.Min != (image.Point{}) {
		gray = image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	}

	return gocv.ImageGrayToMatGray(gray)
}
