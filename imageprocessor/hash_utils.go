package imageprocessor

import (
	"fmt"
	"image"
	"sort"

	"github.com/corona10/goimagehash"
	"gocv.io/x/gocv"
)

// resizeGray shrinks img to size x size and guarantees a single channel
func resizeGray(img gocv.Mat, size int) gocv.Mat {
	resized := gocv.NewMat()
	gocv.Resize(img, &resized, image.Point{X: size, Y: size}, 0, 0, gocv.InterpolationArea)

	if resized.Channels() == 1 {
		return resized
	}

	gray := gocv.NewMat()
	gocv.CvtColor(resized, &gray, gocv.ColorBGRToGray)
	resized.Close()
	return gray
}

// ComputeAverageHash returns size*size bits, each set when the pixel of the
// downscaled image is brighter than the mean
func ComputeAverageHash(img gocv.Mat, size int) ([]bool, error) {
	if img.Empty() {
		return nil, fmt.Errorf("cannot compute hash for empty image")
	}

	gray := resizeGray(img, size)
	defer gray.Close()

	var sum uint64
	for y := 0; y < gray.Rows(); y++ {
		for x := 0; x < gray.Cols(); x++ {
			sum += uint64(gray.GetUCharAt(y, x))
		}
	}
	mean := float64(sum) / float64(size*size)

	bits := make([]bool, 0, size*size)
	for y := 0; y < gray.Rows(); y++ {
		for x := 0; x < gray.Cols(); x++ {
			bits = append(bits, float64(gray.GetUCharAt(y, x)) > mean)
		}
	}
	return bits, nil
}

// ComputePerceptualHash applies a DCT to a 4*size square image and keeps
// the size x size lowest frequencies, each compared with their median
func ComputePerceptualHash(img gocv.Mat, size int) ([]bool, error) {
	if img.Empty() {
		return nil, fmt.Errorf("cannot compute hash for empty image")
	}

	gray := resizeGray(img, 4*size)
	defer gray.Close()

	floatImg := gocv.NewMat()
	defer floatImg.Close()
	gray.ConvertTo(&floatImg, gocv.MatTypeCV32F)

	dct := gocv.NewMat()
	defer dct.Close()
	gocv.DCT(floatImg, &dct, 0)
	if dct.Empty() {
		return nil, fmt.Errorf("DCT produced no coefficients")
	}

	lowFreq := dct.Region(image.Rect(0, 0, size, size))
	defer lowFreq.Close()

	values := make([]float32, 0, size*size)
	for y := 0; y < lowFreq.Rows(); y++ {
		for x := 0; x < lowFreq.Cols(); x++ {
			values = append(values, lowFreq.GetFloatAt(y, x))
		}
	}
	median := calculateMedian(values)

	bits := make([]bool, len(values))
	for i, v := range values {
		bits[i] = v > median
	}
	return bits, nil
}

// ComputeDifferenceHash records the horizontal brightness gradient of the
// downscaled image
func ComputeDifferenceHash(img gocv.Mat, size int) ([]bool, error) {
	if img.Empty() {
		return nil, fmt.Errorf("cannot compute hash for empty image")
	}

	goImg, err := img.ToImage()
	if err != nil {
		return nil, fmt.Errorf("converting matrix: %w", err)
	}

	hash, err := goimagehash.ExtDifferenceHash(goImg, size, size)
	if err != nil {
		return nil, err
	}

	words := hash.GetHash()
	bits := make([]bool, hash.Bits())
	for i := range bits {
		bits[i] = words[i/64]>>(uint(i)%64)&1 == 1
	}
	return bits, nil
}

// calculateMedian calculates the median value of a float32 array
func calculateMedian(values []float32) float32 {
	sorted := make([]float32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n%2 == 0:
		return (sorted[n/2-1] + sorted[n/2]) / 2
	default:
		return sorted[n/2]
	}
}
