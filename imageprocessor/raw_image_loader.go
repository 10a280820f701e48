package imageprocessor

import (
	"encoding/base64"
	"fmt"
	"strings"

	"duplicateimagefinder/logging"

	"github.com/barasher/go-exiftool"
	"gocv.io/x/gocv"
)

// previewTags lists the embedded JPEG tags tried in order, largest first
var previewTags = []string{
	"JpgFromRaw",
	"PreviewImage",
	"OtherImage",
	"ThumbnailImage",
}

// RawPreviewLoader decodes the JPEG preview every camera embeds in its RAW
// files. No RAW demosaicing is done here.
type RawPreviewLoader struct {
	BaseImageLoader
}

// NewRawPreviewLoader creates a RAW loader backed by exiftool
func NewRawPreviewLoader() *RawPreviewLoader {
	return &RawPreviewLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatRAW,
				FormatCR2,
				FormatCR3,
				FormatNEF,
				FormatARW,
				FormatDNG,
			},
		},
	}
}

// LoadImage extracts and decodes the largest embedded preview
func (l *RawPreviewLoader) LoadImage(path string) (gocv.Mat, error) {
	et, err := exiftool.NewExiftool(exiftool.ExtractAllBinaryMetadata())
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to initialize exiftool: %w", err)
	}
	defer et.Close()

	fileInfos := et.ExtractMetadata(path)
	if len(fileInfos) == 0 {
		return gocv.NewMat(), newImageLoadError("no metadata extracted", path)
	}
	fileInfo := fileInfos[0]
	if fileInfo.Err != nil {
		return gocv.NewMat(), fmt.Errorf("reading metadata of %s: %w", path, fileInfo.Err)
	}

	for _, tag := range previewTags {
		value, err := fileInfo.GetString(tag)
		if err != nil {
			continue
		}
		data, err := decodeBinaryField(value)
		if err != nil {
			logging.DebugLog("Skipping %s of %s: %v", tag, path, err)
			continue
		}

		img, err := decodePreview(data)
		if err != nil {
			logging.LogWarning("Cannot decode %s of %s: %v", tag, path, err)
			continue
		}
		logging.DebugLog("Decoded %s preview of %s", tag, path)
		return img, nil
	}

	return gocv.NewMat(), newImageLoadError("no decodable preview in RAW file", path)
}

// decodePreview decodes an embedded preview as grayscale. On failure the
// Mat is already released.
func decodePreview(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("empty preview")
	}
	img, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil {
		return gocv.NewMat(), err
	}
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("preview is not a decodable image")
	}
	return img, nil
}

// decodeBinaryField unpacks the "base64:" prefixed value exiftool emits
// for binary tags when run with -b
func decodeBinaryField(value string) ([]byte, error) {
	const prefix = "base64:"
	if !strings.HasPrefix(value, prefix) {
		return nil, fmt.Errorf("not a binary field")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
}
