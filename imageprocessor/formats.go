package imageprocessor

import (
	"path/filepath"
	"sort"
	"strings"
)

// FormatType represents a known image format type
type FormatType string

// Known image format constants
const (
	FormatUnknown FormatType = "unknown"
	FormatJPEG    FormatType = "jpeg"
	FormatPNG     FormatType = "png"
	FormatGIF     FormatType = "gif"
	FormatTIFF    FormatType = "tiff"
	FormatBMP     FormatType = "bmp"
	FormatWEBP    FormatType = "webp"
	FormatRAW     FormatType = "raw"
	FormatCR2     FormatType = "cr2"
	FormatCR3     FormatType = "cr3"
	FormatNEF     FormatType = "nef"
	FormatARW     FormatType = "arw"
	FormatDNG     FormatType = "dng"
)

// Map of extensions to format types
var formatExtensions = map[string]FormatType{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".bmp":  FormatBMP,
	".webp": FormatWEBP,

	// RAW formats
	".raw": FormatRAW,
	".raf": FormatRAW,
	".nrw": FormatRAW,
	".srf": FormatRAW,
	".orf": FormatRAW,
	".rw2": FormatRAW,
	".pef": FormatRAW,
	".cr2": FormatCR2,
	".cr3": FormatCR3,
	".nef": FormatNEF,
	".arw": FormatARW,
	".dng": FormatDNG,
}

// GetFileFormat returns the format type based on file extension
func GetFileFormat(path string) FormatType {
	ext := strings.ToLower(filepath.Ext(path))
	format, exists := formatExtensions[ext]
	if !exists {
		return FormatUnknown
	}
	return format
}

// IsRawFormat checks if a file is in RAW format
func IsRawFormat(path string) bool {
	switch GetFileFormat(path) {
	case FormatRAW, FormatCR2, FormatCR3, FormatNEF, FormatARW, FormatDNG:
		return true
	}
	return false
}

// IsTiffFormat checks if a file is in TIFF format
func IsTiffFormat(path string) bool {
	return GetFileFormat(path) == FormatTIFF
}

// extensionsFor returns the sorted extensions mapped to the given formats
func extensionsFor(formats ...FormatType) []string {
	var exts []string
	for ext, f := range formatExtensions {
		for _, want := range formats {
			if f == want {
				exts = append(exts, ext)
				break
			}
		}
	}
	sort.Strings(exts)
	return exts
}
