package scanner

import (
	"path/filepath"
	"strings"
)

// photosLibraryOriginals are the folders of a Photos library that hold the
// user's files; everything else in the bundle is thumbnails and caches
var photosLibraryOriginals = map[string]bool{
	"Masters":   true,
	"originals": true,
}

// skipLibraryDir reports whether dir lies inside a .photoslibrary bundle
// but outside its originals folder
func skipLibraryDir(dir string) bool {
	parts := strings.Split(filepath.ToSlash(dir), "/")
	for i, part := range parts {
		if !strings.HasSuffix(part, ".photoslibrary") {
			continue
		}
		if i+1 < len(parts) && !photosLibraryOriginals[parts[i+1]] {
			return true
		}
	}
	return false
}
