package imageprocessor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"duplicateimagefinder/logging"

	"gocv.io/x/gocv"
)

// ImageLoaderRegistry maintains a registry of image loaders
type ImageLoaderRegistry struct {
	loaders map[string]ImageLoader
	mutex   sync.RWMutex
}

// NewImageLoaderRegistry creates a registry with every loader usable on
// this machine
func NewImageLoaderRegistry() *ImageLoaderRegistry {
	registry := NewEmptyRegistry()
	registry.registerStandardLoaders()
	registry.registerRawLoaders()
	return registry
}

// NewEmptyRegistry creates a registry without loaders
func NewEmptyRegistry() *ImageLoaderRegistry {
	return &ImageLoaderRegistry{
		loaders: make(map[string]ImageLoader),
	}
}

func (r *ImageLoaderRegistry) registerStandardLoaders() {
	standardLoader := NewStandardImageLoader()
	for _, ext := range extensionsFor(standardLoader.SupportedFormats...) {
		r.RegisterLoader(ext, standardLoader)
	}

	goLoader := NewGoImageLoader()
	for _, ext := range extensionsFor(goLoader.SupportedFormats...) {
		r.RegisterLoader(ext, goLoader)
	}
}

func (r *ImageLoaderRegistry) registerRawLoaders() {
	if !hasExiftool() {
		logging.LogInfo("exiftool not found, RAW files will not be indexed")
		return
	}

	rawLoader := NewRawPreviewLoader()
	for _, ext := range extensionsFor(rawLoader.SupportedFormats...) {
		r.RegisterLoader(ext, rawLoader)
	}
	logging.DebugLog("Registered RAW preview loader")
}

// RegisterLoader registers a new loader for a specific file extension
func (r *ImageLoaderRegistry) RegisterLoader(ext string, loader ImageLoader) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.loaders[strings.ToLower(ext)] = loader
}

// GetLoader returns the loader for the given path, or nil
func (r *ImageLoaderRegistry) GetLoader(path string) ImageLoader {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.loaders[strings.ToLower(filepath.Ext(path))]
}

// CanLoadFile checks if a registered loader accepts the file
func (r *ImageLoaderRegistry) CanLoadFile(path string) bool {
	loader := r.GetLoader(path)
	return loader != nil && loader.CanLoad(path)
}

// Extensions returns the registered extensions, sorted
func (r *ImageLoaderRegistry) Extensions() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// LoadImage loads an image using the appropriate registered loader
func (r *ImageLoaderRegistry) LoadImage(path string) (gocv.Mat, error) {
	loader := r.GetLoader(path)
	if loader == nil {
		return gocv.NewMat(), fmt.Errorf("no suitable loader found for: %s", path)
	}

	return loader.LoadImage(path)
}
