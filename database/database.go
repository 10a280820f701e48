// Package database enumerates the originals of an Apple Photos library by
// reading the library's own SQLite catalogue.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"duplicateimagefinder/logging"
	"duplicateimagefinder/scanner"
	"duplicateimagefinder/types"

	_ "github.com/mattn/go-sqlite3"
)

// assetQueries select the original files of non-trashed assets. Photos 5
// and later name the table ZASSET, Photos 4 ZGENERICASSET.
var assetQueries = []string{
	`SELECT ZDIRECTORY, ZFILENAME FROM ZASSET
	 WHERE ZTRASHEDSTATE = 0 AND ZDIRECTORY IS NOT NULL AND ZFILENAME IS NOT NULL
	 ORDER BY ZDIRECTORY, ZFILENAME`,
	`SELECT ZDIRECTORY, ZFILENAME FROM ZGENERICASSET
	 WHERE ZTRASHEDSTATE = 0 AND ZDIRECTORY IS NOT NULL AND ZFILENAME IS NOT NULL
	 ORDER BY ZDIRECTORY, ZFILENAME`,
}

// PhotosLibrary is a .photoslibrary bundle on disk
type PhotosLibrary struct {
	Path string
}

// OpenPhotosLibrary checks that path is a directory and returns the library
func OpenPhotosLibrary(path string) (*PhotosLibrary, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot open Photos library: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a Photos library", path)
	}
	return &PhotosLibrary{Path: abs}, nil
}

// DatabasePath returns the location of the library catalogue
func (l *PhotosLibrary) DatabasePath() string {
	return filepath.Join(l.Path, "database", "Photos.sqlite")
}

// OpenDatabase opens a SQLite database read-only
func OpenDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// QueryOriginals returns the original file path of every non-trashed asset
// the catalogue knows about
func QueryOriginals(ctx context.Context, db *sql.DB, libraryPath string) ([]string, error) {
	var errs []error
	for _, query := range assetQueries {
		paths, err := queryOriginals(ctx, db, libraryPath, query)
		if err == nil {
			return paths, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("unrecognised Photos catalogue: %w", errors.Join(errs...))
}

func queryOriginals(ctx context.Context, db *sql.DB, libraryPath, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var dir, name string
		if err := rows.Scan(&dir, &name); err != nil {
			return nil, err
		}
		paths = append(paths, filepath.Join(libraryPath, "originals", dir, name))
	}
	return paths, rows.Err()
}

// Stream sends a ref for every loadable original in the library. When the
// catalogue cannot be read the Masters and originals folders are walked
// instead, which is how libraries from before Photos 5 are laid out.
func (l *PhotosLibrary) Stream(ctx context.Context, canLoad func(string) bool, origin types.Origin) (<-chan types.ImageRef, func() error) {
	paths, err := l.catalogue(ctx)
	if err != nil {
		logging.LogWarning("Reading %s failed (%v), walking the library folders instead", l.DatabasePath(), err)
		return scanner.Stream(ctx, canLoad, l.fallbackSources(origin)...)
	}

	out := make(chan types.ImageRef, 64)
	done := make(chan struct{})
	var streamErr error
	go func() {
		defer close(done)
		defer close(out)
		for _, p := range paths {
			if !canLoad(p) {
				continue
			}
			if _, err := os.Stat(p); err != nil {
				// not downloaded from iCloud, or moved
				logging.DebugLog("Catalogued original missing: %s", p)
				continue
			}
			select {
			case out <- types.ImageRef{Path: p, Origin: origin}:
			case <-ctx.Done():
				streamErr = ctx.Err()
				return
			}
		}
	}()

	return out, func() error {
		<-done
		return streamErr
	}
}

func (l *PhotosLibrary) catalogue(ctx context.Context) ([]string, error) {
	dbPath := l.DatabasePath()
	if _, err := os.Stat(dbPath); err != nil {
		return nil, err
	}

	db, err := OpenDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	paths, err := QueryOriginals(ctx, db, l.Path)
	if err != nil {
		return nil, err
	}
	logging.DebugLog("Catalogue of %s lists %d originals", l.Path, len(paths))
	return paths, nil
}

func (l *PhotosLibrary) fallbackSources(origin types.Origin) []scanner.Source {
	var sources []scanner.Source
	for _, dir := range []string{"Masters", "originals"} {
		p := filepath.Join(l.Path, dir)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			sources = append(sources, scanner.Source{Root: p, Origin: origin})
		}
	}
	if len(sources) == 0 {
		// Let the walker report the missing folder
		sources = append(sources, scanner.Source{Root: filepath.Join(l.Path, "Masters"), Origin: origin})
	}
	return sources
}
