package utils

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// GetDefaultPicturesDir returns the folder searched for Photos libraries
func GetDefaultPicturesDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Pictures"
	}
	return filepath.Join(home, "Pictures")
}

// FindPhotosLibraries returns every *.photoslibrary bundle below root,
// sorted. Bundles are not descended into.
func FindPhotosLibraries(root string) ([]string, error) {
	var libraries []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() && strings.HasSuffix(d.Name(), ".photoslibrary") {
			libraries = append(libraries, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(libraries)
	return libraries, nil
}

// ChooseLibrary returns the only library, or asks on out and reads the
// 1-based choice from in when there are several
func ChooseLibrary(libraries []string, in io.Reader, out io.Writer) (string, error) {
	switch len(libraries) {
	case 0:
		return "", fmt.Errorf("Apple Photos library not found")
	case 1:
		return libraries[0], nil
	}

	fmt.Fprintf(out, "Found %d photos libraries, which one do you want to use?\n", len(libraries))
	for i, l := range libraries {
		fmt.Fprintf(out, "%d. %s\n", i+1, l)
	}
	fmt.Fprint(out, "\n >>  ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading choice: %w", err)
	}
	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(libraries) {
		return "", fmt.Errorf("invalid choice %q", strings.TrimSpace(line))
	}
	return libraries[choice-1], nil
}
