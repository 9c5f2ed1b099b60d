package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"image-scraper/pkg/utils"
)

// maxAllocationProbes bounds the suffix search in Allocate and CreateUnique
const maxAllocationProbes = 100000

// SaveDir is a handle on the flat directory that downloaded images are written to.
// Names are always resolved against the live directory; nothing is cached.
type SaveDir struct {
	root string
}

// StoredImage describes a file present in the save directory
type StoredImage struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// NewSaveDir returns a handle rooted at dir. The directory is not created until Ensure.
func NewSaveDir(dir string) *SaveDir {
	return &SaveDir{root: filepath.Clean(dir)}
}

// Root returns the directory path
func (d *SaveDir) Root() string {
	return d.root
}

// Ensure creates the directory if it does not exist. Idempotent.
func (d *SaveDir) Ensure() error {
	if err := os.MkdirAll(d.root, 0755); err != nil {
		return fmt.Errorf("%w: creating save directory '%s': %w", utils.ErrFilesystem, d.root, err)
	}
	return nil
}

// candidate returns the k-th name for desired: k=0 is desired itself, then stem_k.ext
func candidate(desired string, k int) string {
	if k == 0 {
		return desired
	}
	ext := filepath.Ext(desired)
	stem := strings.TrimSuffix(desired, ext)
	return stem + "_" + strconv.Itoa(k) + ext
}

// Allocate returns desired if no entry of that name exists, otherwise the first free
// stem_k.ext for k = 1, 2, ... It does not create the file, so two calls without an
// intervening write return the same name.
func (d *SaveDir) Allocate(desired string) (string, error) {
	if err := ValidateFilename(desired); err != nil {
		return "", err
	}
	for k := 0; k < maxAllocationProbes; k++ {
		name := candidate(desired, k)
		_, err := os.Lstat(filepath.Join(d.root, name))
		if errors.Is(err, fs.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: probing '%s': %w", utils.ErrFilesystem, name, err)
		}
	}
	return "", fmt.Errorf("%w: no free name for '%s' after %d probes", utils.ErrFilesystem, desired, maxAllocationProbes)
}

// CreateUnique claims the name Allocate would return by creating it exclusively,
// moving on to the next suffix if another writer got there first.
// The caller owns the returned file and must close it.
func (d *SaveDir) CreateUnique(desired string) (*os.File, string, error) {
	if err := ValidateFilename(desired); err != nil {
		return nil, "", err
	}
	for k := 0; k < maxAllocationProbes; k++ {
		name := candidate(desired, k)
		f, err := os.OpenFile(filepath.Join(d.root, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("%w: creating image file '%s': %w", utils.ErrFilesystem, name, err)
		}
	}
	return nil, "", fmt.Errorf("%w: no free name for '%s' after %d probes", utils.ErrFilesystem, desired, maxAllocationProbes)
}

// Open opens a stored image for reading after validating the name.
// A missing file is reported with fs.ErrNotExist in the chain.
func (d *SaveDir) Open(name string) (*os.File, fs.FileInfo, error) {
	if err := ValidateFilename(name); err != nil {
		return nil, nil, err
	}
	path := filepath.Join(d.root, name)
	info, err := os.Lstat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", utils.ErrFilesystem, err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("%w: '%s' is not a regular file: %w", utils.ErrFilesystem, name, fs.ErrNotExist)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", utils.ErrFilesystem, err)
	}
	return f, info, nil
}

// List returns the regular files in the directory, newest first.
// A directory that does not exist yet yields an empty list.
func (d *SaveDir) List() ([]StoredImage, error) {
	entries, err := os.ReadDir(d.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []StoredImage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: listing '%s': %w", utils.ErrFilesystem, d.root, err)
	}

	images := make([]StoredImage, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // Removed between ReadDir and Info
		}
		images = append(images, StoredImage{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(images, func(i, j int) bool {
		if images[i].ModTime.Equal(images[j].ModTime) {
			return images[i].Name < images[j].Name
		}
		return images[i].ModTime.After(images[j].ModTime)
	})
	return images, nil
}

// ValidateFilename rejects anything that is not a single plain path element:
// empty names, "." and "..", path separators, NUL bytes and hidden files.
func ValidateFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", utils.ErrInvalidFilename, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator or NUL", utils.ErrInvalidFilename, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q is hidden", utils.ErrInvalidFilename, name)
	case filepath.Base(name) != name, filepath.VolumeName(name) != "":
		return fmt.Errorf("%w: %q is not a plain filename", utils.ErrInvalidFilename, name)
	}
	return nil
}
