// Package source provides uniform read access to atlas assets stored in a
// directory tree or inside a GRF archive.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/atlas-export/pkg/grf"
)

// ErrNotFound is returned when a path does not exist in a source.
var ErrNotFound = errors.New("asset not found")

// Source lists and reads assets by slash-separated relative path.
type Source interface {
	List() []string
	Read(name string) ([]byte, error)
	Close() error
	String() string
}

// Open picks a Source implementation for path: directories are read from
// disk, .grf files through the archive reader.
func Open(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	if info.IsDir() {
		return NewDir(path)
	}
	if strings.EqualFold(filepath.Ext(path), ".grf") {
		return OpenArchive(path)
	}
	return nil, fmt.Errorf("opening source %s: not a directory or .grf archive", path)
}

// Dir is a Source backed by a directory on disk.
type Dir struct {
	root  string
	fsys  fs.FS
	files []string
}

// NewDir indexes every regular file under root.
func NewDir(root string) (*Dir, error) {
	d := &Dir{root: root, fsys: os.DirFS(root)}
	err := fs.WalkDir(d.fsys, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() {
			d.files = append(d.files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("indexing %s: %w", root, err)
	}
	sort.Strings(d.files)
	return d, nil
}

// Root returns the directory the source reads from.
func (d *Dir) Root() string {
	return d.root
}

// List returns all indexed files, sorted.
func (d *Dir) List() []string {
	return append([]string(nil), d.files...)
}

// Read returns the contents of name.
func (d *Dir) Read(name string) ([]byte, error) {
	data, err := fs.ReadFile(d.fsys, path.Clean(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return data, err
}

// Close is a no-op for directories.
func (d *Dir) Close() error {
	return nil
}

func (d *Dir) String() string {
	return "dir:" + d.root
}

// Archive is a Source backed by a GRF archive.
type Archive struct {
	path    string
	archive *grf.Archive
}

// OpenArchive opens the GRF archive at path.
func OpenArchive(path string) (*Archive, error) {
	a, err := grf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	return &Archive{path: path, archive: a}, nil
}

// List returns all archive entries, sorted and normalized.
func (a *Archive) List() []string {
	return a.archive.List()
}

// Read returns the contents of name. Lookup is case-insensitive.
func (a *Archive) Read(name string) ([]byte, error) {
	data, err := a.archive.Read(name)
	if errors.Is(err, grf.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return data, err
}

// Close closes the archive file.
func (a *Archive) Close() error {
	return a.archive.Close()
}

func (a *Archive) String() string {
	return "grf:" + a.path
}
