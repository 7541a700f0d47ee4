// Package grf reads Ragnarok Online GRF archives, which are used here as
// containers for atlas textures and their manifests.
package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

const (
	grfMagic      = "Master of Magic"
	headerSize    = 46
	entryInfoSize = 17
	version200    = 0x200
)

// Entry flags.
const (
	FlagFile        = 0x01
	FlagMixCrypt    = 0x02
	FlagHeaderCrypt = 0x04
)

// GRF errors.
var (
	ErrInvalidMagic       = errors.New("invalid GRF magic")
	ErrUnsupportedVersion = errors.New("unsupported GRF version")
	ErrNotFound           = errors.New("file not found in archive")
	ErrEncrypted          = errors.New("encrypted entries are not supported")
	ErrCorrupt            = errors.New("corrupt GRF data")
)

// Header is the fixed 46-byte GRF header.
type Header struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32
	Version       uint32
}

// Entry describes one stored file.
type Entry struct {
	Name             string // Normalized UTF-8 path
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Archive is an opened GRF archive. It is safe for sequential use only.
type Archive struct {
	r       io.ReaderAt
	closer  io.Closer
	header  Header
	entries map[string]*Entry
}

// Open opens a GRF archive from disk.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	archive, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	archive.closer = file
	return archive, nil
}

// NewReader reads the archive header and file table from r.
func NewReader(r io.ReaderAt) (*Archive, error) {
	a := &Archive{
		r:       r,
		entries: make(map[string]*Entry),
	}

	if err := a.readHeader(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := a.readFileTable(); err != nil {
		return nil, fmt.Errorf("reading file table: %w", err)
	}
	return a, nil
}

// Close releases the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

func (a *Archive) readHeader() error {
	sr := io.NewSectionReader(a.r, 0, headerSize)
	if err := binary.Read(sr, binary.LittleEndian, &a.header); err != nil {
		return err
	}
	if string(a.header.Magic[:]) != grfMagic {
		return ErrInvalidMagic
	}
	if a.header.Version != version200 {
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.Version)
	}
	return nil
}

func (a *Archive) readFileTable() error {
	tableOffset := int64(a.header.TableOffset) + headerSize

	var sizes [8]byte
	if err := readAt(a.r, sizes[:], tableOffset); err != nil {
		return fmt.Errorf("%w: table sizes: %v", ErrCorrupt, err)
	}
	compressedSize := binary.LittleEndian.Uint32(sizes[0:])
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])

	compressed := make([]byte, compressedSize)
	if err := readAt(a.r, compressed, tableOffset+8); err != nil {
		return fmt.Errorf("%w: table data: %v", ErrCorrupt, err)
	}
	table, err := inflate(compressed, uncompressedSize)
	if err != nil {
		return fmt.Errorf("%w: table: %v", ErrCorrupt, err)
	}

	if a.header.FileCount < a.header.Seed+7 {
		return fmt.Errorf("%w: file count underflow", ErrCorrupt)
	}
	fileCount := a.header.FileCount - a.header.Seed - 7

	offset := 0
	for i := uint32(0); i < fileCount; i++ {
		nameEnd := bytes.IndexByte(table[offset:], 0)
		if nameEnd < 0 {
			return fmt.Errorf("%w: entry %d name not terminated", ErrCorrupt, i)
		}
		rawName := table[offset : offset+nameEnd]
		offset += nameEnd + 1

		if offset+entryInfoSize > len(table) {
			return fmt.Errorf("%w: entry %d truncated", ErrCorrupt, i)
		}
		entry := &Entry{
			Name:             NormalizePath(DecodeName(rawName)),
			CompressedSize:   binary.LittleEndian.Uint32(table[offset:]),
			AlignedSize:      binary.LittleEndian.Uint32(table[offset+4:]),
			UncompressedSize: binary.LittleEndian.Uint32(table[offset+8:]),
			Flags:            table[offset+12],
			Offset:           binary.LittleEndian.Uint32(table[offset+13:]),
		}
		offset += entryInfoSize

		// Directories carry no file bit.
		if entry.Flags&FlagFile != 0 {
			a.entries[entry.Name] = entry
		}
	}
	return nil
}

// Version returns the archive format version.
func (a *Archive) Version() uint32 {
	return a.header.Version
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.entries))
	for name := range a.entries {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Stat returns the entry for path.
func (a *Archive) Stat(path string) (*Entry, bool) {
	e, ok := a.entries[NormalizePath(path)]
	return e, ok
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.Stat(path)
	return ok
}

// Read returns the uncompressed contents of path.
func (a *Archive) Read(path string) ([]byte, error) {
	entry, ok := a.Stat(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if entry.Flags&(FlagMixCrypt|FlagHeaderCrypt) != 0 {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, path)
	}

	// Aligned padding only matters for encrypted entries.
	stored := make([]byte, entry.CompressedSize)
	if err := readAt(a.r, stored, int64(entry.Offset)+headerSize); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrCorrupt, path, err)
	}

	if entry.CompressedSize == entry.UncompressedSize {
		return stored, nil
	}

	data, err := inflate(stored, entry.UncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("%w: inflating %s: %v", ErrCorrupt, path, err)
	}
	return data, nil
}

// readAt fills buf from r at off. A full read that ends exactly at EOF is
// not an error.
func readAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// inflate decompresses zlib data that must expand to exactly size bytes.
func inflate(data []byte, size uint32) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, err
	}
	return out, nil
}
