package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
)

// File is one entry to store with Write.
type File struct {
	Name string
	Data []byte
}

// Write stores files as an unencrypted version 0x200 archive that Open can
// read back. It backs repacking merged sources into a single archive and
// building archive fixtures. Every entry is zlib compressed; names are
// written EUC-KR encoded.
func Write(w io.Writer, files []File) error {
	var body, table bytes.Buffer

	for _, f := range files {
		compressed, err := deflate(f.Data)
		if err != nil {
			return fmt.Errorf("compressing %s: %w", f.Name, err)
		}
		offset := body.Len()
		body.Write(compressed)

		table.Write(EncodeName(f.Name))
		table.WriteByte(0)
		var info [entryInfoSize]byte
		binary.LittleEndian.PutUint32(info[0:], uint32(len(compressed)))
		binary.LittleEndian.PutUint32(info[4:], uint32(len(compressed)))
		binary.LittleEndian.PutUint32(info[8:], uint32(len(f.Data)))
		info[12] = FlagFile
		binary.LittleEndian.PutUint32(info[13:], uint32(offset))
		table.Write(info[:])
	}

	compressedTable, err := deflate(table.Bytes())
	if err != nil {
		return fmt.Errorf("compressing file table: %w", err)
	}

	header := Header{
		TableOffset: uint32(body.Len()),
		FileCount:   uint32(len(files)) + 7,
		Version:     version200,
	}
	copy(header.Magic[:], grfMagic)

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[0:], uint32(len(compressedTable)))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(table.Len()))
	if _, err := w.Write(sizes[:]); err != nil {
		return err
	}
	_, err = w.Write(compressedTable)
	return err
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
