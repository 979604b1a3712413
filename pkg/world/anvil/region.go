// Package anvil reads and writes .mca region files, the sectorized
// container that packs up to 1024 zlib-compressed NBT chunks.
package anvil

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/go-theft-craft/anvil/pkg/nbt"
)

const (
	sectorSize      = 4096
	headerSectors   = 2 // location table + timestamp table
	compressionZlib = 2
)

// ErrBadCompression is returned when a chunk's compression byte is not
// zlib (2). Gzip (1) and uncompressed (3) payloads exist in the wild
// but are not accepted here.
var ErrBadCompression = errors.New("anvil: unsupported chunk compression")

// ChunkPos addresses a chunk within a region; both coordinates are in
// [0,32).
type ChunkPos struct {
	X, Z int
}

// Chunk is one decoded chunk together with its slot metadata.
type Chunk struct {
	// Location is the region pair derived from the file name.
	Location [2]int
	// Timestamp is the slot's last-modified time in seconds since epoch.
	Timestamp int32
	// X and Z are the in-region chunk coordinates.
	X, Z int
	// NBT holds the chunk's decoded root compound.
	NBT nbt.Compound
}

// Region provides read access to one region file. The file handle is
// held for the Region's lifetime and seeked by Chunk and Chunks calls,
// so a Region must not be used from multiple goroutines at once.
type Region struct {
	path       string
	location   [2]int
	file       *os.File
	locations  [1024]int32
	timestamps [1024]int32
}

// Open opens the region file at path and reads both header sectors.
// The handle is closed again if the header cannot be read.
func Open(path string) (*Region, error) {
	location, err := parseLocation(filepath.Base(path))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("anvil: open region: %w", err)
	}

	header := make([]byte, headerSectors*sectorSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("anvil: read region header: %w", err)
	}

	r := &Region{path: path, location: location, file: f}
	for i := 0; i < 1024; i++ {
		r.locations[i] = int32(binary.BigEndian.Uint32(header[i*4:]))
		r.timestamps[i] = int32(binary.BigEndian.Uint32(header[sectorSize+i*4:]))
	}
	return r, nil
}

// parseLocation derives the stored location pair from a region file
// name of the form <prefix>.<x>.<z>.<ext>: the second and third
// dot-separated fields, each arithmetic-shifted right by 5.
func parseLocation(name string) ([2]int, error) {
	parts := strings.Split(name, ".")
	if len(parts) < 3 {
		return [2]int{}, fmt.Errorf("anvil: region filename %q: want <prefix>.<x>.<z>.<ext>", name)
	}
	x, err := strconv.Atoi(parts[1])
	if err != nil {
		return [2]int{}, fmt.Errorf("anvil: region filename %q: %w", name, err)
	}
	z, err := strconv.Atoi(parts[2])
	if err != nil {
		return [2]int{}, fmt.Errorf("anvil: region filename %q: %w", name, err)
	}
	return [2]int{x >> 5, z >> 5}, nil
}

// Path returns the path the region was opened from.
func (r *Region) Path() string {
	return r.path
}

// Location returns the region pair derived from the file name.
func (r *Region) Location() [2]int {
	return r.location
}

// Close releases the underlying file handle.
func (r *Region) Close() error {
	return r.file.Close()
}

// Chunk returns the decoded chunk at in-region coordinates (x, z), or
// nil when the slot is empty. Coordinates are taken mod 32.
func (r *Region) Chunk(x, z int) (*Chunk, error) {
	i := (x & 31) + (z&31)*32
	location := r.locations[i]
	if location>>8 == 0 {
		return nil, nil
	}

	root, err := r.readChunkPayload(x, z, int64(location>>8)*sectorSize)
	if err != nil {
		return nil, err
	}
	return &Chunk{
		Location:  r.location,
		Timestamp: r.timestamps[i],
		X:         x,
		Z:         z,
		NBT:       root,
	}, nil
}

// readChunkPayload reads the length/compression prefix at offset,
// inflates the payload and decodes it. NBT errors pass through
// unchanged.
func (r *Region) readChunkPayload(x, z int, offset int64) (nbt.Compound, error) {
	if _, err := r.file.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("anvil: seek chunk (%d,%d): %w", x, z, err)
	}

	var header [5]byte
	if _, err := io.ReadFull(r.file, header[:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("anvil: read chunk (%d,%d) header: %w", x, z, err)
	}

	length := int32(binary.BigEndian.Uint32(header[0:4]))
	if compression := header[4]; compression != compressionZlib {
		return nil, fmt.Errorf("%w: %d", ErrBadCompression, compression)
	}
	if length < 1 {
		return nil, fmt.Errorf("anvil: chunk (%d,%d) payload length %d: %w", x, z, length, io.ErrUnexpectedEOF)
	}

	compressed := make([]byte, length-1)
	if _, err := io.ReadFull(r.file, compressed); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("anvil: read chunk (%d,%d) payload: %w", x, z, err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("anvil: inflate chunk (%d,%d): %w", x, z, err)
	}
	defer zr.Close()

	_, root, err := nbt.Load(zr)
	if err != nil {
		return nil, err
	}
	return root, nil
}

// Chunks iterates over every chunk present in the region, x-major:
// (0,0), (0,1), ... (0,31), (1,0) and so on. Iteration is lazy; each
// chunk is read and decoded only when the consumer reaches it.
func (r *Region) Chunks() iter.Seq2[*Chunk, error] {
	return func(yield func(*Chunk, error) bool) {
		for x := 0; x < 32; x++ {
			for z := 0; z < 32; z++ {
				if r.locations[x+z*32]>>8 == 0 {
					continue
				}
				if !yield(r.Chunk(x, z)) {
					return
				}
			}
		}
	}
}

// SaveRegion writes chunks to r.<rx>.<rz>.mca in dir: two header
// sectors followed by the payloads, each padded to a 4 KiB boundary.
// chunks maps in-region positions to uncompressed NBT documents.
func SaveRegion(dir string, rx, rz int, chunks map[ChunkPos][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("anvil: create region dir: %w", err)
	}

	compressed := make(map[int][]byte, len(chunks))
	for pos, doc := range chunks {
		data, err := deflate(doc)
		if err != nil {
			return fmt.Errorf("anvil: compress chunk (%d,%d): %w", pos.X, pos.Z, err)
		}
		compressed[(pos.X&31)+(pos.Z&31)*32] = data
	}

	var (
		locations  [sectorSize]byte
		timestamps [sectorSize]byte
		body       bytes.Buffer
	)
	now := uint32(time.Now().Unix())
	sector := uint32(headerSectors)

	// Slot order fixes the on-disk layout regardless of map order.
	for slot := 0; slot < 1024; slot++ {
		data, ok := compressed[slot]
		if !ok {
			continue
		}

		// The length prefix counts the compression byte plus the data.
		var prefix [5]byte
		binary.BigEndian.PutUint32(prefix[:4], uint32(len(data))+1)
		prefix[4] = compressionZlib
		body.Write(prefix[:])
		body.Write(data)

		used := len(prefix) + len(data)
		count := (used + sectorSize - 1) / sectorSize
		body.Write(make([]byte, count*sectorSize-used))

		binary.BigEndian.PutUint32(locations[slot*4:], sector<<8|uint32(count)&0xFF)
		binary.BigEndian.PutUint32(timestamps[slot*4:], now)
		sector += uint32(count)
	}

	path := filepath.Join(dir, fmt.Sprintf("r.%d.%d.mca", rx, rz))
	return writeFileAtomic(path, locations[:], timestamps[:], body.Bytes())
}

func deflate(doc []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(doc); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes parts to a temp file and renames it over
// path, so a crash mid-save never leaves a torn region file.
func writeFileAtomic(path string, parts ...[]byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("anvil: create region file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp)
	}()

	for _, part := range parts {
		if _, err := f.Write(part); err != nil {
			return fmt.Errorf("anvil: write region file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("anvil: close region file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("anvil: rename region file: %w", err)
	}
	return nil
}
