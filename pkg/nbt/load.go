package nbt

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Load decodes one NBT document from r, returning the root tag's name
// and the root compound.
func Load(r io.Reader) (string, Compound, error) {
	return NewDecoder(r).Decode()
}

// Unpack decodes one NBT document from a byte slice.
func Unpack(data []byte) (string, Compound, error) {
	return Load(bytes.NewReader(data))
}

// Loads is an alias for Unpack, kept for symmetry with conventional
// serializer APIs.
func Loads(data []byte) (string, Compound, error) {
	return Unpack(data)
}

// LoadGzip decodes a gzip-compressed NBT document, the framing used by
// level.dat and the other .dat files in a world directory.
func LoadGzip(r io.Reader) (string, Compound, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return "", nil, fmt.Errorf("nbt: gzip: %w", err)
	}
	defer zr.Close()
	return Load(zr)
}
