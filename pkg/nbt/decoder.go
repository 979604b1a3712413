package nbt

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// maxDepth bounds compound/list nesting so crafted input cannot exhaust
// the call stack.
const maxDepth = 512

// Decoder reads a single NBT document from an io.Reader. A Decoder
// holds no state across documents; Decode may be called again on a
// fresh reader via NewDecoder, and distinct decoders are independent.
type Decoder struct {
	r     io.Reader
	depth int
	buf   [8]byte
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode parses one document and returns the root tag's name and the
// root compound's contents. The name is "" when the root tag carries a
// zero-length name.
func (d *Decoder) Decode() (string, Compound, error) {
	d.depth = 0

	tag, err := d.readTagID()
	if err != nil {
		return "", nil, err
	}
	if tag != TagCompound {
		return "", nil, fmt.Errorf("%w: got tag %d", ErrBadRootTag, tag)
	}

	name, err := d.readString()
	if err != nil {
		return "", nil, err
	}

	root, err := d.readCompound()
	if err != nil {
		return "", nil, err
	}
	return name, root, nil
}

func (d *Decoder) read(p []byte) error {
	if _, err := io.ReadFull(d.r, p); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("nbt: read: %w", err)
	}
	return nil
}

func (d *Decoder) readTagID() (byte, error) {
	if err := d.read(d.buf[:1]); err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

func (d *Decoder) readInt16() (int16, error) {
	if err := d.read(d.buf[:2]); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(d.buf[:2])), nil
}

func (d *Decoder) readInt32() (int32, error) {
	if err := d.read(d.buf[:4]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(d.buf[:4])), nil
}

func (d *Decoder) readInt64() (int64, error) {
	if err := d.read(d.buf[:8]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(d.buf[:8])), nil
}

// readString reads a u16 length prefix followed by that many UTF-8
// bytes.
func (d *Decoder) readString() (string, error) {
	if err := d.read(d.buf[:2]); err != nil {
		return "", err
	}
	length := int(binary.BigEndian.Uint16(d.buf[:2]))
	if length == 0 {
		return "", nil
	}
	raw := make([]byte, length)
	if err := d.read(raw); err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: % x", ErrBadUTF8, raw)
	}
	return string(raw), nil
}

// readArrayLen reads an i32 length prefix. Lengths are signed on the
// wire; a negative count can never be satisfied by the remaining input.
func (d *Decoder) readArrayLen() (int, error) {
	length, err := d.readInt32()
	if err != nil {
		return 0, err
	}
	if length < 0 {
		return 0, fmt.Errorf("nbt: negative length %d: %w", length, io.ErrUnexpectedEOF)
	}
	return int(length), nil
}

// readPayload decodes the payload for tag. The tag id and any name have
// already been consumed by the caller.
func (d *Decoder) readPayload(tag byte) (any, error) {
	switch tag {
	case TagEnd:
		return int8(0), nil
	case TagByte:
		if err := d.read(d.buf[:1]); err != nil {
			return nil, err
		}
		return int8(d.buf[0]), nil
	case TagShort:
		v, err := d.readInt16()
		if err != nil {
			return nil, err
		}
		return v, nil
	case TagInt:
		v, err := d.readInt32()
		if err != nil {
			return nil, err
		}
		return v, nil
	case TagLong:
		v, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		return v, nil
	case TagFloat:
		v, err := d.readInt32()
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(uint32(v)), nil
	case TagDouble:
		v, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(uint64(v)), nil
	case TagByteArray:
		length, err := d.readArrayLen()
		if err != nil {
			return nil, err
		}
		raw := make([]byte, length)
		if err := d.read(raw); err != nil {
			return nil, err
		}
		return raw, nil
	case TagString:
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		return s, nil
	case TagList:
		return d.readList()
	case TagCompound:
		return d.readCompound()
	case TagIntArray:
		length, err := d.readArrayLen()
		if err != nil {
			return nil, err
		}
		raw := make([]byte, length*4)
		if err := d.read(raw); err != nil {
			return nil, err
		}
		values := make([]int32, length)
		for i := range values {
			values[i] = int32(binary.BigEndian.Uint32(raw[i*4:]))
		}
		return values, nil
	case TagLongArray:
		length, err := d.readArrayLen()
		if err != nil {
			return nil, err
		}
		raw := make([]byte, length*8)
		if err := d.read(raw); err != nil {
			return nil, err
		}
		values := make([]int64, length)
		for i := range values {
			values[i] = int64(binary.BigEndian.Uint64(raw[i*8:]))
		}
		return values, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
}

// readList decodes an element tag id, an i32 count and that many
// payloads of the element type. A zero count yields an empty slice no
// matter what the element tag id is.
func (d *Decoder) readList() ([]any, error) {
	if d.depth++; d.depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	defer func() { d.depth-- }()

	elem, err := d.readTagID()
	if err != nil {
		return nil, err
	}
	length, err := d.readArrayLen()
	if err != nil {
		return nil, err
	}

	values := make([]any, 0, length)
	for i := 0; i < length; i++ {
		v, err := d.readPayload(elem)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// readCompound decodes name/payload entries until an End tag. The
// opening compound tag id (and name, if any) have already been read.
// Duplicate names overwrite earlier entries.
func (d *Decoder) readCompound() (Compound, error) {
	if d.depth++; d.depth > maxDepth {
		return nil, ErrDepthExceeded
	}
	defer func() { d.depth-- }()

	values := Compound{}
	for {
		tag, err := d.readTagID()
		if err != nil {
			return nil, err
		}
		if tag == TagEnd {
			return values, nil
		}
		if tag > TagLongArray {
			return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
		}

		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		v, err := d.readPayload(tag)
		if err != nil {
			return nil, err
		}
		values[name] = v
	}
}
