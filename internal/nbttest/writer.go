// Package nbttest builds NBT byte streams for tests. It is the only
// place in this module that encodes NBT; the public packages only
// decode it.
package nbttest

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/go-theft-craft/anvil/pkg/nbt"
)

// Writer writes NBT binary data to an io.Writer in big-endian format.
// All write methods accumulate errors internally; call Err() after
// writing to check for failures.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter creates a new NBT Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered during writing.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) write(data []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(data)
}

// PutByte writes a single raw byte. Used for list elements and for
// hand-building malformed input.
func (w *Writer) PutByte(v byte) {
	w.write([]byte{v})
}

// PutUint16 writes a raw big-endian uint16.
func (w *Writer) PutUint16(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	w.write(buf[:])
}

// PutInt32 writes a raw big-endian int32.
func (w *Writer) PutInt32(v int32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	w.write(buf[:])
}

// PutInt64 writes a raw big-endian int64.
func (w *Writer) PutInt64(v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	w.write(buf[:])
}

// PutString writes a u16 length prefix followed by the string bytes.
func (w *Writer) PutString(v string) {
	w.PutUint16(uint16(len(v)))
	if len(v) > 0 {
		w.write([]byte(v))
	}
}

func (w *Writer) writeTagHeader(tagType byte, name string) {
	w.PutByte(tagType)
	w.PutString(name)
}

// BeginCompound writes a named compound tag header. For compounds that
// are list elements, write the entries directly and close with
// EndCompound; elements carry no header.
func (w *Writer) BeginCompound(name string) {
	w.writeTagHeader(nbt.TagCompound, name)
}

// EndCompound writes an End tag to close a compound.
func (w *Writer) EndCompound() {
	w.PutByte(nbt.TagEnd)
}

// WriteTagByte writes a named byte tag.
func (w *Writer) WriteTagByte(name string, v int8) {
	w.writeTagHeader(nbt.TagByte, name)
	w.PutByte(byte(v))
}

// WriteShort writes a named short tag.
func (w *Writer) WriteShort(name string, v int16) {
	w.writeTagHeader(nbt.TagShort, name)
	w.PutUint16(uint16(v))
}

// WriteInt writes a named int tag.
func (w *Writer) WriteInt(name string, v int32) {
	w.writeTagHeader(nbt.TagInt, name)
	w.PutInt32(v)
}

// WriteLong writes a named long tag.
func (w *Writer) WriteLong(name string, v int64) {
	w.writeTagHeader(nbt.TagLong, name)
	w.PutInt64(v)
}

// WriteFloat writes a named float tag.
func (w *Writer) WriteFloat(name string, v float32) {
	w.writeTagHeader(nbt.TagFloat, name)
	w.PutInt32(int32(math.Float32bits(v)))
}

// WriteDouble writes a named double tag.
func (w *Writer) WriteDouble(name string, v float64) {
	w.writeTagHeader(nbt.TagDouble, name)
	w.PutInt64(int64(math.Float64bits(v)))
}

// WriteByteArray writes a named byte array tag.
func (w *Writer) WriteByteArray(name string, v []byte) {
	w.writeTagHeader(nbt.TagByteArray, name)
	w.PutInt32(int32(len(v)))
	w.write(v)
}

// WriteString writes a named string tag.
func (w *Writer) WriteString(name string, v string) {
	w.writeTagHeader(nbt.TagString, name)
	w.PutString(v)
}

// WriteIntArray writes a named int array tag.
func (w *Writer) WriteIntArray(name string, v []int32) {
	w.writeTagHeader(nbt.TagIntArray, name)
	w.PutInt32(int32(len(v)))
	for _, val := range v {
		w.PutInt32(val)
	}
}

// WriteLongArray writes a named long array tag.
func (w *Writer) WriteLongArray(name string, v []int64) {
	w.writeTagHeader(nbt.TagLongArray, name)
	w.PutInt32(int32(len(v)))
	for _, val := range v {
		w.PutInt64(val)
	}
}

// BeginList writes a named list tag header. Element payloads follow,
// written with the Put helpers (or entry writers plus EndCompound for
// compound elements).
func (w *Writer) BeginList(name string, elemType byte, count int32) {
	w.writeTagHeader(nbt.TagList, name)
	w.PutByte(elemType)
	w.PutInt32(count)
}
