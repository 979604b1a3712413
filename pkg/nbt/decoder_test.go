package nbt_test

import (
	"bytes"
	"io"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/go-theft-craft/anvil/internal/nbttest"
	"github.com/go-theft-craft/anvil/pkg/nbt"
)

// document builds a complete NBT document: root compound header, the
// entries written by build, and the closing End tag.
func document(t *testing.T, build func(w *nbttest.Writer)) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := nbttest.NewWriter(&buf)
	w.BeginCompound("")
	build(w)
	w.EndCompound()
	require.NoError(t, w.Err())
	return buf.Bytes()
}

func TestDecodeInvalidRoot(t *testing.T) {
	_, _, err := nbt.Unpack([]byte{0x04, 0x00, 0x00, 0x00})
	require.ErrorIs(t, err, nbt.ErrBadRootTag)
	require.ErrorContains(t, err, "4")
}

func TestDecodeEmptyDocument(t *testing.T) {
	name, root, err := nbt.Unpack([]byte{0x0A, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, "", name)
	require.Empty(t, root)
}

func TestDecodeRootName(t *testing.T) {
	var buf bytes.Buffer
	w := nbttest.NewWriter(&buf)
	w.BeginCompound("hello world")
	w.EndCompound()
	require.NoError(t, w.Err())

	name, root, err := nbt.Unpack(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "hello world", name)
	require.Empty(t, root)
}

func TestDecodeScalars(t *testing.T) {
	data := document(t, func(w *nbttest.Writer) {
		w.WriteTagByte("byte", -5)
		w.WriteShort("short", -1234)
		w.WriteInt("int", 123456789)
		w.WriteLong("long", 0x123456789ABCDEF0)
		w.WriteFloat("float", 1.5)
		w.WriteDouble("double", -2.25)
		w.WriteString("string", "hello")
	})

	_, root, err := nbt.Unpack(data)
	require.NoError(t, err)
	require.Equal(t, nbt.Compound{
		"byte":   int8(-5),
		"short":  int16(-1234),
		"int":    int32(123456789),
		"long":   int64(0x123456789ABCDEF0),
		"float":  float32(1.5),
		"double": float64(-2.25),
		"string": "hello",
	}, root)
}

func TestDecodeByteArray(t *testing.T) {
	value := []byte(strings.ReplaceAll(uuid.New().String(), "-", ""))
	data := document(t, func(w *nbttest.Writer) {
		w.WriteByteArray("data", value)
	})

	_, root, err := nbt.Unpack(data)
	require.NoError(t, err)
	require.Equal(t, value, root["data"])
}

func TestDecodeIntArray(t *testing.T) {
	rng := rand.New(rand.NewSource(0x5eed))
	values := make([]int32, 100)
	for i := range values {
		values[i] = int32(rng.Intn(32769))
	}
	slices.Sort(values)

	data := document(t, func(w *nbttest.Writer) {
		w.WriteIntArray("ints", values)
	})

	_, root, err := nbt.Unpack(data)
	require.NoError(t, err)
	require.Equal(t, values, root["ints"])
}

func TestDecodeLongArray(t *testing.T) {
	rng := rand.New(rand.NewSource(0x10ad))
	values := make([]int64, 100)
	for i := range values {
		values[i] = int64(rng.Intn(32769))
	}
	slices.Sort(values)

	data := document(t, func(w *nbttest.Writer) {
		w.WriteLongArray("longs", values)
	})

	_, root, err := nbt.Unpack(data)
	require.NoError(t, err)
	require.Equal(t, values, root["longs"])
}

func TestDecodeEmptyArrays(t *testing.T) {
	data := document(t, func(w *nbttest.Writer) {
		w.WriteByteArray("ba", nil)
		w.WriteIntArray("ia", nil)
		w.WriteLongArray("la", nil)
	})

	_, root, err := nbt.Unpack(data)
	require.NoError(t, err)
	require.Equal(t, []byte{}, root["ba"])
	require.Equal(t, []int32{}, root["ia"])
	require.Equal(t, []int64{}, root["la"])
}

func TestDecodeList(t *testing.T) {
	t.Run("Ints", func(t *testing.T) {
		data := document(t, func(w *nbttest.Writer) {
			w.BeginList("values", nbt.TagInt, 3)
			w.PutInt32(7)
			w.PutInt32(8)
			w.PutInt32(9)
		})

		_, root, err := nbt.Unpack(data)
		require.NoError(t, err)
		require.Equal(t, []any{int32(7), int32(8), int32(9)}, root["values"])
	})

	t.Run("Compounds", func(t *testing.T) {
		data := document(t, func(w *nbttest.Writer) {
			w.BeginList("sections", nbt.TagCompound, 2)
			w.WriteTagByte("Y", 0)
			w.EndCompound()
			w.WriteTagByte("Y", 1)
			w.EndCompound()
		})

		_, root, err := nbt.Unpack(data)
		require.NoError(t, err)
		require.Equal(t, []any{
			nbt.Compound{"Y": int8(0)},
			nbt.Compound{"Y": int8(1)},
		}, root["sections"])
	})

	t.Run("Nested", func(t *testing.T) {
		data := document(t, func(w *nbttest.Writer) {
			w.BeginList("outer", nbt.TagList, 1)
			// Inner list payload: element tag + count + elements.
			w.PutByte(nbt.TagShort)
			w.PutInt32(2)
			w.PutUint16(1)
			w.PutUint16(2)
		})

		_, root, err := nbt.Unpack(data)
		require.NoError(t, err)
		require.Equal(t, []any{[]any{int16(1), int16(2)}}, root["outer"])
	})

	t.Run("EmptyWithEndElementTag", func(t *testing.T) {
		data := document(t, func(w *nbttest.Writer) {
			w.BeginList("empty", nbt.TagEnd, 0)
		})

		_, root, err := nbt.Unpack(data)
		require.NoError(t, err)
		require.Equal(t, []any{}, root["empty"])
	})
}

func TestDecodeEmptyStringIsNil(t *testing.T) {
	data := document(t, func(w *nbttest.Writer) {
		w.WriteString("present", "x")
		w.WriteString("absent", "")
	})

	_, root, err := nbt.Unpack(data)
	require.NoError(t, err)
	require.Equal(t, "x", root["present"])
	require.Contains(t, root, "absent")
	require.Nil(t, root["absent"])
}

func TestDecodeDuplicateKeysLastWins(t *testing.T) {
	data := document(t, func(w *nbttest.Writer) {
		w.WriteInt("k", 1)
		w.WriteInt("k", 2)
	})

	_, root, err := nbt.Unpack(data)
	require.NoError(t, err)
	require.Equal(t, nbt.Compound{"k": int32(2)}, root)
}

func TestDecodeNestedCompound(t *testing.T) {
	data := document(t, func(w *nbttest.Writer) {
		w.BeginCompound("Level")
		w.WriteInt("xPos", 3)
		w.WriteInt("zPos", 5)
		w.EndCompound()
	})

	_, root, err := nbt.Unpack(data)
	require.NoError(t, err)
	require.Equal(t, nbt.Compound{
		"Level": nbt.Compound{"xPos": int32(3), "zPos": int32(5)},
	}, root)
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	data := document(t, func(w *nbttest.Writer) {
		w.WriteInt("k", 1)
	})
	data = append(data, 0xDE, 0xAD, 0xBE, 0xEF)

	_, root, err := nbt.Unpack(data)
	require.NoError(t, err)
	require.Equal(t, nbt.Compound{"k": int32(1)}, root)
}

func TestDecodeTruncated(t *testing.T) {
	data := document(t, func(w *nbttest.Writer) {
		w.WriteTagByte("b", 1)
		w.WriteString("s", "hello")
		w.WriteIntArray("ia", []int32{1, 2, 3})
		w.BeginList("l", nbt.TagLong, 2)
		w.PutInt64(1)
		w.PutInt64(2)
		w.BeginCompound("inner")
		w.WriteDouble("d", 1.0)
		w.EndCompound()
	})

	// Every strict prefix ends mid-field somewhere.
	for cut := 0; cut < len(data); cut++ {
		_, _, err := nbt.Unpack(data[:cut])
		require.ErrorIs(t, err, io.ErrUnexpectedEOF, "prefix of %d bytes", cut)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	t.Run("InCompound", func(t *testing.T) {
		data := document(t, func(w *nbttest.Writer) {
			w.PutByte(13)
			w.PutString("bogus")
		})

		_, _, err := nbt.Unpack(data)
		require.ErrorIs(t, err, nbt.ErrUnknownTag)
		require.ErrorContains(t, err, "13")
	})

	t.Run("AsListElement", func(t *testing.T) {
		data := document(t, func(w *nbttest.Writer) {
			w.BeginList("l", 42, 1)
		})

		_, _, err := nbt.Unpack(data)
		require.ErrorIs(t, err, nbt.ErrUnknownTag)
	})
}

func TestDecodeBadUTF8(t *testing.T) {
	data := document(t, func(w *nbttest.Writer) {
		w.PutByte(nbt.TagString)
		w.PutUint16(2)
		w.PutByte(0xFF)
		w.PutByte(0xFE)
	})

	_, _, err := nbt.Unpack(data)
	require.ErrorIs(t, err, nbt.ErrBadUTF8)
}

func TestDecodeNegativeLength(t *testing.T) {
	t.Run("ByteArray", func(t *testing.T) {
		data := document(t, func(w *nbttest.Writer) {
			w.PutByte(nbt.TagByteArray)
			w.PutString("a")
			w.PutInt32(-1)
		})

		_, _, err := nbt.Unpack(data)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("List", func(t *testing.T) {
		data := document(t, func(w *nbttest.Writer) {
			w.PutByte(nbt.TagList)
			w.PutString("l")
			w.PutByte(nbt.TagInt)
			w.PutInt32(-7)
		})

		_, _, err := nbt.Unpack(data)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

func TestDecodeDepthLimit(t *testing.T) {
	var buf bytes.Buffer
	w := nbttest.NewWriter(&buf)
	w.BeginCompound("")
	for i := 0; i < 600; i++ {
		w.BeginCompound("a")
	}
	require.NoError(t, w.Err())

	_, _, err := nbt.Unpack(buf.Bytes())
	require.ErrorIs(t, err, nbt.ErrDepthExceeded)
}

func TestLoadGzip(t *testing.T) {
	data := document(t, func(w *nbttest.Writer) {
		w.BeginCompound("Data")
		w.WriteLong("RandomSeed", 42)
		w.WriteString("LevelName", "world")
		w.EndCompound()
	})

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	name, root, err := nbt.LoadGzip(&buf)
	require.NoError(t, err)
	require.Equal(t, "", name)
	require.Equal(t, nbt.Compound{
		"Data": nbt.Compound{"RandomSeed": int64(42), "LevelName": "world"},
	}, root)
}

func TestLoadGzipBadMagic(t *testing.T) {
	_, _, err := nbt.LoadGzip(bytes.NewReader([]byte{0x0A, 0x00, 0x00, 0x00}))
	require.Error(t, err)
}

func TestEntryPointsAgree(t *testing.T) {
	data := document(t, func(w *nbttest.Writer) {
		w.WriteInt("k", 7)
	})

	name, root, err := nbt.Load(bytes.NewReader(data))
	require.NoError(t, err)

	for _, decode := range []func([]byte) (string, nbt.Compound, error){nbt.Unpack, nbt.Loads} {
		n, r, err := decode(data)
		require.NoError(t, err)
		require.Equal(t, name, n)
		require.Equal(t, root, r)
	}
}
