package ca

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockPushScalar(t *testing.T) {
	b := new(Block)

	require.True(t, pushScalar(b, wireUint16, 0xBBCC))
	require.True(t, pushScalar(b, wireUint32, 0xDDEEFF00))
	require.True(t, pushScalar(b, wireFloat32, 1.0))
	assert.Equal(t, 10, b.OccupiedBytes())
	assert.Equal(t, BlockCapacity-10, b.UnoccupiedBytes())

	expected := []byte{
		0xBB, 0xCC,
		0xDD, 0xEE, 0xFF, 0x00,
		0x3F, 0x80, 0x00, 0x00,
	}
	assert.Equal(t, expected, b.Bytes())
}

func TestBlockScalarNeverSplits(t *testing.T) {
	b := new(Block)
	b.PushBytes(make([]byte, BlockCapacity-1))

	// One byte left: a two-byte scalar must be refused outright.
	require.False(t, pushScalar(b, wireUint16, 0x1234))
	assert.Equal(t, BlockCapacity-1, b.OccupiedBytes())

	require.True(t, pushScalar(b, wireUint8, 0x56))
	assert.Equal(t, BlockCapacity, b.OccupiedBytes())
	assert.Zero(t, b.UnoccupiedBytes())
}

func TestBlockPushVector(t *testing.T) {
	t.Run("PartialFill", func(t *testing.T) {
		b := new(Block)
		b.PushBytes(make([]byte, BlockCapacity-10))

		// Room for two whole float32 elements, not three.
		n := pushVector(b, wireFloat32, []float32{1, 2, 3})
		assert.Equal(t, 2, n)
		assert.Equal(t, BlockCapacity-2, b.OccupiedBytes())
	})

	t.Run("WholeElementsOnly", func(t *testing.T) {
		b := new(Block)
		b.PushBytes(make([]byte, BlockCapacity-7))

		n := pushVector(b, wireFloat64, []float64{1})
		assert.Zero(t, n)
		assert.Equal(t, BlockCapacity-7, b.OccupiedBytes())
	})

	t.Run("Order", func(t *testing.T) {
		b := new(Block)
		n := pushVector(b, wireInt16, []int16{-1, 256})
		require.Equal(t, 2, n)
		assert.Equal(t, []byte{0xFF, 0xFF, 0x01, 0x00}, b.Bytes())
	})
}

func TestBlockPushBytesAndString(t *testing.T) {
	b := new(Block)
	assert.Equal(t, 3, b.PushBytes([]byte{1, 2, 3}))
	assert.Equal(t, 5, b.PushString("hello"))
	assert.Equal(t, []byte{1, 2, 3, 'h', 'e', 'l', 'l', 'o'}, b.Bytes())

	b.Reset()
	b.PushBytes(make([]byte, BlockCapacity-2))
	assert.Equal(t, 2, b.PushBytes([]byte{9, 9, 9}), "a full block consumes only what fits")
}

func TestBlockTruncate(t *testing.T) {
	b := new(Block)
	b.PushString("abcdef")

	b.Truncate(4)
	assert.Equal(t, []byte("abcd"), b.Bytes())

	// Growing or negative truncation is a no-op.
	b.Truncate(10)
	assert.Equal(t, 4, b.OccupiedBytes())
	b.Truncate(-1)
	assert.Equal(t, 4, b.OccupiedBytes())

	b.Truncate(0)
	assert.Zero(t, b.OccupiedBytes())
}

func TestBlockWriteTo(t *testing.T) {
	t.Run("Drain", func(t *testing.T) {
		b := new(Block)
		b.PushString("payload")
		var buf bytes.Buffer
		n, err := b.WriteTo(&buf)
		require.NoError(t, err)
		assert.EqualValues(t, 7, n)
		assert.Equal(t, "payload", buf.String())
		assert.Equal(t, 7, b.OccupiedBytes(), "draining must not consume the block")
	})

	t.Run("Empty", func(t *testing.T) {
		b := new(Block)
		n, err := b.WriteTo(nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ShortWrite", func(t *testing.T) {
		b := new(Block)
		b.PushString("payload")
		w := shortWriter{limit: 3}
		_, err := b.WriteTo(&w)
		assert.ErrorIs(t, err, io.ErrShortWrite)
	})
}

// shortWriter accepts a bounded number of bytes and reports success anyway.
type shortWriter struct {
	limit int
	n     int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	take := min(len(p), w.limit-w.n)
	w.n += take
	return take, nil
}
