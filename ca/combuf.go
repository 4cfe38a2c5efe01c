package ca

import (
	"io"
	"math"
)

// BlockCapacity is the fixed capacity shared by every Block.
const BlockCapacity = 0x4000

// Block is a fixed-capacity buffer holding a contiguous run of outgoing wire
// bytes. Blocks are the unit of allocation and the unit of hand-off to the
// socket writer. A Block never grows; an append that does not fit reports how
// much it consumed and the remainder goes into the next block.
type Block struct {
	used int
	buf  [BlockCapacity]byte
}

// OccupiedBytes returns the number of bytes written so far.
func (b *Block) OccupiedBytes() int { return b.used }

// UnoccupiedBytes returns the remaining capacity.
func (b *Block) UnoccupiedBytes() int { return BlockCapacity - b.used }

// Bytes returns a view of the occupied region. The view is invalidated by
// Reset and Truncate.
func (b *Block) Bytes() []byte { return b.buf[:b.used] }

// Reset empties the block for reuse.
func (b *Block) Reset() { b.used = 0 }

// Truncate drops any occupied bytes beyond n.
func (b *Block) Truncate(n int) {
	if n >= 0 && n < b.used {
		b.used = n
	}
}

// PushBytes appends a prefix of p and returns the number of bytes consumed.
func (b *Block) PushBytes(p []byte) int {
	n := copy(b.buf[b.used:], p)
	b.used += n
	return n
}

// PushString appends a prefix of s and returns the number of bytes consumed.
func (b *Block) PushString(s string) int {
	n := copy(b.buf[b.used:], s)
	b.used += n
	return n
}

// WriteTo drains the occupied region to w in a single write. The block keeps
// its contents; the caller resets or releases it after a successful drain.
func (b *Block) WriteTo(w io.Writer) (int64, error) {
	if b.used == 0 {
		return 0, nil
	}
	n, err := w.Write(b.buf[:b.used])
	if err == nil && n < b.used {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// wireType describes how one scalar of type T lands on the wire. Byte order
// conversion happens here and nowhere above this layer.
type wireType[T any] struct {
	size int
	put  func([]byte, T)
}

var (
	wireUint8   = wireType[uint8]{1, func(p []byte, v uint8) { p[0] = v }}
	wireUint16  = wireType[uint16]{2, Order.PutUint16}
	wireInt16   = wireType[int16]{2, func(p []byte, v int16) { Order.PutUint16(p, uint16(v)) }}
	wireUint32  = wireType[uint32]{4, Order.PutUint32}
	wireInt32   = wireType[int32]{4, func(p []byte, v int32) { Order.PutUint32(p, uint32(v)) }}
	wireFloat32 = wireType[float32]{4, func(p []byte, v float32) { Order.PutUint32(p, math.Float32bits(v)) }}
	wireFloat64 = wireType[float64]{8, func(p []byte, v float64) { Order.PutUint64(p, math.Float64bits(v)) }}
)

// pushScalar appends one scalar if it fits entirely. Scalars never split
// across blocks.
func pushScalar[T any](b *Block, wt wireType[T], v T) bool {
	if b.used+wt.size > BlockCapacity {
		return false
	}
	wt.put(b.buf[b.used:], v)
	b.used += wt.size
	return true
}

// pushVector appends whole elements while they fit and returns how many were
// consumed.
func pushVector[T any](b *Block, wt wireType[T], vals []T) int {
	n := min(b.UnoccupiedBytes()/wt.size, len(vals))
	for _, v := range vals[:n] {
		wt.put(b.buf[b.used:], v)
		b.used += wt.size
	}
	return n
}
