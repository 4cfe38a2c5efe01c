// Package ca assembles and transmits Channel Access client requests: a
// chain of fixed-capacity buffer blocks, message framing with commit and
// rollback, builders for the client request set, and the TCP/UDP send paths
// that drain the chain.
package ca

import (
	"fmt"
	"math"
)

// SendQueue assembles outgoing requests into a FIFO chain of fixed-capacity
// blocks. Requests are built message by message: BeginMsg marks a boundary,
// pushes append bytes, and CommitMsg makes them part of the permanent stream.
// Bytes left uncommitted by an abandoned build are discarded by the next
// BeginMsg, Clear or PopBlock, so a consumer never observes a partial
// message.
//
// The queue does no locking of its own. Producers serialize externally
// around the whole begin/push/commit sequence, and at most one consumer pops
// at a time. Conn provides exactly that discipline for TCP circuits.
type SendQueue struct {
	alloc Allocator

	// blocks is the chain, oldest first. Only the tail block accepts appends.
	blocks []*Block

	// nBytesPending counts every byte in the chain, committed or not.
	// Counting the uncommitted suffix keeps the flush thresholds honest about
	// memory actually held while a large message is assembled.
	nBytesPending int

	// nUncommitted counts the bytes appended since the last commit point. The
	// commit boundary is this suffix length, never a position inside a block,
	// so blocks can come and go without boundary fixups.
	nUncommitted int
}

// NewSendQueue returns an empty queue drawing blocks from alloc.
func NewSendQueue(alloc Allocator) *SendQueue {
	return &SendQueue{alloc: alloc}
}

// Clear releases every block back to the allocator and empties the queue.
func (q *SendQueue) Clear() {
	for i, b := range q.blocks {
		q.alloc.Put(b)
		q.blocks[i] = nil
	}
	q.blocks = q.blocks[:0]
	q.nBytesPending = 0
	q.nUncommitted = 0
}

// BeginMsg starts a new message, first discarding any bytes an abandoned
// build left uncommitted.
func (q *SendQueue) BeginMsg() {
	if q.nUncommitted > 0 {
		q.rollback()
	}
}

// CommitMsg makes everything appended since BeginMsg permanent.
func (q *SendQueue) CommitMsg() {
	q.nUncommitted = 0
}

// OccupiedBytes returns the total bytes queued, the uncommitted suffix
// included.
func (q *SendQueue) OccupiedBytes() int { return q.nBytesPending }

// FlushBlockThreshold reports whether the queue, plus a message of
// nBytesThisMsg about to be built, is past the hard limit where the producer
// must block until the consumer drains.
func (q *SendQueue) FlushBlockThreshold(nBytesThisMsg int) bool {
	return q.nBytesPending+nBytesThisMsg > 16*BlockCapacity
}

// FlushEarlyThreshold reports whether enough has queued that the consumer
// should be nudged ahead of the usual flush point.
func (q *SendQueue) FlushEarlyThreshold(nBytesThisMsg int) bool {
	return q.nBytesPending+nBytesThisMsg > 4*BlockCapacity
}

// rollback discards the uncommitted suffix, truncating the tail block and
// releasing blocks the truncation empties. Committed bytes are never touched.
func (q *SendQueue) rollback() {
	for q.nUncommitted > 0 && len(q.blocks) > 0 {
		last := q.blocks[len(q.blocks)-1]
		drop := min(last.OccupiedBytes(), q.nUncommitted)
		last.Truncate(last.OccupiedBytes() - drop)
		q.nUncommitted -= drop
		q.nBytesPending -= drop
		if last.OccupiedBytes() == 0 {
			q.blocks[len(q.blocks)-1] = nil
			q.blocks = q.blocks[:len(q.blocks)-1]
			q.alloc.Put(last)
		}
	}
	q.nUncommitted = 0
}

// PopBlock transfers ownership of the oldest block to the caller, who
// releases it to the allocator once drained. Any uncommitted bytes are
// discarded first; popping is the consumer's move, and the consumer must
// never see a partial message.
func (q *SendQueue) PopBlock() (*Block, bool) {
	if q.nUncommitted > 0 {
		q.rollback()
	}
	if len(q.blocks) == 0 {
		return nil, false
	}
	b := q.blocks[0]
	q.blocks[0] = nil
	q.blocks = q.blocks[1:]
	if len(q.blocks) == 0 {
		q.blocks = nil
	}
	q.nBytesPending -= b.OccupiedBytes()
	return b, true
}

func (q *SendQueue) lastBlock() *Block {
	if len(q.blocks) == 0 {
		return nil
	}
	return q.blocks[len(q.blocks)-1]
}

// grow appends a fresh block to the chain.
func (q *SendQueue) grow() (*Block, error) {
	b, err := q.alloc.Get()
	if err != nil {
		return nil, err
	}
	q.blocks = append(q.blocks, b)
	return b, nil
}

// account records n freshly appended bytes.
func (q *SendQueue) account(n int) {
	q.nBytesPending += n
	q.nUncommitted += n
}

// pushWire appends one scalar, spilling into a fresh block when the tail is
// full. Nothing is appended if allocation fails.
func pushWire[T any](q *SendQueue, wt wireType[T], v T) error {
	if b := q.lastBlock(); b != nil && pushScalar(b, wt, v) {
		q.account(wt.size)
		return nil
	}
	b, err := q.grow()
	if err != nil {
		return err
	}
	pushScalar(b, wt, v)
	q.account(wt.size)
	return nil
}

// pushSlice appends elements across as many blocks as needed. Bytes placed
// before a mid-array allocation failure stay queued uncommitted; the next
// BeginMsg, Clear or pop rolls them back.
func pushSlice[T any](q *SendQueue, wt wireType[T], vals []T) error {
	n := 0
	if b := q.lastBlock(); b != nil {
		n = pushVector(b, wt, vals)
		q.account(n * wt.size)
	}
	for n < len(vals) {
		b, err := q.grow()
		if err != nil {
			return err
		}
		m := pushVector(b, wt, vals[n:])
		q.account(m * wt.size)
		n += m
	}
	return nil
}

// PushUint16 appends one 16-bit scalar in network byte order.
func (q *SendQueue) PushUint16(v uint16) error { return pushWire(q, wireUint16, v) }

// PushUint32 appends one 32-bit scalar in network byte order.
func (q *SendQueue) PushUint32(v uint32) error { return pushWire(q, wireUint32, v) }

// PushFloat32 appends one IEEE-754 single in network byte order.
func (q *SendQueue) PushFloat32(v float32) error { return pushWire(q, wireFloat32, v) }

// PushBytes appends raw bytes, splitting across blocks at any byte boundary.
func (q *SendQueue) PushBytes(p []byte) error {
	for len(p) > 0 {
		b := q.lastBlock()
		if b == nil || b.UnoccupiedBytes() == 0 {
			var err error
			if b, err = q.grow(); err != nil {
				return err
			}
		}
		n := b.PushBytes(p)
		q.account(n)
		p = p[n:]
	}
	return nil
}

// PushString appends the raw bytes of s, splitting across blocks at any
// byte boundary.
func (q *SendQueue) PushString(s string) error {
	for len(s) > 0 {
		b := q.lastBlock()
		if b == nil || b.UnoccupiedBytes() == 0 {
			var err error
			if b, err = q.grow(); err != nil {
				return err
			}
		}
		n := b.PushString(s)
		q.account(n)
		s = s[n:]
	}
	return nil
}

// PushDataType appends n elements of value through the copy routine
// registered for t. An unregistered code fails with ErrBadType before any
// byte moves; so does a value whose dynamic type does not match the code.
func (q *SendQueue) PushDataType(t DBRType, value any, n int) error {
	if !t.Supported() {
		return fmt.Errorf("%w: %v", ErrBadType, t)
	}
	if n < 0 {
		return fmt.Errorf("%w: negative element count %d", ErrBadType, n)
	}
	return dbrCopyTable[t](q, value, n)
}

// fieldPusher latches the first push error so multi-field emission reads as
// a straight run of fields.
type fieldPusher struct {
	q   *SendQueue
	err error
}

func (f *fieldPusher) uint16(v uint16) {
	if f.err == nil {
		f.err = f.q.PushUint16(v)
	}
}

func (f *fieldPusher) uint32(v uint32) {
	if f.err == nil {
		f.err = f.q.PushUint32(v)
	}
}

func (f *fieldPusher) float32(v float32) {
	if f.err == nil {
		f.err = f.q.PushFloat32(v)
	}
}

func (f *fieldPusher) bytes(p []byte) {
	if f.err == nil {
		f.err = f.q.PushBytes(p)
	}
}

func (f *fieldPusher) str(s string) {
	if f.err == nil {
		f.err = f.q.PushString(s)
	}
}

// InsertRequestHeader appends a request header. Sizes that fit 16 bits
// always produce the 16-byte standard form. When payloadSize or count
// overflows 16 bits and extendedOK is set, both short fields carry the
// sentinel and the extension with the full 32-bit values follows. Without
// extendedOK the request is refused with ErrOutOfBounds and nothing is
// appended; peers below revision 4.9 do not understand the extension.
func (q *SendQueue) InsertRequestHeader(cmd Command, payloadSize uint32, dataType DBRType, count uint32, cid, available uint32, extendedOK bool) error {
	f := fieldPusher{q: q}
	if payloadSize <= math.MaxUint16 && count <= math.MaxUint16 {
		f.uint16(uint16(cmd))
		f.uint16(uint16(payloadSize))
		f.uint16(uint16(dataType))
		f.uint16(uint16(count))
		f.uint32(cid)
		f.uint32(available)
		return f.err
	}
	if !extendedOK {
		return fmt.Errorf("%w: %v with %d payload bytes, %d elements needs the extended header", ErrOutOfBounds, cmd, payloadSize, count)
	}
	f.uint16(uint16(cmd))
	f.uint16(extendedSentinel)
	f.uint16(uint16(dataType))
	f.uint16(extendedSentinel)
	f.uint32(cid)
	f.uint32(available)
	f.uint32(payloadSize)
	f.uint32(count)
	f.uint32(0)
	f.uint32(0)
	return f.err
}

// InsertRequestWithPayload appends a complete request: header, typed payload
// and zero fill up to the protocol alignment. The aligned size is what lands
// in the header's payload size field. The type code and the 32-bit size
// bound are checked before anything is appended.
func (q *SendQueue) InsertRequestWithPayload(cmd Command, dataType DBRType, count uint32, cid, available uint32, value any, extendedOK bool) error {
	if !dataType.Supported() {
		return fmt.Errorf("%w: %v", ErrBadType, dataType)
	}
	size := uint64(count) * uint64(dataType.ElementSize())
	padded := AlignedPayloadSize(size)
	if padded > math.MaxUint32 {
		return fmt.Errorf("%w: %v payload of %d bytes exceeds the 32-bit wire limit", ErrOutOfBounds, dataType, size)
	}
	if err := q.InsertRequestHeader(cmd, uint32(padded), dataType, count, cid, available, extendedOK); err != nil {
		return err
	}
	if err := q.PushDataType(dataType, value, int(count)); err != nil {
		return err
	}
	return q.PushBytes(nillBytes[:padded-size])
}
