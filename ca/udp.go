package ca

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// SearchWriter batches name resolution requests into bounded datagrams and
// transmits each one to every destination. A datagram opens with a
// sequence-numbered version message so servers can recognize replays, holds
// at most MaxUDPSend bytes, and always travels as a single block.
type SearchWriter struct {
	pc    net.PacketConn
	dests []net.Addr
	alloc Allocator
	log   zerolog.Logger
	met   *Metrics

	mu  sync.Mutex
	q   *SendQueue
	seq uint32
	n   int // searches in the current datagram
}

// NewSearchWriter readies a batcher sending through pc to dests, typically
// the configured address list plus the discovered broadcast addresses.
func NewSearchWriter(pc net.PacketConn, dests []net.Addr, opts ...Option) (*SearchWriter, error) {
	if pc == nil {
		return nil, ErrNilConn
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SearchWriter{
		pc:    pc,
		dests: dests,
		alloc: o.alloc,
		log:   o.log.With().Str("sock", pc.LocalAddr().String()).Logger(),
		met:   o.met,
		q:     NewSendQueue(o.alloc),
	}, nil
}

// Queue adds one search to the current datagram. ErrDatagramFull means the
// datagram must be flushed before this search fits.
func (w *SearchWriter) Queue(name string, cid uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queueLocked(name, cid)
}

// Search queues one request, transmitting the pending datagram first
// whenever it is full.
func (w *SearchWriter) Search(name string, cid uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.queueLocked(name, cid)
	if errors.Is(err, ErrDatagramFull) {
		if err = w.flushLocked(); err != nil {
			return err
		}
		err = w.queueLocked(name, cid)
	}
	return err
}

// Pending returns the number of searches awaiting transmission.
func (w *SearchWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Flush transmits the current datagram, if any, to every destination.
// Flushing with no destinations fails and leaves the datagram queued.
func (w *SearchWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *SearchWriter) queueLocked(name string, cid uint32) error {
	padded, err := alignedNameSize(name)
	if err != nil {
		return err
	}
	if 2*StandardHeaderSize+int(padded) > MaxUDPSend {
		return fmt.Errorf("%w: name of %d bytes never fits a datagram", ErrOutOfBounds, len(name))
	}
	if w.q.OccupiedBytes() == 0 {
		w.seq++
		w.q.BeginMsg()
		if err := w.q.versionWithSeq(w.seq); err != nil {
			w.q.BeginMsg()
			return err
		}
		w.q.CommitMsg()
	}
	if w.q.OccupiedBytes()+StandardHeaderSize+int(padded) > MaxUDPSend {
		return ErrDatagramFull
	}
	w.q.BeginMsg()
	if err := w.q.SearchRequest(name, cid, false); err != nil {
		w.q.BeginMsg()
		return err
	}
	w.q.CommitMsg()
	w.n++
	return nil
}

func (w *SearchWriter) flushLocked() error {
	if w.q.OccupiedBytes() == 0 {
		return nil
	}
	if len(w.dests) == 0 {
		return ErrNoDestinations
	}
	b, ok := w.q.PopBlock()
	if !ok {
		return nil
	}
	defer w.alloc.Put(b)
	var firstErr error
	for _, dst := range w.dests {
		if _, err := w.pc.WriteTo(b.Bytes(), dst); err != nil {
			w.log.Warn().Err(err).Stringer("dest", dst).Msg("search datagram send failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if w.met != nil {
			w.met.DatagramsSent.Inc()
		}
	}
	if w.met != nil {
		w.met.SearchesSent.Add(float64(w.n))
	}
	w.log.Debug().Int("bytes", b.OccupiedBytes()).Int("searches", w.n).Int("dests", len(w.dests)).Msg("search datagram sent")
	w.n = 0
	return firstErr
}
