package ca

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// Channel is the client-side bookkeeping for one process variable
// attachment. The registry hands out the client id; requests quote it, and
// the response dispatcher resolves it back while producers keep sending.
type Channel struct {
	CID  uint32
	Name string

	sid atomic.Uint32
}

// SetSID records the server-assigned id once attachment completes. Called
// from the response path, concurrently with senders reading it.
func (c *Channel) SetSID(sid uint32) { c.sid.Store(sid) }

// SID returns the server-assigned id, zero before attachment.
func (c *Channel) SID() uint32 { return c.sid.Load() }

// ChannelRegistry allocates client ids and resolves them back to channels.
// The table is safe for concurrent use without a shared lock, so the send
// path and the response dispatcher never serialize against each other here.
type ChannelRegistry struct {
	byID    *xsync.Map[uint32, *Channel]
	nextCID atomic.Uint32
	nextIO  atomic.Uint32
}

func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{byID: xsync.NewMap[uint32, *Channel]()}
}

// Create registers a new channel under a fresh client id.
func (r *ChannelRegistry) Create(name string) *Channel {
	ch := &Channel{CID: r.nextCID.Add(1), Name: name}
	r.byID.Store(ch.CID, ch)
	return ch
}

// Lookup resolves a client id.
func (r *ChannelRegistry) Lookup(cid uint32) (*Channel, bool) {
	return r.byID.Load(cid)
}

// Remove forgets a client id and returns the channel it named.
func (r *ChannelRegistry) Remove(cid uint32) (*Channel, bool) {
	return r.byID.LoadAndDelete(cid)
}

// Len returns the number of registered channels.
func (r *ChannelRegistry) Len() int { return r.byID.Size() }

// Range calls f for every registered channel until f returns false.
func (r *ChannelRegistry) Range(f func(*Channel) bool) {
	r.byID.Range(func(_ uint32, ch *Channel) bool { return f(ch) })
}

// NextIOID hands out an id for one in-flight get or put.
func (r *ChannelRegistry) NextIOID() uint32 { return r.nextIO.Add(1) }
