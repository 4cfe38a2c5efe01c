package ca

import (
	"fmt"
	"math"
)

// Request builders. Each one assembles a single client request into the
// queue between the caller's BeginMsg and CommitMsg. Field assignments
// follow the protocol: requests without a payload are a bare header whose
// cid and available fields carry the ids named below.

// maxPriority bounds the circuit priority carried by a version request.
const maxPriority = 99

// VersionRequest announces our protocol revision on a circuit. The data
// type field carries the circuit priority, the count field our minor
// revision. Priorities above the protocol maximum are clamped.
func (q *SendQueue) VersionRequest(priority uint16) error {
	return q.InsertRequestHeader(CmdVersion, 0, DBRType(min(priority, maxPriority)), MinorProtocolRevision, 0, 0, false)
}

// versionWithSeq is the datagram form: the available field carries the
// search sequence number and the data type field flags it as valid.
func (q *SendQueue) versionWithSeq(seq uint32) error {
	return q.InsertRequestHeader(CmdVersion, 0, 1, MinorProtocolRevision, 0, seq, false)
}

// pushNamePayload appends a NUL-terminated name padded to the aligned
// payload size computed by the caller.
func (q *SendQueue) pushNamePayload(name string, padded uint64) error {
	f := fieldPusher{q: q}
	f.str(name)
	f.bytes(nillBytes[:padded-uint64(len(name))])
	return f.err
}

// alignedNameSize validates a name payload and returns its aligned on-wire
// size, NUL terminator included.
func alignedNameSize(name string) (uint64, error) {
	if len(name) == 0 {
		return 0, fmt.Errorf("%w: empty name", ErrOutOfBounds)
	}
	padded := AlignedPayloadSize(uint64(len(name)) + 1)
	if padded > math.MaxUint16 {
		return 0, fmt.Errorf("%w: name of %d bytes", ErrOutOfBounds, len(name))
	}
	return padded, nil
}

// SearchRequest asks who serves the named channel. The same client id rides
// in both 32-bit fields so either copy identifies the reply. reply selects
// whether an unsuccessful server must answer anyway, which only makes sense
// over TCP to a name server.
func (q *SendQueue) SearchRequest(name string, cid uint32, reply bool) error {
	padded, err := alignedNameSize(name)
	if err != nil {
		return err
	}
	flag := DBRType(searchDontReply)
	if reply {
		flag = searchDoReply
	}
	if err := q.InsertRequestHeader(CmdSearch, uint32(padded), flag, MinorProtocolRevision, cid, cid, false); err != nil {
		return err
	}
	return q.pushNamePayload(name, padded)
}

// CreateChannelRequest asks the server to attach the named channel to our
// client id. The available field carries our minor revision.
func (q *SendQueue) CreateChannelRequest(name string, cid uint32) error {
	padded, err := alignedNameSize(name)
	if err != nil {
		return err
	}
	if err := q.InsertRequestHeader(CmdCreateChan, uint32(padded), 0, 0, cid, MinorProtocolRevision, false); err != nil {
		return err
	}
	return q.pushNamePayload(name, padded)
}

// ClearChannelRequest detaches a channel. The header names the server id
// first, our id second.
func (q *SendQueue) ClearChannelRequest(sid, cid uint32) error {
	return q.InsertRequestHeader(CmdClearChannel, 0, 0, 0, sid, cid, false)
}

// ReadNotifyRequest asks for a value of any valid external type. A count of
// zero requests the server's native element count (revision 4.13).
func (q *SendQueue) ReadNotifyRequest(t DBRType, count uint32, sid, ioid uint32, extendedOK bool) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %v", ErrBadType, t)
	}
	return q.InsertRequestHeader(CmdReadNotify, 0, t, count, sid, ioid, extendedOK)
}

// WriteRequest sends a fire-and-forget put.
func (q *SendQueue) WriteRequest(t DBRType, count uint32, sid, ioid uint32, value any, extendedOK bool) error {
	return q.InsertRequestWithPayload(CmdWrite, t, count, sid, ioid, value, extendedOK)
}

// WriteNotifyRequest sends a put whose completion the server confirms
// against ioid.
func (q *SendQueue) WriteNotifyRequest(t DBRType, count uint32, sid, ioid uint32, value any, extendedOK bool) error {
	return q.InsertRequestWithPayload(CmdWriteNotify, t, count, sid, ioid, value, extendedOK)
}

// subscriptionPayloadSize is the fixed event add payload: three obsolete
// deadband floats, the event mask, and two bytes of padding.
const subscriptionPayloadSize = 16

// SubscriptionRequest registers a monitor on a channel.
func (q *SendQueue) SubscriptionRequest(t DBRType, count uint32, sid, ioid uint32, mask EventMask, extendedOK bool) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %v", ErrBadType, t)
	}
	if err := q.InsertRequestHeader(CmdEventAdd, subscriptionPayloadSize, t, count, sid, ioid, extendedOK); err != nil {
		return err
	}
	f := fieldPusher{q: q}
	f.float32(0)
	f.float32(0)
	f.float32(0)
	f.uint16(uint16(mask))
	f.uint16(0)
	return f.err
}

// EventCancelRequest tears down the monitor registered under ioid. Type and
// count repeat the subscription's so the server can match it.
func (q *SendQueue) EventCancelRequest(t DBRType, count uint32, sid, ioid uint32, extendedOK bool) error {
	return q.InsertRequestHeader(CmdEventCancel, 0, t, count, sid, ioid, extendedOK)
}

// EventsOffRequest pauses subscription delivery circuit-wide.
func (q *SendQueue) EventsOffRequest() error {
	return q.InsertRequestHeader(CmdEventsOff, 0, 0, 0, 0, 0, false)
}

// EventsOnRequest resumes subscription delivery.
func (q *SendQueue) EventsOnRequest() error {
	return q.InsertRequestHeader(CmdEventsOn, 0, 0, 0, 0, 0, false)
}

// EchoRequest probes circuit liveness.
func (q *SendQueue) EchoRequest() error {
	return q.InsertRequestHeader(CmdEcho, 0, 0, 0, 0, 0, false)
}

// HostNameRequest tells the server which host this client runs on, for its
// access security evaluation.
func (q *SendQueue) HostNameRequest(name string) error {
	return q.nameRequest(CmdHostName, name)
}

// ClientNameRequest tells the server which user this client runs as.
func (q *SendQueue) ClientNameRequest(name string) error {
	return q.nameRequest(CmdClientName, name)
}

func (q *SendQueue) nameRequest(cmd Command, name string) error {
	padded, err := alignedNameSize(name)
	if err != nil {
		return err
	}
	if err := q.InsertRequestHeader(cmd, uint32(padded), 0, 0, 0, 0, false); err != nil {
		return err
	}
	return q.pushNamePayload(name, padded)
}
