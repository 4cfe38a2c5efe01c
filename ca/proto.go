package ca

import "fmt"

// Protocol revision spoken by this implementation.
const (
	MajorProtocolRevision = 4
	MinorProtocolRevision = 13
)

// supportsLargeArrays reports whether a peer at the given minor revision
// accepts the extended request header form (revision 4.9 and later).
func supportsLargeArrays(minor uint16) bool { return minor >= 9 }

// supportsNameService reports whether a peer accepts client/host name
// requests (revision 4.1 and later).
func supportsNameService(minor uint16) bool { return minor >= 1 }

const (
	// StandardHeaderSize is the size of the fixed request header.
	StandardHeaderSize = 16

	// ExtensionSize is the size of the extension appended to the fixed header
	// when a payload size or element count exceeds 16 bits.
	ExtensionSize = 16

	// ExtendedHeaderSize is the total size of an extended request header.
	ExtendedHeaderSize = StandardHeaderSize + ExtensionSize

	// extendedSentinel fills both 16-bit size fields of an extended header.
	extendedSentinel = 0xFFFF

	// MessageAlign is the payload alignment of every request. Payload bytes
	// beyond the caller's data up to this boundary are zero filled.
	MessageAlign = 8

	// MaxUDPSend bounds the size of an outgoing search datagram.
	MaxUDPSend = 1024

	// MaxStringSize is the fixed size of a string record on the wire,
	// including its NUL terminator.
	MaxStringSize = 40
)

// Well known ports, derived from the major protocol revision.
const (
	DefaultServerPort   = 5064
	DefaultRepeaterPort = 5065
)

// Command identifies a request in the header's first field.
type Command uint16

const (
	CmdVersion          Command = 0
	CmdEventAdd         Command = 1
	CmdEventCancel      Command = 2
	CmdRead             Command = 3
	CmdWrite            Command = 4
	CmdSnapshot         Command = 5
	CmdSearch           Command = 6
	CmdBuild            Command = 7
	CmdEventsOff        Command = 8
	CmdEventsOn         Command = 9
	CmdReadSync         Command = 10
	CmdError            Command = 11
	CmdClearChannel     Command = 12
	CmdBeacon           Command = 13
	CmdNotFound         Command = 14
	CmdReadNotify       Command = 15
	CmdReadBuild        Command = 16
	CmdRepeaterConfirm  Command = 17
	CmdCreateChan       Command = 18
	CmdWriteNotify      Command = 19
	CmdClientName       Command = 20
	CmdHostName         Command = 21
	CmdAccessRights     Command = 22
	CmdEcho             Command = 23
	CmdRepeaterRegister Command = 24
	CmdSignal           Command = 25
	CmdCreateChanFail   Command = 26
	CmdServerDisconn    Command = 27
)

var cmdNames = [...]string{
	"VERSION", "EVENT_ADD", "EVENT_CANCEL", "READ", "WRITE", "SNAPSHOT",
	"SEARCH", "BUILD", "EVENTS_OFF", "EVENTS_ON", "READ_SYNC", "ERROR",
	"CLEAR_CHANNEL", "RSRV_IS_UP", "NOT_FOUND", "READ_NOTIFY", "READ_BUILD",
	"REPEATER_CONFIRM", "CREATE_CHAN", "WRITE_NOTIFY", "CLIENT_NAME",
	"HOST_NAME", "ACCESS_RIGHTS", "ECHO", "REPEATER_REGISTER", "SIGNAL",
	"CREATE_CH_FAIL", "SERVER_DISCONN",
}

func (c Command) String() string {
	if int(c) < len(cmdNames) {
		return cmdNames[c]
	}
	return fmt.Sprintf("CMD_%d", uint16(c))
}

// Search reply flags, carried in the data type field of a search request.
const (
	searchDoReply   = 10
	searchDontReply = 5
)

// EventMask selects which state changes a subscription reports.
type EventMask uint16

const (
	// MaskValue fires on value changes exceeding the monitor deadband.
	MaskValue EventMask = 1 << 0

	// MaskLog fires on value changes exceeding the archiver deadband.
	MaskLog EventMask = 1 << 1

	// MaskAlarm fires on alarm state changes.
	MaskAlarm EventMask = 1 << 2

	// MaskProperty fires on metadata changes.
	MaskProperty EventMask = 1 << 3
)
