package ca

import "fmt"

// DBRType identifies the external data type of a request payload. The codes
// and their numbering are fixed by the protocol; the structured variants
// (STS, TIME, GR, CTRL, STSACK) exist only in server responses and cannot be
// pushed by a client.
type DBRType uint16

const (
	DBRString DBRType = 0
	DBRShort  DBRType = 1
	DBRFloat  DBRType = 2
	DBREnum   DBRType = 3
	DBRChar   DBRType = 4
	DBRLong   DBRType = 5
	DBRDouble DBRType = 6

	DBRStsString DBRType = 7
	DBRStsShort  DBRType = 8
	DBRStsFloat  DBRType = 9
	DBRStsEnum   DBRType = 10
	DBRStsChar   DBRType = 11
	DBRStsLong   DBRType = 12
	DBRStsDouble DBRType = 13

	DBRTimeString DBRType = 14
	DBRTimeShort  DBRType = 15
	DBRTimeFloat  DBRType = 16
	DBRTimeEnum   DBRType = 17
	DBRTimeChar   DBRType = 18
	DBRTimeLong   DBRType = 19
	DBRTimeDouble DBRType = 20

	DBRGrString DBRType = 21
	DBRGrShort  DBRType = 22
	DBRGrFloat  DBRType = 23
	DBRGrEnum   DBRType = 24
	DBRGrChar   DBRType = 25
	DBRGrLong   DBRType = 26
	DBRGrDouble DBRType = 27

	DBRCtrlString DBRType = 28
	DBRCtrlShort  DBRType = 29
	DBRCtrlFloat  DBRType = 30
	DBRCtrlEnum   DBRType = 31
	DBRCtrlChar   DBRType = 32
	DBRCtrlLong   DBRType = 33
	DBRCtrlDouble DBRType = 34

	DBRPutAckT      DBRType = 35
	DBRPutAckS      DBRType = 36
	DBRStsAckString DBRType = 37
	DBRClassName    DBRType = 38
)

// DBRInt is the traditional alias for DBRShort.
const DBRInt = DBRShort

const dbrTypeCount = 39

var dbrNames = [dbrTypeCount]string{
	"DBR_STRING", "DBR_SHORT", "DBR_FLOAT", "DBR_ENUM", "DBR_CHAR",
	"DBR_LONG", "DBR_DOUBLE",
	"DBR_STS_STRING", "DBR_STS_SHORT", "DBR_STS_FLOAT", "DBR_STS_ENUM",
	"DBR_STS_CHAR", "DBR_STS_LONG", "DBR_STS_DOUBLE",
	"DBR_TIME_STRING", "DBR_TIME_SHORT", "DBR_TIME_FLOAT", "DBR_TIME_ENUM",
	"DBR_TIME_CHAR", "DBR_TIME_LONG", "DBR_TIME_DOUBLE",
	"DBR_GR_STRING", "DBR_GR_SHORT", "DBR_GR_FLOAT", "DBR_GR_ENUM",
	"DBR_GR_CHAR", "DBR_GR_LONG", "DBR_GR_DOUBLE",
	"DBR_CTRL_STRING", "DBR_CTRL_SHORT", "DBR_CTRL_FLOAT", "DBR_CTRL_ENUM",
	"DBR_CTRL_CHAR", "DBR_CTRL_LONG", "DBR_CTRL_DOUBLE",
	"DBR_PUT_ACKT", "DBR_PUT_ACKS", "DBR_STSACK_STRING", "DBR_CLASS_NAME",
}

func (t DBRType) String() string {
	if int(t) < len(dbrNames) {
		return dbrNames[t]
	}
	return fmt.Sprintf("DBR_%d", uint16(t))
}

// dbrElementSize holds the on-wire size of one element for each sendable
// type. Entries for receive-only types stay zero.
var dbrElementSize = [dbrTypeCount]int{
	DBRString: MaxStringSize,
	DBRShort:  2,
	DBRFloat:  4,
	DBREnum:   2,
	DBRChar:   1,
	DBRLong:   4,
	DBRDouble: 8,

	DBRPutAckT: 2,
	DBRPutAckS: 2,
}

// ElementSize returns the on-wire size of one element, or 0 when t cannot
// appear in a request payload.
func (t DBRType) ElementSize() int {
	if int(t) >= dbrTypeCount {
		return 0
	}
	return dbrElementSize[t]
}

// Valid reports whether t is a defined protocol code. Read and subscription
// requests may name any valid code, the structured ones included, since their
// payload travels the other way.
func (t DBRType) Valid() bool { return int(t) < dbrTypeCount }

// Supported reports whether t has a registered copy routine, i.e. whether a
// client request may carry a payload of this type.
func (t DBRType) Supported() bool {
	return int(t) < dbrTypeCount && dbrCopyTable[t] != nil
}

// copyFunc appends n elements of a payload value to the queue. The value's
// dynamic type is checked at the point of use.
type copyFunc func(q *SendQueue, value any, n int) error

// dbrCopyTable is the fixed dispatch table from type code to copy routine.
// Receive-only codes have no entry and fail type validation up front.
var dbrCopyTable = [dbrTypeCount]copyFunc{
	DBRString: copyStrings,
	DBRShort:  copyInt16s,
	DBRFloat:  copyFloat32s,
	DBREnum:   copyUint16s,
	DBRChar:   copyBytes,
	DBRLong:   copyInt32s,
	DBRDouble: copyFloat64s,

	// The put acknowledge types carry bare 16-bit values.
	DBRPutAckT: copyUint16s,
	DBRPutAckS: copyUint16s,
}

// dbrSlice asserts the payload's dynamic type and bounds-checks the element
// count against it.
func dbrSlice[T any](value any, n int) ([]T, error) {
	v, ok := value.([]T)
	if !ok {
		return nil, fmt.Errorf("%w: payload must be %T, have %T", ErrBadType, v, value)
	}
	if len(v) < n {
		return nil, fmt.Errorf("%w: payload holds %d elements, header wants %d", ErrBadType, len(v), n)
	}
	return v[:n], nil
}

func copyInt16s(q *SendQueue, value any, n int) error {
	v, err := dbrSlice[int16](value, n)
	if err != nil {
		return err
	}
	return pushSlice(q, wireInt16, v)
}

func copyUint16s(q *SendQueue, value any, n int) error {
	v, err := dbrSlice[uint16](value, n)
	if err != nil {
		return err
	}
	return pushSlice(q, wireUint16, v)
}

func copyInt32s(q *SendQueue, value any, n int) error {
	v, err := dbrSlice[int32](value, n)
	if err != nil {
		return err
	}
	return pushSlice(q, wireInt32, v)
}

func copyFloat32s(q *SendQueue, value any, n int) error {
	v, err := dbrSlice[float32](value, n)
	if err != nil {
		return err
	}
	return pushSlice(q, wireFloat32, v)
}

func copyFloat64s(q *SendQueue, value any, n int) error {
	v, err := dbrSlice[float64](value, n)
	if err != nil {
		return err
	}
	return pushSlice(q, wireFloat64, v)
}

func copyBytes(q *SendQueue, value any, n int) error {
	v, err := dbrSlice[byte](value, n)
	if err != nil {
		return err
	}
	return q.PushBytes(v)
}

// copyStrings encodes each Go string into a fixed 40-byte NUL-terminated
// record. Records are validated before any byte is appended, so a bad value
// never leaves a partial payload behind.
func copyStrings(q *SendQueue, value any, n int) error {
	v, err := dbrSlice[string](value, n)
	if err != nil {
		return err
	}
	for _, s := range v {
		if len(s) >= MaxStringSize {
			return fmt.Errorf("%w: string record of %d bytes exceeds %d", ErrOutOfBounds, len(s), MaxStringSize-1)
		}
	}
	var cell [MaxStringSize]byte
	for _, s := range v {
		copy(cell[:], s)
		clear(cell[len(s):])
		if err := q.PushBytes(cell[:]); err != nil {
			return err
		}
	}
	return nil
}
