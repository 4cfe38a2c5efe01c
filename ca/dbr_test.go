package ca

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBRTypeClassification(t *testing.T) {
	sendable := []DBRType{
		DBRString, DBRShort, DBRFloat, DBREnum, DBRChar, DBRLong, DBRDouble,
		DBRPutAckT, DBRPutAckS,
	}
	for _, dt := range sendable {
		assert.True(t, dt.Valid(), "%v", dt)
		assert.True(t, dt.Supported(), "%v", dt)
		assert.Positive(t, dt.ElementSize(), "%v", dt)
	}

	// Structured variants are valid request codes for reads but carry no
	// client payload.
	receiveOnly := []DBRType{
		DBRStsString, DBRStsDouble, DBRTimeShort, DBRTimeDouble,
		DBRGrFloat, DBRCtrlEnum, DBRCtrlDouble, DBRStsAckString, DBRClassName,
	}
	for _, dt := range receiveOnly {
		assert.True(t, dt.Valid(), "%v", dt)
		assert.False(t, dt.Supported(), "%v", dt)
		assert.Zero(t, dt.ElementSize(), "%v", dt)
	}

	assert.False(t, DBRType(dbrTypeCount).Valid())
	assert.False(t, DBRType(500).Supported())
	assert.Zero(t, DBRType(500).ElementSize())
}

func TestDBRTypeString(t *testing.T) {
	assert.Equal(t, "DBR_STRING", DBRString.String())
	assert.Equal(t, "DBR_DOUBLE", DBRDouble.String())
	assert.Equal(t, "DBR_PUT_ACKT", DBRPutAckT.String())
	assert.Equal(t, "DBR_CLASS_NAME", DBRClassName.String())
	assert.Equal(t, "DBR_77", DBRType(77).String())
}

func TestDBRElementSizes(t *testing.T) {
	assert.Equal(t, MaxStringSize, DBRString.ElementSize())
	assert.Equal(t, 2, DBRShort.ElementSize())
	assert.Equal(t, 4, DBRFloat.ElementSize())
	assert.Equal(t, 2, DBREnum.ElementSize())
	assert.Equal(t, 1, DBRChar.ElementSize())
	assert.Equal(t, 4, DBRLong.ElementSize())
	assert.Equal(t, 8, DBRDouble.ElementSize())
	assert.Equal(t, 2, DBRPutAckT.ElementSize())
	assert.Equal(t, 2, DBRPutAckS.ElementSize())
}

func TestPushDataType(t *testing.T) {
	t.Run("Scalars", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		q.BeginMsg()
		require.NoError(t, q.PushDataType(DBRShort, []int16{-2}, 1))
		require.NoError(t, q.PushDataType(DBRLong, []int32{0x01020304}, 1))
		require.NoError(t, q.PushDataType(DBRChar, []byte{0xAB}, 1))
		require.NoError(t, q.PushDataType(DBRDouble, []float64{1.0}, 1))
		q.CommitMsg()
		assert.Equal(t, 15, q.OccupiedBytes())

		expected := []byte{
			0xFF, 0xFE,
			0x01, 0x02, 0x03, 0x04,
			0xAB,
			0x3F, 0xF0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		}
		assert.Equal(t, expected, drainQueue(t, q))
	})

	t.Run("StringRecord", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		q.BeginMsg()
		require.NoError(t, q.PushDataType(DBRString, []string{"hi"}, 1))
		q.CommitMsg()
		assert.Equal(t, MaxStringSize, q.OccupiedBytes())

		out := drainQueue(t, q)
		require.Len(t, out, MaxStringSize)
		assert.Equal(t, []byte{'h', 'i', 0}, out[:3])
		assert.Equal(t, make([]byte, MaxStringSize-2), out[2:])
	})

	t.Run("StringRecordReuseIsClean", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		q.BeginMsg()
		require.NoError(t, q.PushDataType(DBRString, []string{"longer text", "x"}, 2))
		q.CommitMsg()
		out := drainQueue(t, q)
		require.Len(t, out, 2*MaxStringSize)
		// The second record must not leak bytes of the first.
		assert.Equal(t, byte('x'), out[MaxStringSize])
		assert.Equal(t, make([]byte, MaxStringSize-1), out[MaxStringSize+1:])
	})

	t.Run("StringTooLong", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		long := strings.Repeat("a", MaxStringSize)
		err := q.PushDataType(DBRString, []string{"ok", long}, 2)
		require.ErrorIs(t, err, ErrOutOfBounds)
		assert.Zero(t, q.OccupiedBytes(), "validation precedes the first byte")
	})

	t.Run("WrongDynamicType", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		err := q.PushDataType(DBRFloat, []float64{1.5}, 1)
		require.ErrorIs(t, err, ErrBadType)
		assert.Zero(t, q.OccupiedBytes())
	})

	t.Run("ShortSlice", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		err := q.PushDataType(DBRLong, []int32{1, 2}, 3)
		require.ErrorIs(t, err, ErrBadType)
		assert.Zero(t, q.OccupiedBytes())
	})

	t.Run("ReceiveOnlyType", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		err := q.PushDataType(DBRCtrlDouble, []float64{1}, 1)
		require.ErrorIs(t, err, ErrBadType)
		assert.Zero(t, q.OccupiedBytes())
	})

	t.Run("ExtraElementsIgnored", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		require.NoError(t, q.PushDataType(DBRShort, []int16{1, 2, 3, 4}, 2))
		assert.Equal(t, 4, q.OccupiedBytes())
	})

	t.Run("PutAck", func(t *testing.T) {
		q := NewSendQueue(NewBlockPool(0))
		q.BeginMsg()
		require.NoError(t, q.PushDataType(DBRPutAckT, []uint16{1}, 1))
		require.NoError(t, q.PushDataType(DBRPutAckS, []uint16{4}, 1))
		q.CommitMsg()
		assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x04}, drainQueue(t, q))
	})
}

// drainQueue pops every block and concatenates the committed bytes.
func drainQueue(t *testing.T, q *SendQueue) []byte {
	t.Helper()
	var out []byte
	for {
		b, ok := q.PopBlock()
		if !ok {
			break
		}
		out = append(out, b.Bytes()...)
	}
	require.Zero(t, q.OccupiedBytes())
	return out
}
