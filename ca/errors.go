package ca

import "errors"

var (
	// ErrOutOfBounds indicates a size or element count that cannot be represented
	// in the selected request header form, or a payload beyond the 32-bit wire limit.
	ErrOutOfBounds = errors.New("ca: request size or element count out of bounds")

	// ErrBadType indicates a DBR type code with no registered copy routine, or a
	// payload value whose dynamic type does not match the code.
	ErrBadType = errors.New("ca: unsupported DBR type")

	// ErrAllocExhausted indicates the block allocator refused to hand out another
	// buffer, typically because a bounded pool reached its limit.
	ErrAllocExhausted = errors.New("ca: buffer allocation exhausted")

	// ErrConnClosed indicates an operation on a connection after Close.
	ErrConnClosed = errors.New("ca: connection closed")

	// ErrNilConn indicates a transport constructor was handed a nil socket.
	ErrNilConn = errors.New("ca: nil network connection")

	// ErrDatagramFull indicates a search request that does not fit into the
	// remaining space of the current UDP datagram.
	ErrDatagramFull = errors.New("ca: search datagram full")

	// ErrNoDestinations indicates a search flush with an empty destination list.
	ErrNoDestinations = errors.New("ca: no search destinations configured")
)
