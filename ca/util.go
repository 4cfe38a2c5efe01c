package ca

import (
	"encoding/binary"

	"golang.org/x/exp/constraints"
)

// Order is the wire byte order. Channel Access is big-endian throughout.
var Order = binary.BigEndian

// nillBytes is a source of zero padding for aligned payloads.
var nillBytes [MessageAlign]byte

// Roundup rounds n up to the nearest multiple of align. align must be a
// power of two.
func Roundup[T constraints.Integer](n, align T) T { return (n + (align - 1)) &^ (align - 1) }

// AlignedPayloadSize returns the on-wire size of a payload of n bytes,
// padded to the protocol's 8-byte message alignment.
func AlignedPayloadSize(n uint64) uint64 { return Roundup(n, MessageAlign) }
