package stun

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
)

// MagicCookie is the fixed value carried in every discovery message header.
// It also keys the XOR obfuscation of mapped addresses.
const MagicCookie uint32 = 0x2112A442

// MethodBinding is the only method the discovery server answers.
const MethodBinding uint16 = 0x0001

// Message classes.
const (
	ClassRequest         = 0x00
	ClassIndication      = 0x01
	ClassSuccessResponse = 0x02
	ClassErrorResponse   = 0x03
)

// Attribute types understood by this package.
const (
	AttrMappedAddress     uint16 = 0x0001
	AttrErrorCode         uint16 = 0x0009
	AttrUnknownAttributes uint16 = 0x000A
	AttrXORMappedAddress  uint16 = 0x0020
	AttrSoftware          uint16 = 0x8022
)

// Address families used inside (XOR-)MAPPED-ADDRESS.
const (
	familyIPv4 byte = 0x01
	familyIPv6 byte = 0x02
)

// TransactionID is the 96-bit value that ties a response to its request.
type TransactionID [12]byte

// NewTransactionID returns a random transaction ID.
func NewTransactionID() (TransactionID, error) {
	var id TransactionID
	_, err := rand.Read(id[:])
	return id, err
}

// String returns the hex form of the ID.
func (id TransactionID) String() string {
	return hex.EncodeToString(id[:])
}

// stunType packs method and class into the 16-bit message type.
//
// Layout (most significant first): M11-M7 C1 M6-M4 C0 M3-M0.
func stunType(method uint16, class int) uint16 {
	m := method & 0x0FFF
	c := uint16(class & 0x03)

	return (m & 0x000F) |
		(c&0x01)<<4 |
		(m&0x0070)<<1 |
		(c&0x02)<<7 |
		(m&0x0F80)<<2
}

// parseType is the inverse of stunType.
func parseType(t uint16) (method uint16, class int) {
	method = (t & 0x000F) | (t>>1)&0x0070 | (t>>2)&0x0F80
	class = int((t>>4)&0x1 | ((t>>8)&0x1)<<1)
	return method, class
}

func readU16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }

func readU32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func putU16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }

func putU32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }

// padded rounds n up to the next 32-bit boundary.
func padded(n int) int { return (n + 3) &^ 3 }
