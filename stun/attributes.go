package stun

import (
	"fmt"
	"net"
	"strconv"
)

// MappedAddress is the transport address a server observed for a client.
type MappedAddress struct {
	IP   net.IP
	Port int
}

// UDPAddr converts the mapped address into a *net.UDPAddr.
func (a MappedAddress) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: a.IP, Port: a.Port}
}

func (a MappedAddress) String() string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(a.Port))
}

// xorKey returns the bytes an address of the given length is XORed with:
// the cookie for IPv4, cookie||transaction id for IPv6.
func xorKey(n int, tid TransactionID) []byte {
	key := make([]byte, 16)
	putU32(key[0:4], MagicCookie)
	copy(key[4:], tid[:])
	return key[:n]
}

// xorPort obfuscates (or restores) a port with the top 16 bits of the cookie.
func xorPort(port uint16) uint16 {
	return port ^ uint16(MagicCookie>>16)
}

// DecodeMappedAddress decodes a plain MAPPED-ADDRESS attribute.
func DecodeMappedAddress(a Attribute) (MappedAddress, error) {
	return decodeAddress(a.Value, false, TransactionID{})
}

// DecodeXORMappedAddress decodes an XOR-MAPPED-ADDRESS attribute.
func DecodeXORMappedAddress(a Attribute, tid TransactionID) (MappedAddress, error) {
	return decodeAddress(a.Value, true, tid)
}

// Value layout: reserved(1) family(1) port(2) address(4 or 16).
func decodeAddress(v []byte, xor bool, tid TransactionID) (MappedAddress, error) {
	if len(v) < 4 {
		return MappedAddress{}, fmt.Errorf("%w: address attribute too short", ErrNotSTUN)
	}

	var size int
	switch v[1] {
	case familyIPv4:
		size = net.IPv4len
	case familyIPv6:
		size = net.IPv6len
	default:
		return MappedAddress{}, fmt.Errorf("%w: address family %#02x", ErrNotSTUN, v[1])
	}
	if len(v) < 4+size {
		return MappedAddress{}, fmt.Errorf("%w: address attribute too short", ErrNotSTUN)
	}

	port := readU16(v[2:4])
	ip := make(net.IP, size)
	copy(ip, v[4:4+size])

	if xor {
		port = xorPort(port)
		for i, k := range xorKey(size, tid) {
			ip[i] ^= k
		}
	}
	return MappedAddress{IP: ip, Port: int(port)}, nil
}

// EncodeXORMappedAddress builds the XOR-MAPPED-ADDRESS attribute for addr.
// IPv4 addresses are always encoded in the 4-byte form.
func EncodeXORMappedAddress(addr *net.UDPAddr, tid TransactionID) (Attribute, error) {
	v, err := encodeAddress(addr, true, tid)
	if err != nil {
		return Attribute{}, err
	}
	return Attribute{Type: AttrXORMappedAddress, Value: v}, nil
}

// EncodeMappedAddress builds a plain MAPPED-ADDRESS attribute for addr.
func EncodeMappedAddress(addr *net.UDPAddr) (Attribute, error) {
	v, err := encodeAddress(addr, false, TransactionID{})
	if err != nil {
		return Attribute{}, err
	}
	return Attribute{Type: AttrMappedAddress, Value: v}, nil
}

func encodeAddress(addr *net.UDPAddr, xor bool, tid TransactionID) ([]byte, error) {
	if addr == nil {
		return nil, ErrInvalidAddress
	}

	fam, ip := familyIPv4, addr.IP.To4()
	if ip == nil {
		fam, ip = familyIPv6, addr.IP.To16()
	}
	if ip == nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, addr.IP)
	}

	v := make([]byte, 4+len(ip))
	v[1] = fam
	port := uint16(addr.Port)
	if xor {
		port = xorPort(port)
	}
	putU16(v[2:4], port)
	copy(v[4:], ip)

	if xor {
		for i, k := range xorKey(len(ip), tid) {
			v[4+i] ^= k
		}
	}
	return v, nil
}

// FindMappedAddress prefers XOR-MAPPED-ADDRESS and falls back to MAPPED-ADDRESS.
func FindMappedAddress(msg *Message) (MappedAddress, error) {
	if a, ok := msg.GetAttribute(AttrXORMappedAddress); ok {
		return DecodeXORMappedAddress(a, msg.TransactionID)
	}
	if a, ok := msg.GetAttribute(AttrMappedAddress); ok {
		return DecodeMappedAddress(a)
	}
	return MappedAddress{}, ErrNoMappedAddress
}

// EncodeSoftware builds a SOFTWARE attribute.
func EncodeSoftware(software string) Attribute {
	return Attribute{Type: AttrSoftware, Value: []byte(software)}
}

// ErrorCode is a decoded ERROR-CODE attribute.
type ErrorCode struct {
	Code   int
	Reason string
}

func (e ErrorCode) Error() string {
	return fmt.Sprintf("stun: error response %d %s", e.Code, e.Reason)
}

// Common error codes.
const (
	CodeBadRequest   = 400
	CodeServerError  = 500
	codeClassDivisor = 100
)

// EncodeErrorCode builds an ERROR-CODE attribute:
// reserved(2) class(1) number(1) reason.
func EncodeErrorCode(code int, reason string) Attribute {
	v := make([]byte, 4+len(reason))
	v[2] = byte(code / codeClassDivisor)
	v[3] = byte(code % codeClassDivisor)
	copy(v[4:], reason)
	return Attribute{Type: AttrErrorCode, Value: v}
}

// DecodeErrorCode decodes an ERROR-CODE attribute.
func DecodeErrorCode(a Attribute) (ErrorCode, error) {
	if len(a.Value) < 4 {
		return ErrorCode{}, fmt.Errorf("%w: error code too short", ErrNotSTUN)
	}
	return ErrorCode{
		Code:   int(a.Value[2]&0x07)*codeClassDivisor + int(a.Value[3]),
		Reason: string(a.Value[4:]),
	}, nil
}
