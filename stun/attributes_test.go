package stun_test

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/aethiopicuschan/icelab/stun"
	"github.com/stretchr/testify/assert"
)

func TestDecodeMappedAddress_IPv4(t *testing.T) {
	t.Parallel()

	ip := net.IPv4(192, 0, 2, 1)
	v := make([]byte, 8)
	v[1] = 0x01
	binary.BigEndian.PutUint16(v[2:4], 54321)
	copy(v[4:8], ip.To4())

	got, err := stun.DecodeMappedAddress(stun.Attribute{Value: v})

	assert.NoError(t, err)
	assert.Equal(t, 54321, got.Port)
	assert.True(t, ip.Equal(got.IP))
	assert.Equal(t, "192.0.2.1:54321", got.String())
}

// The XOR scheme: port ^ top 16 bits of the cookie, IPv4 address ^ cookie.
func TestDecodeXORMappedAddress_IPv4_ByHand(t *testing.T) {
	t.Parallel()

	tid := stun.TransactionID{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	ip := net.IPv4(203, 0, 113, 10)
	port := 40000

	v := make([]byte, 8)
	v[1] = 0x01
	binary.BigEndian.PutUint16(v[2:4], uint16(port)^uint16(stun.MagicCookie>>16))
	binary.BigEndian.PutUint32(v[4:8], binary.BigEndian.Uint32(ip.To4())^stun.MagicCookie)

	got, err := stun.DecodeXORMappedAddress(stun.Attribute{Value: v}, tid)

	assert.NoError(t, err)
	assert.Equal(t, port, got.Port)
	assert.True(t, ip.Equal(got.IP))
}

func TestDecodeXORMappedAddress_IPv6_ByHand(t *testing.T) {
	t.Parallel()

	ip := net.ParseIP("2001:db8::dead:beef")
	port := 60000
	tid := stun.TransactionID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	v := make([]byte, 20)
	v[1] = 0x02
	binary.BigEndian.PutUint16(v[2:4], uint16(port)^uint16(stun.MagicCookie>>16))

	key := make([]byte, 16)
	binary.BigEndian.PutUint32(key[0:4], stun.MagicCookie)
	copy(key[4:16], tid[:])
	for i := 0; i < 16; i++ {
		v[4+i] = ip[i] ^ key[i]
	}

	got, err := stun.DecodeXORMappedAddress(stun.Attribute{Value: v}, tid)

	assert.NoError(t, err)
	assert.Equal(t, port, got.Port)
	assert.True(t, ip.Equal(got.IP))
}

func TestEncodeXORMappedAddress(t *testing.T) {
	t.Parallel()

	tid := stun.TransactionID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	tests := []struct {
		name    string
		addr    *net.UDPAddr
		wantLen int
	}{
		{"ipv4", &net.UDPAddr{IP: net.IPv4(192, 0, 2, 33), Port: 54321}, 8},
		{"ipv4 in ipv6 form", &net.UDPAddr{IP: net.ParseIP("::ffff:10.0.0.1"), Port: 1}, 8},
		{"ipv6", &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 3478}, 20},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			attr, err := stun.EncodeXORMappedAddress(tt.addr, tid)
			assert.NoError(t, err)
			assert.Equal(t, stun.AttrXORMappedAddress, attr.Type)
			assert.Len(t, attr.Value, tt.wantLen)

			decoded, err := stun.DecodeXORMappedAddress(attr, tid)
			assert.NoError(t, err)
			assert.True(t, tt.addr.IP.Equal(decoded.IP))
			assert.Equal(t, tt.addr.Port, decoded.Port)
		})
	}
}

func TestEncodeMappedAddress_NotObfuscated(t *testing.T) {
	t.Parallel()

	attr, err := stun.EncodeMappedAddress(&net.UDPAddr{IP: net.IPv4(10, 1, 2, 3), Port: 5000})
	assert.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0x13, 0x88, 10, 1, 2, 3}, attr.Value)
}

func TestEncodeAddress_Invalid(t *testing.T) {
	t.Parallel()

	_, err := stun.EncodeXORMappedAddress(nil, stun.TransactionID{})
	assert.ErrorIs(t, err, stun.ErrInvalidAddress)

	_, err = stun.EncodeMappedAddress(&net.UDPAddr{IP: net.IP{1, 2}, Port: 1})
	assert.ErrorIs(t, err, stun.ErrInvalidAddress)
}

func TestDecodeMappedAddress_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value []byte
	}{
		{"too short", []byte{0x00, 0x01}},
		{"unsupported family", []byte{0x00, 0xFF, 0x00, 0x01}},
		{"ipv4 too short", []byte{0x00, 0x01, 0x00, 0x01, 1, 2, 3}},
		{"ipv6 too short", []byte{0x00, 0x02, 0x00, 0x01, 1, 2}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := stun.DecodeMappedAddress(stun.Attribute{Value: tt.value})
			assert.ErrorIs(t, err, stun.ErrNotSTUN)
		})
	}
}

func TestFindMappedAddress_PrefersXOR(t *testing.T) {
	t.Parallel()

	tid := stun.TransactionID{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}
	xorAddr := &net.UDPAddr{IP: net.IPv4(198, 51, 100, 42), Port: 50000}
	plainAddr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 1}

	xma, err := stun.EncodeXORMappedAddress(xorAddr, tid)
	assert.NoError(t, err)
	ma, err := stun.EncodeMappedAddress(plainAddr)
	assert.NoError(t, err)

	msg := &stun.Message{TransactionID: tid, Attributes: []stun.Attribute{ma, xma}}

	got, err := stun.FindMappedAddress(msg)
	assert.NoError(t, err)
	assert.Equal(t, xorAddr.Port, got.Port)
	assert.True(t, xorAddr.IP.Equal(got.IP))
	assert.Equal(t, xorAddr.String(), got.UDPAddr().String())
}

func TestFindMappedAddress_NoAttributes(t *testing.T) {
	t.Parallel()

	_, err := stun.FindMappedAddress(&stun.Message{})
	assert.ErrorIs(t, err, stun.ErrNoMappedAddress)
}

func TestErrorCode_RoundTrip(t *testing.T) {
	t.Parallel()

	attr := stun.EncodeErrorCode(stun.CodeBadRequest, "Bad Request")
	assert.Equal(t, stun.AttrErrorCode, attr.Type)
	assert.Equal(t, byte(4), attr.Value[2])
	assert.Equal(t, byte(0), attr.Value[3])

	code, err := stun.DecodeErrorCode(attr)
	assert.NoError(t, err)
	assert.Equal(t, 400, code.Code)
	assert.Equal(t, "Bad Request", code.Reason)
	assert.Contains(t, code.Error(), "400")

	_, err = stun.DecodeErrorCode(stun.Attribute{Value: []byte{0, 0}})
	assert.ErrorIs(t, err, stun.ErrNotSTUN)
}

func TestEncodeSoftware(t *testing.T) {
	t.Parallel()

	attr := stun.EncodeSoftware("example")

	assert.Equal(t, stun.AttrSoftware, attr.Type)
	assert.Equal(t, "example", string(attr.Value))
}
