package stun_test

import (
	"testing"

	"github.com/aethiopicuschan/icelab/stun"
	"github.com/stretchr/testify/assert"
)

func TestNewTransactionID(t *testing.T) {
	t.Parallel()

	id1, err1 := stun.NewTransactionID()
	id2, err2 := stun.NewTransactionID()

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.NotEqual(t, stun.TransactionID{}, id1)
	assert.NotEqual(t, id1, id2)
	assert.Len(t, id1.String(), 24)
}

func TestStunType_ParseType_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method uint16
		class  int
	}{
		{"binding request", stun.MethodBinding, stun.ClassRequest},
		{"binding success response", stun.MethodBinding, stun.ClassSuccessResponse},
		{"binding error response", stun.MethodBinding, stun.ClassErrorResponse},
		{"indication", 0x0002, stun.ClassIndication},
		{"custom method", 0x03EF, stun.ClassRequest},
		{"widest method", 0x0FFF, stun.ClassErrorResponse},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			typ := stun.TestStunType(tt.method, tt.class)
			method, class := stun.TestParseType(typ)

			assert.Equal(t, tt.method&0x0FFF, method)
			assert.Equal(t, tt.class&0x03, class)
			assert.Equal(t, uint16(0), typ&0xC000)
		})
	}
}

func TestStunType_KnownValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(0x0001), stun.TestStunType(stun.MethodBinding, stun.ClassRequest))
	assert.Equal(t, uint16(0x0101), stun.TestStunType(stun.MethodBinding, stun.ClassSuccessResponse))
	assert.Equal(t, uint16(0x0111), stun.TestStunType(stun.MethodBinding, stun.ClassErrorResponse))
}

func TestEndianHelpers(t *testing.T) {
	t.Parallel()

	buf16 := make([]byte, 2)
	buf32 := make([]byte, 4)

	stun.TestPutU16(buf16, 0xABCD)
	stun.TestPutU32(buf32, 0xDEADBEEF)

	assert.Equal(t, uint16(0xABCD), stun.TestReadU16(buf16))
	assert.Equal(t, uint32(0xDEADBEEF), stun.TestReadU32(buf32))
}

func TestPadded(t *testing.T) {
	t.Parallel()

	for in, want := range map[int]int{0: 0, 1: 4, 3: 4, 4: 4, 5: 8, 39: 40} {
		assert.Equal(t, want, stun.TestPadded(in), "padded(%d)", in)
	}
}
