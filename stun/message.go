package stun

import "fmt"

// HeaderLen is the size of the fixed message header in bytes.
const HeaderLen = 20

// Message is a decoded discovery message: header plus attributes.
type Message struct {
	Method        uint16
	Class         int
	Length        uint16 // set by Marshal, read by Parse
	Cookie        uint32
	TransactionID TransactionID
	Attributes    []Attribute
}

// Attribute is a single TLV attribute.
type Attribute struct {
	Type  uint16
	Value []byte
}

// NewBindingRequest builds the fixed-format request sent to a discovery server:
// header only, magic cookie and transaction id.
func NewBindingRequest(tid TransactionID) *Message {
	return &Message{
		Method:        MethodBinding,
		Class:         ClassRequest,
		Cookie:        MagicCookie,
		TransactionID: tid,
	}
}

// IsBindingRequest reports whether m is a Binding request.
func (m *Message) IsBindingRequest() bool {
	return m.Method == MethodBinding && m.Class == ClassRequest
}

// IsBindingSuccess reports whether m is a Binding success response.
func (m *Message) IsBindingSuccess() bool {
	return m.Method == MethodBinding && m.Class == ClassSuccessResponse
}

// Add appends an attribute.
func (m *Message) Add(typ uint16, value []byte) {
	m.Attributes = append(m.Attributes, Attribute{Type: typ, Value: value})
}

// Marshal encodes the message. Attribute values are zero padded to 4 bytes.
func (m *Message) Marshal() []byte {
	body := 0
	for _, a := range m.Attributes {
		body += 4 + padded(len(a.Value))
	}
	m.Length = uint16(body)

	out := make([]byte, HeaderLen+body)
	putU16(out[0:2], stunType(m.Method, m.Class))
	putU16(out[2:4], m.Length)
	putU32(out[4:8], m.Cookie)
	copy(out[8:HeaderLen], m.TransactionID[:])

	off := HeaderLen
	for _, a := range m.Attributes {
		putU16(out[off:off+2], a.Type)
		putU16(out[off+2:off+4], uint16(len(a.Value)))
		copy(out[off+4:], a.Value)
		off += 4 + padded(len(a.Value))
	}
	return out
}

// Parse decodes a raw datagram. Anything that is not a well formed message
// (short header, bad leading bits, wrong cookie, truncated body or attribute)
// yields ErrNotSTUN.
func Parse(pkt []byte) (*Message, error) {
	if len(pkt) < HeaderLen {
		return nil, fmt.Errorf("%w: %d byte datagram", ErrNotSTUN, len(pkt))
	}
	if pkt[0]&0xC0 != 0 {
		return nil, ErrNotSTUN
	}

	cookie := readU32(pkt[4:8])
	if cookie != MagicCookie {
		return nil, fmt.Errorf("%w: cookie %#08x", ErrNotSTUN, cookie)
	}

	length := readU16(pkt[2:4])
	if HeaderLen+int(length) > len(pkt) {
		return nil, fmt.Errorf("%w: length %d exceeds datagram", ErrNotSTUN, length)
	}

	method, class := parseType(readU16(pkt[0:2]))
	msg := &Message{
		Method: method,
		Class:  class,
		Length: length,
		Cookie: cookie,
	}
	copy(msg.TransactionID[:], pkt[8:HeaderLen])

	attrs, err := parseAttributes(pkt[HeaderLen : HeaderLen+int(length)])
	if err != nil {
		return nil, err
	}
	msg.Attributes = attrs
	return msg, nil
}

func parseAttributes(b []byte) ([]Attribute, error) {
	var attrs []Attribute
	for off := 0; off+4 <= len(b); {
		typ := readU16(b[off : off+2])
		vlen := int(readU16(b[off+2 : off+4]))
		off += 4
		if off+vlen > len(b) {
			return nil, fmt.Errorf("%w: attribute %#04x truncated", ErrNotSTUN, typ)
		}
		val := make([]byte, vlen)
		copy(val, b[off:off+vlen])
		attrs = append(attrs, Attribute{Type: typ, Value: val})
		off += padded(vlen)
	}
	return attrs, nil
}

// GetAttribute returns the first attribute of the given type.
func (m *Message) GetAttribute(typ uint16) (Attribute, bool) {
	for _, a := range m.Attributes {
		if a.Type == typ {
			return a, true
		}
	}
	return Attribute{}, false
}
