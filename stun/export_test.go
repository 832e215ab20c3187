package stun

// Unexported helpers exposed to package stun_test. Compiled only under `go test`.

var (
	TestStunType  = stunType
	TestParseType = parseType
	TestReadU16   = readU16
	TestReadU32   = readU32
	TestPutU16    = putU16
	TestPutU32    = putU32
	TestPadded    = padded
)
