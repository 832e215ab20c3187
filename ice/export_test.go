package ice

// Unexported helpers exposed to package ice_test. Compiled only under `go test`.

var (
	TestCanTransition = canTransition
	TestNominate      = nominate
	TestCheckPrefix   = checkPrefix
)

func (p *Pair) TestStart() error   { return p.start() }
func (p *Pair) TestSucceed() error { return p.succeed() }
func (p *Pair) TestFail() error    { return p.fail() }
