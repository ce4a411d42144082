package testutil

// DefaultFlowToken is the token NewFixedFlowGenerator falls back to.
const DefaultFlowToken = "test-flow-default"

// FixedFlowGenerator generates the same flow token every time.
//
// The same scenario run with the same FixedFlowGenerator produces a
// byte-identical trace, which is what golden comparison needs.
//
// Unlike trace.FixedGenerator, which returns tokens in sequence and panics
// when they run out, this generator never runs out.
//
// Thread-safety: FixedFlowGenerator is stateless and safe for concurrent use.
type FixedFlowGenerator struct {
	token string
}

// NewFixedFlowGenerator creates a new fixed flow token generator.
// If token is empty, Generate returns DefaultFlowToken.
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = DefaultFlowToken
	}
	return &FixedFlowGenerator{token: token}
}

// Generate returns the fixed flow token.
// Implements trace.TokenGenerator.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}
