package testutil

// FixedTokenGenerator returns the same correlation token on every
// call.
//
// This enables deterministic scenario execution and golden snapshot
// comparison: the same scenario with the same FixedTokenGenerator
// produces byte-identical traces. Unlike engine.CountingGenerator,
// which numbers its tokens, this generator is for scenarios where
// every forward should share one correlation token.
//
// Thread-safety: FixedTokenGenerator is stateless and safe for
// concurrent use.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a fixed correlation token generator.
// An empty token defaults to "test-corr-default".
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "test-corr-default"
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed token. Implements engine.TokenGenerator.
func (g *FixedTokenGenerator) Generate() string {
	return g.token
}
