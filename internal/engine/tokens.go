package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator generates correlation tokens for cross-chain round
// trips. One token is minted per forwarding registration and carried
// verbatim through the setup, execute, and share messages of that
// trip, so a full round trip can be traced end to end.
//
// Implemented by UUIDv7Generator (production) and CountingGenerator
// (tests, simulations).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 correlation tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, making
// tokens sortable by creation time, which helps when reading traces.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CountingGenerator returns "<prefix>-1", "<prefix>-2", ... in order.
//
// This enables deterministic test execution and golden trace
// comparison: the same scenario produces byte-identical tokens.
//
// Thread-safety: safe for concurrent use via internal mutex.
type CountingGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCountingGenerator creates a deterministic token generator.
// An empty prefix defaults to "token".
func NewCountingGenerator(prefix string) *CountingGenerator {
	if prefix == "" {
		prefix = "token"
	}
	return &CountingGenerator{prefix: prefix}
}

// Generate returns the next token in sequence.
func (g *CountingGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
