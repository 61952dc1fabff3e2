package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ValidTokens(t *testing.T) {
	g := UUIDv7Generator{}

	first := g.Generate()
	second := g.Generate()

	parsed, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.NotEqual(t, first, second)
}

func TestCountingGenerator_Sequence(t *testing.T) {
	g := NewCountingGenerator("corr-a")

	assert.Equal(t, "corr-a-1", g.Generate())
	assert.Equal(t, "corr-a-2", g.Generate())
	assert.Equal(t, "corr-a-3", g.Generate())
}

func TestCountingGenerator_EmptyPrefixDefaults(t *testing.T) {
	g := NewCountingGenerator("")
	assert.Equal(t, "token-1", g.Generate())
}

func TestCountingGenerator_IndependentInstances(t *testing.T) {
	a := NewCountingGenerator("x")
	b := NewCountingGenerator("x")

	a.Generate()
	a.Generate()
	assert.Equal(t, "x-1", b.Generate(), "generators do not share state")
}
