package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/flowrt/internal/trace"
)

func TestFixedFlowGenerator_ReturnsSameToken(t *testing.T) {
	gen := NewFixedFlowGenerator("test-flow-123")

	assert.Equal(t, "test-flow-123", gen.Generate())
	assert.Equal(t, "test-flow-123", gen.Generate())
	assert.Equal(t, "test-flow-123", gen.Generate())
}

func TestFixedFlowGenerator_EmptyTokenDefault(t *testing.T) {
	gen := NewFixedFlowGenerator("")
	assert.Equal(t, DefaultFlowToken, gen.Generate())
}

func TestFixedFlowGenerator_ImplementsTokenGenerator(t *testing.T) {
	var gen trace.TokenGenerator = NewFixedFlowGenerator("x")
	assert.Equal(t, "x", gen.Generate())
}
