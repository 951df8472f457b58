package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFilterEmpty(t *testing.T) {
	prg, err := CompileFilter("")
	require.NoError(t, err)
	assert.Nil(t, prg)
}

func TestCompileFilterErrors(t *testing.T) {
	_, err := CompileFilter("event.sku ==")
	assert.Error(t, err)

	_, err = CompileFilter(`event.sku`)
	assert.Error(t, err, "non-boolean filters are rejected at compile time")
}

func TestEvalFilter(t *testing.T) {
	prg, err := CompileFilter(`event.sku == "A-1" && event.price > 10.0`)
	require.NoError(t, err)

	assert.True(t, evalFilter(prg, map[string]any{"sku": "A-1", "price": 19.99}))
	assert.False(t, evalFilter(prg, map[string]any{"sku": "B-2", "price": 19.99}))
	assert.False(t, evalFilter(prg, map[string]any{"sku": "A-1", "price": 5.0}))
}

func TestEvalFilterFailsOpen(t *testing.T) {
	prg, err := CompileFilter(`event.sku == "A-1"`)
	require.NoError(t, err)

	// A payload missing the referenced key errors at eval time; the
	// event is delivered rather than silently dropped.
	assert.True(t, evalFilter(prg, map[string]any{"name": "widget"}))

	// A nil program matches everything.
	assert.True(t, evalFilter(nil, map[string]any{"sku": "B-2"}))
}
