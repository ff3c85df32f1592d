package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopRenderer struct{}

func (nopRenderer) Render(source any, emit CallbackFunc) error { return nil }

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(Definition{Type: "map", Instructions: "for locations", Renderer: nopRenderer{}}))
	require.NoError(t, reg.Register(Definition{Type: "chart", Renderer: nopRenderer{}}))

	err := reg.Register(Definition{Type: "map", Renderer: nopRenderer{}})
	assert.ErrorIs(t, err, ErrDuplicateType)

	err = reg.Register(Definition{Type: "  ", Renderer: nopRenderer{}})
	assert.ErrorIs(t, err, ErrEmptyType)

	err = reg.Register(Definition{Type: "table"})
	assert.ErrorIs(t, err, ErrNilRenderer)
}

func TestRegistry_DefinitionsOrder(t *testing.T) {
	reg := NewRegistry()
	for _, typ := range []string{"map", "chart", "table"} {
		require.NoError(t, reg.Register(Definition{Type: typ, Renderer: nopRenderer{}}))
	}

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "map", defs[0].Type)
	assert.Equal(t, "chart", defs[1].Type)
	assert.Equal(t, "table", defs[2].Type)

	def, ok := reg.Get("chart")
	require.True(t, ok)
	assert.Equal(t, "chart", def.Type)

	_, ok = reg.Get("calendar")
	assert.False(t, ok)
}
