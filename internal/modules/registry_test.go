package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type strategy interface {
	Name() string
}

type namedStrategy struct {
	name string
}

func (s *namedStrategy) Name() string { return s.name }

func TestRegistry(t *testing.T) {
	r := NewRegistry[strategy]()
	r.Register("default", func() strategy { return &namedStrategy{name: "default"} })
	r.Register("custom", func() strategy { return &namedStrategy{name: "custom"} })

	s, err := r.Resolve("custom")
	require.NoError(t, err)
	assert.Equal(t, "custom", s.Name())

	assert.Equal(t, []string{"custom", "default"}, r.IDs())
}

func TestRegistry_NotRegistered(t *testing.T) {
	r := NewRegistry[strategy]()
	_, err := r.Resolve("missing")
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistry_FreshInstancePerResolve(t *testing.T) {
	r := NewRegistry[strategy]()
	r.Register("default", func() strategy { return &namedStrategy{name: "default"} })

	a, err := r.Resolve("default")
	require.NoError(t, err)
	b, err := r.Resolve("default")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestRegistry_ReplaceConstructor(t *testing.T) {
	r := NewRegistry[strategy]()
	r.Register("default", func() strategy { return &namedStrategy{name: "v1"} })
	r.Register("default", func() strategy { return &namedStrategy{name: "v2"} })

	s, err := r.Resolve("default")
	require.NoError(t, err)
	assert.Equal(t, "v2", s.Name())
}
