package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct{ X, Y float32 }
type velocity struct{ DX, DY float32 }
type tag string

func TestNewEntityNeverNil(t *testing.T) {
	r := NewRegistry()
	e := r.NewEntity()
	assert.NotEqual(t, Nil, e)
	assert.True(t, r.Valid(e))
	assert.False(t, r.Valid(Nil))
	assert.Equal(t, 1, r.Len())
}

func TestAddGetRemove(t *testing.T) {
	r := NewRegistry()
	e := r.NewEntity()

	p := Add(r, e, position{1, 2})
	require.NotNil(t, p)
	p.X = 5

	got, ok := Get[position](r, e)
	require.True(t, ok)
	assert.Equal(t, position{5, 2}, *got)
	assert.True(t, Has[position](r, e))
	assert.False(t, Has[velocity](r, e))

	Add(r, e, position{7, 7})
	assert.Equal(t, 1, Count[position](r))
	got, _ = Get[position](r, e)
	assert.Equal(t, position{7, 7}, *got)

	Remove[position](r, e)
	_, ok = Get[position](r, e)
	assert.False(t, ok)
	Remove[velocity](r, e)
}

func TestRemoveKeepsOthersReachable(t *testing.T) {
	r := NewRegistry()
	a, b, c := r.NewEntity(), r.NewEntity(), r.NewEntity()
	Add(r, a, tag("a"))
	Add(r, b, tag("b"))
	Add(r, c, tag("c"))

	Remove[tag](r, a)
	for e, want := range map[Entity]tag{b: "b", c: "c"} {
		got, ok := Get[tag](r, e)
		require.True(t, ok)
		assert.Equal(t, want, *got)
	}
	assert.Equal(t, 2, Count[tag](r))
}

func TestDestroyInvalidatesHandle(t *testing.T) {
	r := NewRegistry()
	e := r.NewEntity()
	Add(r, e, position{1, 1})
	Add(r, e, velocity{1, 1})

	r.Destroy(e)
	assert.False(t, r.Valid(e))
	assert.Equal(t, 0, Count[position](r))
	assert.Equal(t, 0, Count[velocity](r))
	assert.Nil(t, Add(r, e, position{}))

	// The slot is reused with a new generation.
	again := r.NewEntity()
	assert.Equal(t, e.slot(), again.slot())
	assert.NotEqual(t, e, again)
	_, ok := Get[position](r, again)
	assert.False(t, ok)

	r.Destroy(e)
	assert.True(t, r.Valid(again))
}

func TestEachAndEach2(t *testing.T) {
	r := NewRegistry()
	moving := r.NewEntity()
	still := r.NewEntity()
	Add(r, moving, position{0, 0})
	Add(r, moving, velocity{1, 2})
	Add(r, still, position{3, 3})

	var seen int
	Each(r, func(e Entity, p *position) { seen++ })
	assert.Equal(t, 2, seen)

	var pairs []Entity
	Each2(r, func(e Entity, p *position, v *velocity) {
		p.X += v.DX
		p.Y += v.DY
		pairs = append(pairs, e)
	})
	assert.Equal(t, []Entity{moving}, pairs)
	got, _ := Get[position](r, moving)
	assert.Equal(t, position{1, 2}, *got)

	// Driven by the other pool when it is smaller.
	pairs = nil
	Each2(r, func(e Entity, v *velocity, p *position) { pairs = append(pairs, e) })
	assert.Equal(t, []Entity{moving}, pairs)

	Each2(r, func(Entity, *position, *tag) { t.Fatal("no entity has a tag") })
	Each(r, func(Entity, *tag) { t.Fatal("no entity has a tag") })
}
