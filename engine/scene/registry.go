// Package scene is a minimal entity/component store. Each component type
// lives in its own sparse set: a sparse index from entity slot to a dense
// position, with the components packed in the dense arrays.
package scene

import (
	"reflect"
)

// Entity identifies an entity. The low 32 bits are its slot, the high 32
// bits the slot's generation, so a stale handle never aliases a new entity.
type Entity uint64

// Nil is never returned by NewEntity.
const Nil Entity = 0

func newEntity(slot, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(slot))
}

func (e Entity) slot() uint32       { return uint32(e) }
func (e Entity) generation() uint32 { return uint32(e >> 32) }

const absent = -1

type storage interface {
	remove(e Entity)
	len() int
}

type pool[T any] struct {
	sparse []int
	dense  []Entity
	data   []T
}

func (p *pool[T]) index(e Entity) int {
	s := int(e.slot())
	if s >= len(p.sparse) {
		return absent
	}
	i := p.sparse[s]
	if i == absent || p.dense[i] != e {
		return absent
	}
	return i
}

func (p *pool[T]) set(e Entity, v T) *T {
	if i := p.index(e); i != absent {
		p.data[i] = v
		return &p.data[i]
	}
	s := int(e.slot())
	for len(p.sparse) <= s {
		p.sparse = append(p.sparse, absent)
	}
	p.sparse[s] = len(p.dense)
	p.dense = append(p.dense, e)
	p.data = append(p.data, v)
	return &p.data[len(p.data)-1]
}

// remove swaps the last element into the hole.
func (p *pool[T]) remove(e Entity) {
	i := p.index(e)
	if i == absent {
		return
	}
	last := len(p.dense) - 1
	moved := p.dense[last]
	p.dense[i] = moved
	p.data[i] = p.data[last]
	p.sparse[moved.slot()] = i
	p.sparse[e.slot()] = absent

	var zero T
	p.data[last] = zero
	p.dense = p.dense[:last]
	p.data = p.data[:last]
}

func (p *pool[T]) len() int { return len(p.dense) }

// Registry owns entities and their component pools. It is not safe for
// concurrent use.
type Registry struct {
	generations []uint32
	alive       []bool
	free        []uint32
	pools       map[reflect.Type]storage
}

func NewRegistry() *Registry {
	// Slot 0 is reserved so Nil never names a live entity.
	return &Registry{
		generations: []uint32{0},
		alive:       []bool{false},
		pools:       make(map[reflect.Type]storage),
	}
}

func (r *Registry) NewEntity() Entity {
	if n := len(r.free); n > 0 {
		slot := r.free[n-1]
		r.free = r.free[:n-1]
		r.alive[slot] = true
		return newEntity(slot, r.generations[slot])
	}
	slot := uint32(len(r.generations))
	r.generations = append(r.generations, 0)
	r.alive = append(r.alive, true)
	return newEntity(slot, 0)
}

func (r *Registry) Valid(e Entity) bool {
	s := e.slot()
	return s != 0 && int(s) < len(r.alive) && r.alive[s] && r.generations[s] == e.generation()
}

// Destroy removes e and all its components. Destroying a stale entity does
// nothing.
func (r *Registry) Destroy(e Entity) {
	if !r.Valid(e) {
		return
	}
	for _, p := range r.pools {
		p.remove(e)
	}
	s := e.slot()
	r.alive[s] = false
	r.generations[s]++
	r.free = append(r.free, s)
}

// Len is the number of live entities.
func (r *Registry) Len() int {
	return len(r.alive) - 1 - len(r.free)
}

func poolOf[T any](r *Registry, create bool) *pool[T] {
	key := reflect.TypeFor[T]()
	if p, ok := r.pools[key]; ok {
		return p.(*pool[T])
	}
	if !create {
		return nil
	}
	p := &pool[T]{}
	r.pools[key] = p
	return p
}

// Add sets the T component of e, replacing any previous one, and returns a
// pointer to the stored value. The pointer is valid until the next Add or
// Remove of a T.
func Add[T any](r *Registry, e Entity, v T) *T {
	if !r.Valid(e) {
		return nil
	}
	return poolOf[T](r, true).set(e, v)
}

func Get[T any](r *Registry, e Entity) (*T, bool) {
	p := poolOf[T](r, false)
	if p == nil {
		return nil, false
	}
	i := p.index(e)
	if i == absent {
		return nil, false
	}
	return &p.data[i], true
}

func Has[T any](r *Registry, e Entity) bool {
	_, ok := Get[T](r, e)
	return ok
}

func Remove[T any](r *Registry, e Entity) {
	if p := poolOf[T](r, false); p != nil {
		p.remove(e)
	}
}

// Each calls fn for every entity with a T, in dense order. fn must not add
// or remove T components.
func Each[T any](r *Registry, fn func(Entity, *T)) {
	p := poolOf[T](r, false)
	if p == nil {
		return
	}
	for i, e := range p.dense {
		fn(e, &p.data[i])
	}
}

// Each2 calls fn for every entity with both an A and a B. The smaller pool
// drives the iteration.
func Each2[A, B any](r *Registry, fn func(Entity, *A, *B)) {
	pa, pb := poolOf[A](r, false), poolOf[B](r, false)
	if pa == nil || pb == nil {
		return
	}
	if pa.len() <= pb.len() {
		for i, e := range pa.dense {
			if j := pb.index(e); j != absent {
				fn(e, &pa.data[i], &pb.data[j])
			}
		}
		return
	}
	for j, e := range pb.dense {
		if i := pa.index(e); i != absent {
			fn(e, &pa.data[i], &pb.data[j])
		}
	}
}

// Count is the number of entities with a T.
func Count[T any](r *Registry) int {
	if p := poolOf[T](r, false); p != nil {
		return p.len()
	}
	return 0
}
