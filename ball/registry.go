package ball

import "github.com/google/uuid"

// Handle is the transport-level address of an attribute.
type Handle uint16

// registry maps attribute identifiers to transport handles. It is frozen
// once every expected attribute has been resolved.
type registry struct {
	handles  map[uuid.UUID]Handle
	byHandle map[Handle]uuid.UUID
	expected int
	complete bool
}

func newRegistry(expected int) *registry {
	r := &registry{expected: expected}
	r.reset()
	return r
}

// add inserts id once. It returns true when this insertion completed the registry.
func (r *registry) add(id uuid.UUID, h Handle) (inserted, completed bool) {
	if r.complete {
		return false, false
	}
	if _, ok := r.handles[id]; ok {
		return false, false
	}
	r.handles[id] = h
	r.byHandle[h] = id
	if len(r.handles) == r.expected {
		r.complete = true
		return true, true
	}
	return true, false
}

func (r *registry) handle(id uuid.UUID) (Handle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

func (r *registry) attribute(h Handle) (uuid.UUID, bool) {
	id, ok := r.byHandle[h]
	return id, ok
}

func (r *registry) reset() {
	r.handles = make(map[uuid.UUID]Handle)
	r.byHandle = make(map[Handle]uuid.UUID)
	r.complete = false
}
