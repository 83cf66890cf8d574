package world

import (
	"sync"

	"outpost.gg/internal/sim/world/kernel/model"
)

// Structures is the host's view of placed entities that claims, armories and
// zones refer to.
type Structures interface {
	// ControllerAt returns the structure whose authority covers pos.
	ControllerAt(pos model.Vec3) (model.EntityID, bool)
	Exists(id model.EntityID) bool
	Destroy(id model.EntityID)
}

// Containers moves items in and out of host storage. Withdraw is all or
// nothing.
type Containers interface {
	Withdraw(id model.EntityID, item string, n int) bool
	Deposit(id model.EntityID, item string, n int) bool
	IsFull(id model.EntityID) bool
}

// Inventories charges and pays players. Take is all or nothing.
type Inventories interface {
	Take(userID, item string, n int) bool
	Give(userID, item string, n int)
}

type Host interface {
	Structures
	Containers
	Inventories
}

type memStructure struct {
	pos    model.Vec3
	radius float64
}

// MemoryHost is an in-process Host used by the standalone server and tests.
type MemoryHost struct {
	mu sync.Mutex

	// ContainerCapacity bounds the total items a container holds; 0 is
	// unbounded.
	ContainerCapacity int

	nextID      model.EntityID
	structures  map[model.EntityID]memStructure
	containers  map[model.EntityID]map[string]int
	inventories map[string]map[string]int
}

func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		structures:  map[model.EntityID]memStructure{},
		containers:  map[model.EntityID]map[string]int{},
		inventories: map[string]map[string]int{},
	}
}

// AddStructure places a structure with storage that controls everything within
// radius of pos.
func (h *MemoryHost) AddStructure(pos model.Vec3, radius float64) model.EntityID {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.structures[id] = memStructure{pos: pos, radius: radius}
	h.containers[id] = map[string]int{}
	return id
}

// Restore re-registers a structure under a known id, e.g. one referenced by a
// snapshot. A negative radius makes it a plain container that controls no
// land.
func (h *MemoryHost) Restore(id model.EntityID, pos model.Vec3, radius float64) {
	if id == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if id > h.nextID {
		h.nextID = id
	}
	h.structures[id] = memStructure{pos: pos, radius: radius}
	if h.containers[id] == nil {
		h.containers[id] = map[string]int{}
	}
}

func (h *MemoryHost) ControllerAt(pos model.Vec3) (model.EntityID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var (
		best     model.EntityID
		bestDist float64
	)
	for id, s := range h.structures {
		d := s.pos.DistanceXZ(pos)
		if d > s.radius {
			continue
		}
		if best == 0 || d < bestDist || (d == bestDist && id < best) {
			best, bestDist = id, d
		}
	}
	return best, best != 0
}

func (h *MemoryHost) Exists(id model.EntityID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.structures[id]
	return ok
}

func (h *MemoryHost) Destroy(id model.EntityID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.structures, id)
	delete(h.containers, id)
}

func (h *MemoryHost) Withdraw(id model.EntityID, item string, n int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.containers[id]
	if c == nil || n < 0 || c[item] < n {
		return false
	}
	c[item] -= n
	return true
}

func (h *MemoryHost) Deposit(id model.EntityID, item string, n int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.containers[id]
	if c == nil || n < 0 {
		return false
	}
	if h.ContainerCapacity > 0 && total(c)+n > h.ContainerCapacity {
		return false
	}
	c[item] += n
	return true
}

func (h *MemoryHost) IsFull(id model.EntityID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.containers[id]
	if c == nil {
		return true
	}
	return h.ContainerCapacity > 0 && total(c) >= h.ContainerCapacity
}

// Stored reports how many of item a container holds.
func (h *MemoryHost) Stored(id model.EntityID, item string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.containers[id][item]
}

func (h *MemoryHost) Take(userID, item string, n int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	inv := h.inventories[userID]
	if n < 0 || inv[item] < n {
		return false
	}
	if n > 0 {
		inv[item] -= n
	}
	return true
}

func (h *MemoryHost) Give(userID, item string, n int) {
	if n <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	inv := h.inventories[userID]
	if inv == nil {
		inv = map[string]int{}
		h.inventories[userID] = inv
	}
	inv[item] += n
}

func (h *MemoryHost) Balance(userID, item string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inventories[userID][item]
}

func total(c map[string]int) int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
