package kb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/orbital-engine/model"
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventObjectAdded EventType = iota
	EventStateUpdated
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type   EventType
	Object TrackedObject
}

// TrackedObject is one catalogued object together with its current best
// state estimate.
type TrackedObject struct {
	ID    string
	Name  string
	State model.OrbitalState
}

// Catalog is an in-memory, thread-safe store of tracked objects.
type Catalog struct {
	mu sync.RWMutex

	objects map[string]*TrackedObject

	subs []func(Event)
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		objects: make(map[string]*TrackedObject),
	}
}

// AddObject adds a new tracked object. It returns an error if the ID already
// exists.
func (c *Catalog) AddObject(obj TrackedObject) error {
	c.mu.Lock()
	if _, exists := c.objects[obj.ID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("object with ID %q already exists", obj.ID)
	}
	stored := obj
	c.objects[obj.ID] = &stored
	event := Event{Type: EventObjectAdded, Object: obj}
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Object returns the tracked object with the given ID.
func (c *Catalog) Object(id string) (TrackedObject, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.objects[id]
	if !ok {
		return TrackedObject{}, false
	}
	return *obj, true
}

// AllObjects returns a snapshot of every tracked object, sorted by ID so
// callers get a stable iteration order.
func (c *Catalog) AllObjects() []TrackedObject {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res := make([]TrackedObject, 0, len(c.objects))
	for _, obj := range c.objects {
		res = append(res, *obj)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// UpdateState replaces an object's state estimate and notifies subscribers.
func (c *Catalog) UpdateState(id string, st model.OrbitalState) error {
	c.mu.Lock()
	obj, ok := c.objects[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("object with ID %q not found", id)
	}
	obj.State = st
	event := Event{
		Type:   EventStateUpdated,
		Object: *obj, // copy for safety
	}
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
	idx := len(c.subs) - 1

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < 0 || idx >= len(c.subs) {
			return
		}
		c.subs = append(c.subs[:idx], c.subs[idx+1:]...)
		idx = -1
	}
}
