package civicmap

import (
	"reflect"
	"sync"

	"github.com/agentstation/civicmap/pkg/entities"
)

// Hook function types for entity events.
type (
	// EntityCreatedHook is called when a reconciliation creates an entity.
	EntityCreatedHook func(e entities.Entity)

	// EntityMergedHook is called when an entity changes.
	EntityMergedHook func(before, after entities.Entity)

	// EntityRemovedHook is called when a bulk replace drops an entity.
	EntityRemovedHook func(e entities.Entity)
)

// hooks manages event callbacks for store changes.
type hooks struct {
	mu        sync.RWMutex
	onCreated []EntityCreatedHook
	onMerged  []EntityMergedHook
	onRemoved []EntityRemovedHook
}

func (h *hooks) OnEntityCreated(fn EntityCreatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCreated = append(h.onCreated, fn)
}

func (h *hooks) OnEntityMerged(fn EntityMergedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMerged = append(h.onMerged, fn)
}

func (h *hooks) OnEntityRemoved(fn EntityRemovedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRemoved = append(h.onRemoved, fn)
}

func (h *hooks) empty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.onCreated)+len(h.onMerged)+len(h.onRemoved) == 0
}

// trigger compares two snapshots of a partition and fires the matching
// hooks. UpdateDate is ignored when deciding whether an entity changed.
func (h *hooks) trigger(before, after []entities.Entity) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	old := make(map[string]entities.Entity, len(before))
	for _, e := range before {
		old[e.ID] = e
	}
	current := make(map[string]struct{}, len(after))

	for _, e := range after {
		current[e.ID] = struct{}{}
		prev, ok := old[e.ID]
		if !ok {
			for _, fn := range h.onCreated {
				fn(e)
			}
			continue
		}
		a, b := prev, e
		a.UpdateDate = b.UpdateDate
		if !reflect.DeepEqual(a, b) {
			for _, fn := range h.onMerged {
				fn(prev, e)
			}
		}
	}

	for _, e := range before {
		if _, ok := current[e.ID]; !ok {
			for _, fn := range h.onRemoved {
				fn(e)
			}
		}
	}
}
