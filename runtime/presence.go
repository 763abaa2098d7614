package runtime

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Presence tracks the display names currently joined to each room.
//
// Entries are keyed by display name, not connection id: two connections
// sharing one generated guest name collapse into a single presence slot.
// That is a known limitation of the design, kept deliberately.
type Presence struct {
	mu    sync.RWMutex
	rooms map[string]Set
}

func NewPresence() *Presence {
	return &Presence{rooms: make(map[string]Set)}
}

// Join adds a name to a room. Adding an already-present name is a no-op.
func (p *Presence) Join(roomID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.rooms[roomID]; !ok {
		p.rooms[roomID] = make(Set)
	}
	p.rooms[roomID][name] = struct{}{}
}

// Leave removes a name from a room. Removing an absent name is a no-op.
func (p *Presence) Leave(roomID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	members, ok := p.rooms[roomID]
	if !ok {
		return
	}
	delete(members, name)
	if len(members) == 0 {
		delete(p.rooms, roomID)
	}
}

// Users returns the sorted member list of a room.
func (p *Presence) Users(roomID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := lo.Keys(p.rooms[roomID])
	sort.Strings(names)
	return names
}

// Counts derives the per-room sizes from the current sets. It is computed
// on demand rather than maintained as separate counters, so it cannot
// drift from the membership state.
func (p *Presence) Counts() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.MapValues(p.rooms, func(members Set, _ string) int {
		return len(members)
	})
}
