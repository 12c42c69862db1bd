package vessel

import (
	"fmt"
	"sync"
)

// PartKind classifies a part.
type PartKind int

const (
	KindStructure PartKind = iota
	KindEngine
	KindTank
	KindDecoupler
)

func (k PartKind) String() string {
	switch k {
	case KindEngine:
		return "engine"
	case KindTank:
		return "tank"
	case KindDecoupler:
		return "decoupler"
	default:
		return "structure"
	}
}

// Part is one component of the simulated vessel. Parts are grouped: group 0
// is the top of the stack and each decoupler of group g holds group g+1.
type Part struct {
	ID      string
	Kind    PartKind
	Group   int
	DryMass float64 // kg

	// Engines.
	MaxThrust   float64 // N
	Propellant  string
	Consumption float64 // propellant units per second at full thrust
	Active      bool
	ThrustLimit float64

	// Tanks.
	Resource string
	Amount   float64

	// Decouplers.
	Decoupled bool

	Detached bool
}

// Stage is the staging index the vessel reports for the part. Engines and
// decouplers carry their group; tanks report the control stage during which
// they feed, one above the engines they supply.
func (p *Part) Stage() int {
	if p.Kind == KindTank {
		return p.Group + 1
	}
	return p.Group
}

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventPartDetached EventType = iota
)

// Event is emitted to subscribers when parts leave the vessel.
type Event struct {
	Type EventType
	Part Part
}

// Registry is a thread-safe store of the vessel's parts, kept in insertion
// order so listings are deterministic.
type Registry struct {
	mu sync.RWMutex

	parts map[string]*Part
	order []string

	subs []func(Event)
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{parts: make(map[string]*Part)}
}

// AddPart adds a new part. It returns an error if the ID already exists.
func (r *Registry) AddPart(p *Part) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		return fmt.Errorf("part has no ID")
	}
	if _, exists := r.parts[p.ID]; exists {
		return fmt.Errorf("part with ID %q already exists", p.ID)
	}
	r.parts[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// GetPart returns the attached part with the given ID, or nil.
func (r *Registry) GetPart(id string) *Part {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.parts[id]
	if p == nil || p.Detached {
		return nil
	}
	return p
}

// ListParts returns every attached part.
func (r *Registry) ListParts() []*Part {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*Part, 0, len(r.order))
	for _, id := range r.order {
		if p := r.parts[id]; !p.Detached {
			res = append(res, p)
		}
	}
	return res
}

// DetachBelow detaches every part of a group greater than group and
// notifies subscribers. It returns the number of parts removed.
func (r *Registry) DetachBelow(group int) int {
	r.mu.Lock()
	var events []Event
	for _, id := range r.order {
		p := r.parts[id]
		if p.Detached || p.Group <= group {
			continue
		}
		p.Detached = true
		p.Active = false
		events = append(events, Event{Type: EventPartDetached, Part: *p})
	}
	subs := append([]func(Event){}, r.subs...)
	r.mu.Unlock()

	for _, ev := range events {
		for _, sub := range subs {
			sub(ev)
		}
	}
	return len(events)
}

// Subscribe registers a callback for registry events. It returns an
// unsubscribe function.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
	idx := len(r.subs) - 1

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if idx < 0 || idx >= len(r.subs) {
			return
		}
		r.subs = append(r.subs[:idx], r.subs[idx+1:]...)
		idx = -1
	}
}
