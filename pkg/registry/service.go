// The registry owns instance identity: it constructs engines by class
// name, starts them, and fans lifecycle notifications out to
// subscribers such as the persistence subsystem.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]*Entry
	subs      []Subscriber
}

func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]*Entry),
	}
}

// RegisterFactory binds a class name to its constructor.
func (r *Registry) RegisterFactory(className string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[className] = factory
}

// Subscribe adds a lifecycle subscriber. Subscribers added after
// instances exist do not receive retroactive Created events.
func (r *Registry) Subscribe(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
}

// Create constructs and starts a new instance with a generated id.
func (r *Registry) Create(className string, args json.RawMessage) (string, error) {
	id := uuid.NewString()
	if err := r.create(id, className, args); err != nil {
		return "", err
	}
	return id, nil
}

// Recreate constructs and starts an instance under an explicit id,
// as done for every record during restore.
func (r *Registry) Recreate(id string, className string, args json.RawMessage) error {
	return r.create(id, className, args)
}

func (r *Registry) create(id string, className string, args json.RawMessage) error {
	r.mu.Lock()
	factory, ok := r.factories[className]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownClass, className)
	}
	if _, exists := r.instances[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	r.mu.Unlock()

	inst, err := factory(args)
	if err != nil {
		return fmt.Errorf("construct %q instance: %w", className, err)
	}

	r.mu.Lock()
	if _, exists := r.instances[id]; exists {
		r.mu.Unlock()
		inst.Stop()
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	entry := &Entry{ID: id, ClassName: className, Args: args, Instance: inst}
	r.instances[id] = entry
	subs := r.snapshotSubs()
	r.mu.Unlock()

	// Engines begin ticking as soon as they exist.
	inst.Start()

	for _, sub := range subs {
		sub.Created(id, className, args, inst)
	}
	return nil
}

// Delete stops an instance, removes it and notifies subscribers.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	entry, ok := r.instances[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoInstance, id)
	}
	delete(r.instances, id)
	subs := r.snapshotSubs()
	r.mu.Unlock()

	entry.Instance.Stop()

	for _, sub := range subs {
		sub.Deleted(id, entry.ClassName)
	}
	return nil
}

// Get returns the entry for id, if present.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.instances[id]
	return entry, ok
}

// List returns all live entries ordered by id.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*Entry, 0, len(r.instances))
	for _, entry := range r.instances {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// Len reports the number of live instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// StopAll stops every live instance without emitting Deleted events.
// Used on process shutdown; records must survive for the next restore.
func (r *Registry) StopAll() {
	r.mu.RLock()
	entries := make([]*Entry, 0, len(r.instances))
	for _, entry := range r.instances {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	for _, entry := range entries {
		entry.Instance.Stop()
	}
}

// Caller must hold r.mu.
func (r *Registry) snapshotSubs() []Subscriber {
	subs := make([]Subscriber, len(r.subs))
	copy(subs, r.subs)
	return subs
}
