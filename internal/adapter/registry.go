package adapter

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownSourceType is returned by Resolve for a source type that was
	// never registered.
	ErrUnknownSourceType = errors.New("adapter: unknown source type")

	// ErrDuplicateRegistration is returned when a source type is registered
	// twice. Rejecting the overwrite is a deliberate safety choice: a silent
	// replacement would make the winner depend on registration order.
	ErrDuplicateRegistration = errors.New("adapter: source type already registered")
)

// Registry maps source-type names to adapter constructors and caches live
// adapter instances by logical channel name. It is an explicit object rather
// than package state so tests and embedders can hold isolated registries.
//
// A single mutex guards both catalogs; the registry is not a hot path.
type Registry struct {
	mu           sync.Mutex
	constructors map[string]Constructor
	instances    map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		instances:    make(map[string]Adapter),
	}
}

// Register adds a constructor under the source type name.
func (r *Registry) Register(sourceType string, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("adapter: nil constructor for source type '%s'", sourceType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.constructors[sourceType]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, sourceType)
	}
	r.constructors[sourceType] = ctor
	return nil
}

// Resolve returns the adapter instance for channelName. An existing instance
// is reused when no new options are supplied; otherwise a fresh instance is
// constructed, replacing whatever was cached under that name.
func (r *Registry) Resolve(sourceType, channelID, channelName string, opts *Options) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inst, ok := r.instances[channelName]; ok && opts == nil {
		return inst, nil
	}

	ctor, ok := r.constructors[sourceType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSourceType, sourceType)
	}

	var o Options
	if opts != nil {
		o = *opts
	}
	inst, err := ctor(channelID, channelName, o)
	if err != nil {
		return nil, fmt.Errorf("adapter: construct '%s' for channel '%s': %w", sourceType, channelName, err)
	}
	r.instances[channelName] = inst
	return inst, nil
}

// ListRegistered returns the registered source type names, sorted.
func (r *Registry) ListRegistered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveChannels returns the cached adapter instances.
func (r *Registry) ActiveChannels() []Adapter {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]Adapter, 0, len(r.instances))
	for _, inst := range r.instances {
		active = append(active, inst)
	}
	return active
}

// Deactivate evicts the cached instance for the channel, reporting whether
// one existed. The source type registration is untouched.
func (r *Registry) Deactivate(channelName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[channelName]; !ok {
		return false
	}
	delete(r.instances, channelName)
	return true
}

// Unregister drops the constructor for the source type, reporting whether it
// was registered. Cached instances keep working; they hold their constructor.
func (r *Registry) Unregister(sourceType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.constructors[sourceType]; !ok {
		return false
	}
	delete(r.constructors, sourceType)
	return true
}

// Remove evicts both the cached instance and the type registration under the
// same name, reporting whether either existed. Deactivate and Unregister are
// the preferred operations; Remove exists for callers that keyed channels and
// source types identically and want both gone at once.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, hadInstance := r.instances[name]
	_, hadType := r.constructors[name]
	delete(r.instances, name)
	delete(r.constructors, name)
	return hadInstance || hadType
}
