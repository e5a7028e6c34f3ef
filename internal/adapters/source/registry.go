// Package source holds the SourceAdapter registry and the adapters that
// ship with the engine. Per-site scraping adapters live out of tree; they
// register themselves here at startup. No runtime reflection: a source
// identifier resolves through a static map.
package source

import (
	"fmt"
	"sort"
	"sync"

	"github.com/example/podium/internal/ports/secondary"
)

// Factory builds an adapter from its per-source settings (from the source
// registry file).
type Factory func(settings map[string]any) (secondary.SourceAdapter, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds an adapter factory under a name. Called from init functions;
// duplicate names panic early rather than shadowing silently.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("source: adapter %q registered twice", name))
	}
	registry[name] = factory
}

// Resolve instantiates the adapter registered under name. An unknown name
// or a failing factory is a configuration failure: the scheduler backs the
// contest off instead of wedging the batch.
func Resolve(name string, settings map[string]any) (secondary.SourceAdapter, error) {
	mu.RLock()
	factory, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, &secondary.ConfigError{Err: fmt.Errorf("no adapter registered for %q", name)}
	}
	adapter, err := factory(settings)
	if err != nil {
		return nil, &secondary.ConfigError{Err: fmt.Errorf("adapter %q: %w", name, err)}
	}
	return adapter, nil
}

// Names lists the registered adapter names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
