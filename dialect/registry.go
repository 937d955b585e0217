package dialect

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/syssam/unigraph"
)

// OpenFunc opens a driver from a configuration record.
type OpenFunc func(ctx context.Context, cfg unigraph.Config) (Driver, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]OpenFunc)
)

// Register makes an adapter available under the dialect name. Adapters call
// it from init; which adapters exist in a binary is decided by its imports.
// Register panics if the name is registered twice or open is nil.
func Register(name string, open OpenFunc) {
	mu.Lock()
	defer mu.Unlock()
	if open == nil {
		panic("dialect: Register open func is nil")
	}
	if _, dup := registry[name]; dup {
		panic("dialect: Register called twice for " + name)
	}
	registry[name] = open
}

// Open opens a driver of a registered dialect.
func Open(ctx context.Context, name string, cfg unigraph.Config) (Driver, error) {
	mu.RLock()
	open, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, unigraph.Unsupported(fmt.Sprintf("dialect %q is not linked into this binary (registered: %v)", name, Dialects()))
	}
	return open(ctx, cfg)
}

// Dialects returns the sorted names of the registered dialects.
func Dialects() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
