package services

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ConnectorFactory builds and initializes the connector for one (chain, network).
type ConnectorFactory func(ctx context.Context, chain, network string) (*Connector, error)

type registryEntry struct {
	connector *Connector
	refs      int
}

// Registry hands out one shared connector per (chain, network) for the life of the
// process. Get and Release count holders; an idle connector stays cached so its
// token list, factory address and nonce locks survive between callers. Only
// Close shuts connectors down.
type Registry struct {
	factory ConnectorFactory
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[string]*registryEntry
	group   singleflight.Group
}

func NewRegistry(factory ConnectorFactory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factory: factory,
		logger:  logger.Named("registry"),
		entries: make(map[string]*registryEntry),
	}
}

func registryKey(chain, network string) string {
	return chain + ":" + network
}

// Get returns the connector for chain and network, building it on first request.
func (r *Registry) Get(ctx context.Context, chain, network string) (*Connector, error) {
	key := registryKey(chain, network)

	r.mu.Lock()
	if e, ok := r.entries[key]; ok {
		e.refs++
		r.mu.Unlock()
		return e.connector, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		r.mu.Lock()
		if e, ok := r.entries[key]; ok {
			r.mu.Unlock()
			return e.connector, nil
		}
		r.mu.Unlock()

		c, err := r.factory(ctx, chain, network)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.entries[key] = &registryEntry{connector: c}
		r.mu.Unlock()
		r.logger.Info("connector created", zap.String("chain", chain), zap.String("network", network))
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		// Close ran while we waited; hand the connector out uncached
		return v.(*Connector), nil
	}
	e.refs++
	return e.connector, nil
}

// Release drops one reference taken by Get. The connector stays cached at zero.
func (r *Registry) Release(chain, network string) {
	key := registryKey(chain, network)

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok || e.refs == 0 {
		r.logger.Warn("release without matching get", zap.String("key", key))
		return
	}
	e.refs--
}

// Refs returns the number of outstanding Gets for chain and network.
func (r *Registry) Refs(chain, network string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[registryKey(chain, network)]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of cached connectors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close closes every connector regardless of outstanding references.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.connector.Close()
	}
}
