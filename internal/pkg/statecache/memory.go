package statecache

import (
	"context"
	"sync"

	"saot-service/internal/pkg/fingerprint"
	xerrors "saot-service/internal/pkg/errors"
)

// MemoryCache is an in-process Cache used in tests and single-node setups.
type MemoryCache struct {
	mu     sync.RWMutex
	states map[fingerprint.ID]*DeviceState
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{states: make(map[fingerprint.ID]*DeviceState)}
}

func (c *MemoryCache) Put(_ context.Context, state *DeviceState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *state
	c.states[state.DeviceID] = &cp
	return nil
}

func (c *MemoryCache) Get(_ context.Context, deviceID fingerprint.ID) (*DeviceState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.states[deviceID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *state
	return &cp, nil
}

func (c *MemoryCache) Clear(_ context.Context, deviceID fingerprint.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, deviceID)
	return nil
}
