package asset

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a concurrency-safe index of known assets. Token metadata read
// from chain is stored here so decimals are fetched once per token.
type Registry struct {
	mu   sync.RWMutex
	byID map[ID]*Asset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[ID]*Asset)}
}

// Get looks up an asset by ID.
func (r *Registry) Get(id ID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// Token looks up an ERC-20 token.
func (r *Registry) Token(chainID uint64, addr common.Address) (*Asset, bool) {
	return r.Get(TokenID(chainID, addr))
}

// Put stores a unless an asset with the same ID exists, and returns the stored asset.
func (r *Registry) Put(a *Asset) *Asset {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[a.ID()]; ok {
		return existing
	}
	r.byID[a.ID()] = a
	return a
}

// Len returns the number of registered assets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
