// Package ethereum adapts the shared node pool to the contract context's ports.
package ethereum

import (
	"context"

	"github.com/fd1az/chainkit/business/contract/app"
	"github.com/fd1az/chainkit/internal/chain"
)

// Backends hands out pooled node clients per network.
type Backends struct {
	pool *chain.Pool
}

// NewBackends creates a provider over pool.
func NewBackends(pool *chain.Pool) *Backends {
	return &Backends{pool: pool}
}

// Backend returns the client for network, dialing it on first use.
func (b *Backends) Backend(ctx context.Context, network string) (app.ChainBackend, error) {
	c, err := b.pool.Client(ctx, network)
	if err != nil {
		return nil, err
	}
	return c, nil
}
