// Package chain keeps one node connection per configured network.
package chain

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/config"
)

// Pool lazily dials and caches an ethclient per network. The websocket
// endpoint is preferred so the client can serve log subscriptions.
type Pool struct {
	mu       sync.Mutex
	networks map[string]config.NetworkConfig
	clients  map[string]*ethclient.Client
}

// NewPool creates a pool over the configured networks.
func NewPool(networks map[string]config.NetworkConfig) *Pool {
	return &Pool{
		networks: networks,
		clients:  make(map[string]*ethclient.Client),
	}
}

// Client returns the connection for network, dialing it on first use.
func (p *Pool) Client(ctx context.Context, network string) (*ethclient.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[network]; ok {
		return c, nil
	}

	n, ok := p.networks[network]
	if !ok {
		return nil, apperror.New(apperror.CodeUnknownNetwork,
			apperror.WithContext("network="+network))
	}

	url := n.WSURL
	if url == "" {
		url = n.RPCURL
	}
	if url == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no rpc_url or ws_url for network "+network))
	}

	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("network="+network))
	}

	p.clients[network] = c
	return c, nil
}

// Network returns the configuration of a network.
func (p *Pool) Network(name string) (config.NetworkConfig, bool) {
	n, ok := p.networks[name]
	return n, ok
}

// Connected returns the names of networks with an open client.
func (p *Pool) Connected() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.clients))
	for name := range p.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every open client.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, c := range p.clients {
		c.Close()
		delete(p.clients, name)
	}
}
