package app

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fd1az/chainkit/business/contract/domain"
	"github.com/fd1az/chainkit/internal/apperror"
	"github.com/fd1az/chainkit/internal/logger"
)

// ServiceConfig holds the defaults applied to bindings that leave them empty.
type ServiceConfig struct {
	DefaultNetwork  string
	PrivateKey      string
	ExplorerAPIKey  string
	ExplorerNetwork string
	ChainIDs        map[string]uint64
	Executor        ExecutorConfig
}

// ContractService binds contracts and keeps them by network and address.
type ContractService struct {
	cfg      ServiceConfig
	backends BackendProvider
	resolver ABIResolver
	log      logger.LoggerInterface

	mu        sync.RWMutex
	contracts map[string]*Contract
}

// NewContractService creates a contract service.
func NewContractService(cfg ServiceConfig, backends BackendProvider, resolver ABIResolver, log logger.LoggerInterface) *ContractService {
	return &ContractService{
		cfg:       cfg,
		backends:  backends,
		resolver:  resolver,
		log:       log,
		contracts: make(map[string]*Contract),
	}
}

// Bind builds and initializes a contract. Binding an already bound
// network/address pair returns the existing contract.
func (s *ContractService) Bind(ctx context.Context, cfg domain.ContractConfig) (*Contract, error) {
	cfg = s.withDefaults(cfg)
	key := cfg.Key()

	s.mu.RLock()
	existing, ok := s.contracts[key]
	s.mu.RUnlock()
	if ok {
		return existing, nil
	}

	backend, err := s.backends.Backend(ctx, cfg.Network)
	if err != nil {
		return nil, err
	}

	binding := NewBinding(cfg, backend, s.resolver, s.log)
	if err := binding.Initialize(ctx); err != nil {
		return nil, err
	}

	executor, err := NewExecutor(binding, backend, s.cfg.Executor, s.log)
	if err != nil {
		return nil, err
	}

	c := &Contract{
		Binding:  binding,
		Executor: executor,
		Events:   NewEventRegistry(binding, backend, s.log),
	}

	s.mu.Lock()
	if existing, ok := s.contracts[key]; ok {
		s.mu.Unlock()
		c.Disconnect()
		return existing, nil
	}
	s.contracts[key] = c
	s.mu.Unlock()

	return c, nil
}

func (s *ContractService) withDefaults(cfg domain.ContractConfig) domain.ContractConfig {
	cfg.Network = strings.ToLower(strings.TrimSpace(cfg.Network))
	if cfg.Network == "" {
		cfg.Network = s.cfg.DefaultNetwork
	}
	if cfg.PrivateKey == "" {
		cfg.PrivateKey = s.cfg.PrivateKey
	}
	if strings.TrimSpace(cfg.ABI) == "" {
		if cfg.ExplorerAPIKey == "" {
			cfg.ExplorerAPIKey = s.cfg.ExplorerAPIKey
		}
		if cfg.ExplorerNetwork == "" {
			cfg.ExplorerNetwork = s.cfg.ExplorerNetwork
		}
		if cfg.ExplorerNetwork == "" {
			cfg.ExplorerNetwork = cfg.Network
		}
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = s.cfg.ChainIDs[cfg.Network]
	}
	return cfg
}

// Get returns a bound contract.
func (s *ContractService) Get(network, address string) (*Contract, error) {
	if network == "" {
		network = s.cfg.DefaultNetwork
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[domain.BindingKey(network, address)]
	if !ok {
		return nil, apperror.New(apperror.CodeContractNotInitialized,
			apperror.WithContext(network+":"+address))
	}
	return c, nil
}

// Unbind disconnects and forgets a contract. Unknown pairs are a no-op.
func (s *ContractService) Unbind(network, address string) {
	if network == "" {
		network = s.cfg.DefaultNetwork
	}
	key := domain.BindingKey(network, address)

	s.mu.Lock()
	c, ok := s.contracts[key]
	delete(s.contracts, key)
	s.mu.Unlock()

	if ok {
		c.Disconnect()
	}
}

// Bound returns the keys of every bound contract, sorted.
func (s *ContractService) Bound() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.contracts))
	for k := range s.contracts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close disconnects every contract.
func (s *ContractService) Close() {
	s.mu.Lock()
	contracts := s.contracts
	s.contracts = make(map[string]*Contract)
	s.mu.Unlock()

	for _, c := range contracts {
		c.Disconnect()
	}
}
