// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"github.com/fd1az/chainkit/internal/asset"
	"github.com/fd1az/chainkit/internal/chain"
	"github.com/fd1az/chainkit/internal/config"
	"github.com/fd1az/chainkit/internal/di"
	"github.com/fd1az/chainkit/internal/logger"
)

// Service names of the shared infrastructure in the container.
const (
	ConfigService        = "config"
	LoggerService        = "logger"
	ChainPoolService     = "chainPool"
	AssetRegistryService = "assetRegistry"
)

// Monolith gives modules access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	Chains() *chain.Pool
	AssetRegistry() *asset.Registry
	Services() di.ServiceRegistry
}

// Module is a bounded context that registers services and starts up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	chains        *chain.Pool
	assetRegistry *asset.Registry
	container     di.Container
}

// New creates the application container. Node connections are opened lazily.
func New(cfg *config.Config, log logger.LoggerInterface) *app {
	chains := chain.NewPool(cfg.Networks)
	assetRegistry := asset.DefaultRegistry()

	container := di.NewContainer()
	container.Register(ConfigService, cfg)
	container.Register(LoggerService, log)
	container.Register(ChainPoolService, chains)
	container.Register(AssetRegistryService, assetRegistry)

	return &app{
		config:        cfg,
		logger:        log,
		chains:        chains,
		assetRegistry: assetRegistry,
		container:     container,
	}
}

func (a *app) Config() *config.Config         { return a.config }
func (a *app) Logger() logger.LoggerInterface { return a.logger }
func (a *app) Chains() *chain.Pool            { return a.chains }
func (a *app) AssetRegistry() *asset.Registry { return a.assetRegistry }
func (a *app) Services() di.ServiceRegistry   { return a.container }

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules in order.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes node connections.
func (a *app) Close() error {
	a.chains.Close()
	return nil
}
