// Package main is the entry point for chainkit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/chainkit/business/blockchain"
	blockchainDI "github.com/fd1az/chainkit/business/blockchain/di"
	blockchainDomain "github.com/fd1az/chainkit/business/blockchain/domain"
	"github.com/fd1az/chainkit/business/contract"
	contractApp "github.com/fd1az/chainkit/business/contract/app"
	contractDI "github.com/fd1az/chainkit/business/contract/di"
	contractDomain "github.com/fd1az/chainkit/business/contract/domain"
	"github.com/fd1az/chainkit/business/pricing"
	pricingDI "github.com/fd1az/chainkit/business/pricing/di"
	"github.com/fd1az/chainkit/business/watch"
	watchDI "github.com/fd1az/chainkit/business/watch/di"
	"github.com/fd1az/chainkit/internal/apm"
	"github.com/fd1az/chainkit/internal/config"
	"github.com/fd1az/chainkit/internal/di"
	"github.com/fd1az/chainkit/internal/health"
	"github.com/fd1az/chainkit/internal/logger"
	"github.com/fd1az/chainkit/internal/metrics"
	"github.com/fd1az/chainkit/internal/monolith"
	"github.com/fd1az/chainkit/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const usage = `usage: chainkit [flags] [command]

commands:
  watch                              follow events, prices and gas (default)
  price <token> [network]            USD price of a token
  gas [network]                      current gas price
  abi <address>                      resolve a contract ABI
  call <address> <method> [args...]  read-only contract call
  send <address> <method> [args...]  signed state-changing call

flags:
`

type options struct {
	configPath string
	tuiMode    bool
	network    string
	value      string
	command    string
	args       []string
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run watch in CLI mode with logs (no TUI)")
	network := flag.String("network", "", "Network for one-shot commands (default: ethereum.network)")
	value := flag.String("value", "", "Wei to attach to send")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chainkit %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	opts := options{
		configPath: *configPath,
		network:    *network,
		value:      *value,
		command:    "watch",
	}
	if flag.NArg() > 0 {
		opts.command = flag.Arg(0)
		opts.args = flag.Args()[1:]
	}
	// TUI is the default for watch, CLI is for debugging
	opts.tuiMode = opts.command == "watch" && !*cliMode

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Watch.TUIMode = opts.tuiMode

	// In TUI mode logs would corrupt the screen
	var out io.Writer = os.Stderr
	if opts.tuiMode {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)

	if opts.command != "watch" {
		return runCommand(ctx, cfg, log, opts)
	}

	log.Info(ctx, "starting chainkit watch",
		"version", version,
		"environment", cfg.App.Environment,
	)

	if cfg.Telemetry.Enabled {
		traceProvider, err := apm.NewTraceProvider(ctx, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer traceProvider.Stop()
		log.Info(ctx, "tracing initialized", "exporter", cfg.Telemetry.Exporter)

		metricProvider, err := metrics.NewProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		metricProvider.Serve(cfg.Telemetry.PrometheusPort)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			metricProvider.Shutdown(shutdownCtx)
		}()
	}

	mono := monolith.New(cfg, log)
	defer mono.Close()

	modules := []monolith.Module{
		&blockchain.Module{}, // Must be first - provides heads and gas
		&contract.Module{},
		&pricing.Module{},
		&watch.Module{}, // Depends on all of the above
	}
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	healthServer := health.NewServer(cfg.Health.Port, version, log)
	healthServer.RegisterCheck("node", func(context.Context) (bool, string) {
		status := blockchainDI.GetBlockchainService(mono.Services()).Status()
		if status.State != blockchainDomain.StateConnected {
			return false, fmt.Sprintf("%s %s", status.Network, status.State)
		}
		return true, fmt.Sprintf("block %d", status.LastBlock)
	})
	healthServer.Start()
	defer healthServer.Stop(context.WithoutCancel(ctx))

	start := func() error {
		if err := mono.StartModules(ctx, modules...); err != nil {
			return fmt.Errorf("failed to start modules: %w", err)
		}
		return watchDI.GetWatcher(mono.Services()).Start(ctx)
	}
	stop := func() {
		if err := watchDI.GetWatcher(mono.Services()).Stop(); err != nil {
			log.Error(ctx, "error stopping watcher", "error", err)
		}
	}

	if opts.tuiMode {
		return runTUI(ctx, start, stop)
	}
	return runCLI(ctx, start, stop, log)
}

func runCLI(ctx context.Context, start func() error, stop func(), log logger.LoggerInterface) error {
	if err := start(); err != nil {
		return err
	}
	log.Info(ctx, "all modules started, watching")

	<-ctx.Done()

	log.Info(context.WithoutCancel(ctx), "shutting down")
	stop()
	return nil
}

func runTUI(ctx context.Context, start func() error, stop func()) error {
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Show the welcome screen immediately
	p := tea.NewProgram(ui.New(), tea.WithAltScreen(), tea.WithContext(ctx))
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
		ui.Send(ui.StartupMsg{Step: "ethereum", Status: "connecting"})
		if err := start(); err != nil {
			ui.Send(ui.StartupMsg{Step: "ethereum", Status: "failed", Message: err.Error()})
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}
		ui.Send(ui.StartupMsg{Step: "pricing", Status: "done"})

		<-ctx.Done()
		stop()
		errCh <- nil
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// runCommand executes a one-shot command and prints its result.
func runCommand(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, opts options) error {
	mono := monolith.New(cfg, log)
	defer mono.Close()

	modules := []monolith.Module{&contract.Module{}, &pricing.Module{}, &blockchain.Module{}}
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	sr := mono.Services()

	network := opts.network
	if network == "" {
		network = cfg.Ethereum.Network
	}

	switch opts.command {
	case "price":
		if len(opts.args) < 1 {
			return errors.New("price: token address required")
		}
		if len(opts.args) > 1 {
			network = opts.args[1]
		}
		price, err := pricingDI.GetPriceOracle(sr).GetTokenPrice(ctx, opts.args[0], network)
		if err != nil {
			return err
		}
		fmt.Printf("%s on %s: $%s (%s)\n", price.Token, price.Network, price.PriceUSD.StringFixed(6), price.Source)
		return nil

	case "gas":
		if len(opts.args) > 0 {
			network = opts.args[0]
		}
		gas, err := blockchainDI.GetBlockchainService(sr).GetGasPrice(ctx, network)
		if err != nil {
			return err
		}
		fmt.Printf("%s gas: %s gwei\n", gas.Network, gas.Gwei().StringFixed(2))
		return nil

	case "abi":
		if len(opts.args) != 1 {
			return errors.New("abi: address required")
		}
		c, err := bind(ctx, sr, opts.args[0], network)
		if err != nil {
			return err
		}
		fmt.Println(c.Binding.ABI())
		return nil

	case "call", "send":
		if len(opts.args) < 2 {
			return fmt.Errorf("%s: address and method required", opts.command)
		}
		c, err := bind(ctx, sr, opts.args[0], network)
		if err != nil {
			return err
		}
		method, ok := c.Binding.Method(opts.args[1])
		if !ok {
			return fmt.Errorf("%s: unknown method %q", opts.command, opts.args[1])
		}
		args, err := contractDomain.ParseArgs(method.Inputs, opts.args[2:])
		if err != nil {
			return err
		}

		if opts.command == "call" {
			out, err := c.Binding.Call(ctx, method.Name, args...)
			if err != nil {
				return err
			}
			for i, v := range out {
				name := fmt.Sprintf("[%d]", i)
				if i < len(method.Outputs) && method.Outputs[i].Name != "" {
					name = method.Outputs[i].Name
				}
				fmt.Printf("%s: %v\n", name, v)
			}
			return nil
		}

		txOpts := contractDomain.TxOptions{}
		if opts.value != "" {
			v, err := contractDomain.ParseArg("uint256", opts.value)
			if err != nil {
				return fmt.Errorf("send: value: %w", err)
			}
			txOpts.Value = v.(*big.Int)
		}
		receipt, err := c.Executor.SendTransaction(ctx, method.Name, args, txOpts)
		if receipt != nil {
			fmt.Printf("tx %s nonce=%d block=%d gas_used=%d status=%d\n",
				receipt.TxHash.Hex(), receipt.Nonce, receipt.BlockNumber, receipt.GasUsed, receipt.Status)
			for _, e := range receipt.Events {
				fmt.Printf("  %s %v\n", e.Name, e.Args)
			}
		}
		return err

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", opts.command)
	}
}

func bind(ctx context.Context, sr di.ServiceRegistry, address, network string) (*contractApp.Contract, error) {
	return contractDI.GetContractService(sr).Bind(ctx, contractDomain.ContractConfig{
		Address: address,
		Network: network,
	})
}
