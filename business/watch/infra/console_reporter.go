// Package infra contains infrastructure adapters for the watch context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	blockchainDomain "github.com/fd1az/chainkit/business/blockchain/domain"
	"github.com/fd1az/chainkit/business/watch/app"
	"github.com/fd1az/chainkit/business/watch/domain"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsoleReporter creates a new ConsoleReporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout)
}

// NewConsoleReporterTo creates a ConsoleReporter writing to out.
func NewConsoleReporterTo(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out, now: time.Now}
}

func (r *ConsoleReporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%s] "+format+"\n", append([]any{r.now().Format("15:04:05")}, args...)...)
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "chainkit watch started")
	fmt.Fprintln(r.out, "======================")
	return nil
}

// ReportEvent prints a decoded contract event.
func (r *ConsoleReporter) ReportEvent(e domain.ContractEvent) {
	removed := ""
	if e.Removed {
		removed = " (removed)"
	}
	r.printf("EVENT  %-12s %s block=%d tx=%s %s%s",
		e.Name, domain.ShortAddress(e.Contract.Hex()), e.BlockNumber,
		domain.ShortAddress(e.TxHash.Hex()), e.Summary(), removed)
}

// ReportBlock prints a new head.
func (r *ConsoleReporter) ReportBlock(b *blockchainDomain.Block) {
	r.printf("BLOCK  #%d %s gas_used=%d", b.Number, domain.ShortAddress(b.Hash.Hex()), b.GasUsed)
}

// ReportPrice prints a price refresh.
func (r *ConsoleReporter) ReportPrice(t domain.PriceTick) {
	if t.Err != nil {
		r.printf("PRICE  %-8s %s unavailable: %v", t.Token.Name(), t.Token.Network, t.Err)
		return
	}
	r.printf("PRICE  %-8s %s $%s (%s)", t.Token.Name(), t.Token.Network, t.PriceUSD.StringFixed(4), t.Source)
}

// ReportGas prints the gas price.
func (r *ConsoleReporter) ReportGas(t domain.GasTick) {
	r.printf("GAS    %s %s gwei", t.Network, t.Gwei.StringFixed(2))
}

// UpdateConnectionStatus outputs connection status changes.
func (r *ConsoleReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	status := "disconnected"
	if connected {
		status = fmt.Sprintf("connected (%s)", latency.Round(time.Millisecond))
	}
	r.printf("%s: %s", name, status)
}

// ReportError prints an error.
func (r *ConsoleReporter) ReportError(err error) {
	r.printf("ERROR  %v", err)
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "chainkit watch stopped")
	return nil
}
