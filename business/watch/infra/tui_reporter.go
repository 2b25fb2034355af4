package infra

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	blockchainDomain "github.com/fd1az/chainkit/business/blockchain/domain"
	"github.com/fd1az/chainkit/business/watch/app"
	"github.com/fd1az/chainkit/business/watch/domain"
	"github.com/fd1az/chainkit/pkg/ui"
)

var _ app.Reporter = (*TUIReporter)(nil)

// TUIReporter implements Reporter for the Bubble Tea dashboard.
type TUIReporter struct {
	send func(tea.Msg)
}

// NewTUIReporter creates a TUIReporter that sends to the running ui program.
func NewTUIReporter() *TUIReporter {
	return NewTUIReporterWith(ui.Send)
}

// NewTUIReporterWith creates a TUIReporter delivering messages through send.
func NewTUIReporterWith(send func(tea.Msg)) *TUIReporter {
	return &TUIReporter{send: send}
}

// Start marks the contracts step done. The program itself is run by main.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.send(ui.StartupMsg{Step: "contracts", Status: "done"})
	return nil
}

// ReportEvent sends a contract event to the TUI.
func (r *TUIReporter) ReportEvent(e domain.ContractEvent) {
	r.send(ui.EventMsg{
		Contract:    domain.ShortAddress(e.Contract.Hex()),
		Network:     e.Network,
		Name:        e.Name,
		BlockNumber: e.BlockNumber,
		TxHash:      e.TxHash.Hex(),
		Summary:     e.Summary(),
		Removed:     e.Removed,
		ReceivedAt:  e.ReceivedAt,
	})
}

// ReportBlock sends a new head to the TUI.
func (r *TUIReporter) ReportBlock(b *blockchainDomain.Block) {
	r.send(ui.BlockMsg{
		Network:   b.Network,
		Number:    b.Number,
		Timestamp: b.Timestamp,
		GasUsed:   b.GasUsed,
	})
}

// ReportPrice sends a price refresh to the TUI.
func (r *TUIReporter) ReportPrice(t domain.PriceTick) {
	r.send(ui.PriceMsg{
		Token:    t.Token.Name(),
		Network:  t.Token.Network,
		PriceUSD: t.PriceUSD,
		Source:   t.Source,
		Block:    t.Block,
		Err:      t.Err,
	})
}

// ReportGas sends the gas price to the TUI.
func (r *TUIReporter) ReportGas(t domain.GasTick) {
	r.send(ui.GasPriceMsg{Network: t.Network, Gwei: t.Gwei})
}

// UpdateConnectionStatus sends connection status to the TUI.
func (r *TUIReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	r.send(ui.ConnectionStatusMsg{Name: name, Connected: connected, Latency: latency})
}

// ReportError sends an error to the TUI.
func (r *TUIReporter) ReportError(err error) {
	r.send(ui.ErrorMsg{Error: err})
}

// Stop is a no-op; quitting the program is left to the user.
func (r *TUIReporter) Stop() error {
	r.send(ui.LogMsg{Level: "info", Message: "watcher stopped"})
	return nil
}
