// Package ui provides the Bubble Tea dashboard for chainkit watch.
package ui

import (
	"time"

	"github.com/shopspring/decimal"
)

// Message types for TUI updates

// EventMsg is sent when a followed contract emits an event.
type EventMsg struct {
	Contract    string
	Network     string
	Name        string
	BlockNumber uint64
	TxHash      string
	Summary     string
	Removed     bool
	ReceivedAt  time.Time
}

// PriceMsg is sent when a token price is refreshed.
type PriceMsg struct {
	Token    string
	Network  string
	PriceUSD decimal.Decimal
	Source   string
	Block    uint64
	Err      error
}

// ConnectionStatusMsg is sent when connection status changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// BlockMsg is sent when a new block is received.
type BlockMsg struct {
	Network   string
	Number    uint64
	Timestamp time.Time
	GasUsed   uint64
}

// GasPriceMsg is sent when gas price is updated.
type GasPriceMsg struct {
	Network string
	Gwei    decimal.Decimal
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "done", "failed"
	Message string
}
