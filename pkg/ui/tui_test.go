package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func keyMsg(k string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func TestModel_StartupFlow(t *testing.T) {
	started := make(chan struct{}, 2)
	OnStartModules = func() { started <- struct{}{} }
	t.Cleanup(func() { OnStartModules = nil })

	m := New()
	assert.Contains(t, m.View(), "Press any key to skip")

	m = update(t, m, keyMsg("x"), StartModulesMsg{})
	assert.Equal(t, PhaseStartup, m.phase)
	assert.Contains(t, m.View(), "Starting up...")

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("modules not started")
	}
	select {
	case <-started:
		t.Fatal("modules started twice")
	case <-time.After(20 * time.Millisecond):
	}

	m = update(t, m, StartupMsg{Step: "config", Status: "done"})
	assert.Equal(t, PhaseStartup, m.phase)

	m = update(t, m, BlockMsg{Network: "mainnet", Number: 19_000_000})
	assert.Equal(t, PhaseDashboard, m.phase)
	assert.Contains(t, m.View(), "Block: #19000000")
}

func TestModel_Dashboard(t *testing.T) {
	m := New()
	m.phase = PhaseDashboard
	now := time.Now()

	m = update(t, m,
		tea.WindowSizeMsg{Width: 80, Height: 40},
		ConnectionStatusMsg{Name: "mainnet", Connected: true, Latency: 120 * time.Millisecond},
		BlockMsg{Network: "mainnet", Number: 5},
		GasPriceMsg{Network: "mainnet", Gwei: decimal.RequireFromString("21.04")},
		EventMsg{Name: "Transfer", BlockNumber: 5, Contract: "0x6B17…1d0F", Summary: "value=7", ReceivedAt: now},
		PriceMsg{Token: "WETH", Network: "mainnet", PriceUSD: decimal.NewFromInt(3000), Source: "amm"},
		PriceMsg{Token: "XYZ", Network: "mainnet", Err: errors.New("price unavailable")},
	)

	view := m.View()
	assert.Contains(t, view, "Gas mainnet: 21.0 gwei")
	assert.Contains(t, view, "mainnet (120ms)")
	assert.Contains(t, view, "value=7")
	assert.Contains(t, view, "$3000.0000")

	s := m.stats.Snapshot()
	assert.Equal(t, int64(1), s.BlocksProcessed)
	assert.Equal(t, int64(1), s.Events)
	assert.Equal(t, int64(2), s.PriceRefreshes)
	assert.Equal(t, int64(1), s.PriceFailures)
	assert.Equal(t, float64(120), s.AvgLatencyMs)
}

func TestModel_Keys(t *testing.T) {
	m := New()
	m.phase = PhaseDashboard

	m = update(t, m, keyMsg("p"), EventMsg{Name: "Transfer"})
	assert.True(t, m.paused)
	assert.Zero(t, m.events.Len())

	m = update(t, m, keyMsg("p"), EventMsg{Name: "Transfer"}, EventMsg{Name: "Approval"})
	assert.Equal(t, 2, m.events.Len())

	m = update(t, m, keyMsg("c"))
	assert.Zero(t, m.events.Len())

	m = update(t, m, ErrorMsg{Error: errors.New("a")}, ErrorMsg{Error: errors.New("b")},
		ErrorMsg{Error: errors.New("c")}, ErrorMsg{Error: errors.New("d")})
	require.Len(t, m.errors, 3)
	assert.Equal(t, "b", m.errors[0].Message)
	assert.Equal(t, int64(4), m.stats.Snapshot().Errors)

	m = update(t, m, keyMsg("e"), keyMsg("l"), keyMsg("m"), keyMsg("?"))
	assert.Empty(t, m.errors)
	assert.True(t, m.showLogs)
	assert.True(t, m.showStats)
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "STATS")

	next, cmd := m.Update(keyMsg("q"))
	assert.True(t, next.(Model).quitting)
	assert.NotNil(t, cmd)
}
