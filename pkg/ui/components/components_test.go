package components

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricesComponent_Change(t *testing.T) {
	p := NewPricesComponent()
	assert.Contains(t, p.View(), "Waiting for price data")

	p.Set(PriceRow{Token: "WETH", Network: "mainnet", PriceUSD: decimal.NewFromInt(2000), Source: "amm"})
	p.Set(PriceRow{Token: "WETH", Network: "mainnet", PriceUSD: decimal.NewFromInt(2010), Source: "amm"})
	p.Set(PriceRow{Token: "DAI", Network: "mainnet", PriceUSD: decimal.NewFromInt(1), Source: "amm"})

	rows := p.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "DAI", rows[0].Token)
	assert.Equal(t, "50", rows[1].ChangeBps.String())

	// a failed refresh keeps the last known price
	p.Set(PriceRow{Token: "WETH", Network: "mainnet", Err: "price unavailable", Block: 9})
	weth := p.Rows()[1]
	assert.Equal(t, "2010", weth.PriceUSD.String())
	assert.Equal(t, "price unavailable", weth.Err)
	assert.Equal(t, uint64(9), weth.Block)

	view := p.View()
	assert.Contains(t, view, "$2010.0000")
	assert.Contains(t, view, "price unavailable")
}

func TestEventsComponent_Scroll(t *testing.T) {
	e := NewEventsComponent(5, 2)
	assert.Contains(t, e.View(), "No events received yet")

	for i := range 7 {
		e.Add(EventRow{BlockNumber: uint64(i), Name: "Transfer", Summary: fmt.Sprintf("n=%d", i)})
	}
	assert.Equal(t, 5, e.Len())
	assert.Contains(t, e.View(), "EVENTS (1-2 of 5)")
	assert.Contains(t, e.View(), "n=6")

	e.ScrollUp()
	assert.Equal(t, 0, e.Offset())

	for range 10 {
		e.ScrollDown()
	}
	assert.Equal(t, 3, e.Offset())
	view := e.View()
	assert.Contains(t, view, "EVENTS (4-5 of 5)")
	assert.Contains(t, view, "n=2")
	assert.NotContains(t, view, "n=6")

	e.Clear()
	assert.Zero(t, e.Len())
	assert.Zero(t, e.Offset())
}

func TestStatusComponent(t *testing.T) {
	s := NewStatusComponent()
	assert.Equal(t, "No connections", s.View())

	s.Update(ConnectionStatus{Name: "mainnet", Connected: true, LastBlock: 10})
	s.Update(ConnectionStatus{Name: "mainnet", Connected: false})

	c, ok := s.Get("mainnet")
	require.True(t, ok)
	assert.False(t, c.Connected)
	assert.Equal(t, uint64(10), c.LastBlock)
	assert.Contains(t, s.View(), "mainnet (disconnected)")
}

func TestStatsComponent(t *testing.T) {
	s := NewStatsComponent()
	assert.Zero(t, s.Snapshot().PriceSuccessRate())

	s.Apply(func(st *Stats) {
		st.BlocksProcessed = 3
		st.PriceRefreshes = 4
		st.PriceFailures = 1
		st.Errors = 2
	})
	s.Apply(func(st *Stats) { st.BlocksProcessed++ })

	assert.Contains(t, s.View(), "75.0% ok")
	assert.Equal(t, int64(4), s.Snapshot().BlocksProcessed)
	assert.InDelta(t, 75.0, s.Snapshot().PriceSuccessRate(), 0.001)
}
