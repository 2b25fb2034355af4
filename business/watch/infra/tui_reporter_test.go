package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blockchainDomain "github.com/fd1az/chainkit/business/blockchain/domain"
	"github.com/fd1az/chainkit/business/watch/domain"
	"github.com/fd1az/chainkit/pkg/ui"
)

func TestTUIReporter_Messages(t *testing.T) {
	var msgs []tea.Msg
	r := NewTUIReporterWith(func(m tea.Msg) { msgs = append(msgs, m) })

	require.NoError(t, r.Start(context.Background()))
	r.ReportEvent(domain.ContractEvent{
		Name:     "Approval",
		Network:  "mainnet",
		Contract: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		Args:     map[string]any{"owner": "alice"},
	})
	r.ReportBlock(&blockchainDomain.Block{Network: "mainnet", Number: 3})
	r.ReportPrice(domain.PriceTick{
		Token:    domain.TrackedToken{Label: "WETH", Network: "mainnet"},
		PriceUSD: decimal.NewFromInt(3000),
	})
	r.ReportGas(domain.GasTick{Network: "mainnet", Gwei: decimal.NewFromInt(9)})
	r.UpdateConnectionStatus("mainnet", true, time.Second)
	r.ReportError(errors.New("boom"))
	require.NoError(t, r.Stop())

	require.Len(t, msgs, 8)
	assert.Equal(t, ui.StartupMsg{Step: "contracts", Status: "done"}, msgs[0])

	ev, ok := msgs[1].(ui.EventMsg)
	require.True(t, ok)
	assert.Equal(t, "0x6B17…1d0F", ev.Contract)
	assert.Equal(t, "owner=alice", ev.Summary)

	assert.Equal(t, uint64(3), msgs[2].(ui.BlockMsg).Number)
	assert.Equal(t, "WETH", msgs[3].(ui.PriceMsg).Token)
	assert.Equal(t, "9", msgs[4].(ui.GasPriceMsg).Gwei.String())
	assert.Equal(t, ui.ConnectionStatusMsg{Name: "mainnet", Connected: true, Latency: time.Second}, msgs[5])
	assert.EqualError(t, msgs[6].(ui.ErrorMsg).Error, "boom")
	assert.IsType(t, ui.LogMsg{}, msgs[7])
}
