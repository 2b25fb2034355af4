package infra

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/chainkit/business/watch/domain"
)

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf)
	r.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }

	require.NoError(t, r.Start(context.Background()))
	r.ReportEvent(domain.ContractEvent{
		Name:        "Transfer",
		Contract:    common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		BlockNumber: 12,
		Args:        map[string]any{"value": big.NewInt(7)},
	})
	r.ReportPrice(domain.PriceTick{
		Token:    domain.TrackedToken{Label: "DAI", Network: "mainnet"},
		PriceUSD: decimal.RequireFromString("0.99987"),
		Source:   "amm",
	})
	r.ReportPrice(domain.PriceTick{Token: domain.TrackedToken{Label: "XYZ", Network: "mainnet"}, Err: errors.New("no pool")})
	r.ReportGas(domain.GasTick{Network: "mainnet", Gwei: decimal.RequireFromString("12.345")})
	r.UpdateConnectionStatus("mainnet", false, 0)
	require.NoError(t, r.Stop())

	out := buf.String()
	assert.Contains(t, out, "[09:30:00] EVENT  Transfer     0x6B17…1d0F block=12")
	assert.Contains(t, out, "value=7")
	assert.Contains(t, out, "PRICE  DAI      mainnet $0.9999 (amm)")
	assert.Contains(t, out, "XYZ      mainnet unavailable: no pool")
	assert.Contains(t, out, "GAS    mainnet 12.35 gwei")
	assert.Contains(t, out, "mainnet: disconnected")
	assert.Contains(t, out, "chainkit watch stopped")
}
