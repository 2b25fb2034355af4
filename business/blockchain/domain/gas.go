package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// GasPrice is a network's suggested gas price.
type GasPrice struct {
	Network   string
	Wei       *big.Int
	TipCap    *big.Int // nil on chains without EIP-1559
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(network string, wei *big.Int, at time.Time) *GasPrice {
	return &GasPrice{
		Network:   network,
		Wei:       new(big.Int).Set(wei),
		Timestamp: at,
	}
}

// Gwei returns the price in gwei.
func (g *GasPrice) Gwei() decimal.Decimal {
	return decimal.NewFromBigInt(g.Wei, -9)
}

// GasEstimate is the cost of spending GasLimit at GasPrice.
type GasEstimate struct {
	GasLimit uint64
	GasPrice *GasPrice
	TotalWei *big.Int
}

// NewGasEstimate computes the total cost of gasLimit units.
func NewGasEstimate(gasLimit uint64, price *GasPrice) *GasEstimate {
	total := new(big.Int).Mul(price.Wei, new(big.Int).SetUint64(gasLimit))
	return &GasEstimate{
		GasLimit: gasLimit,
		GasPrice: price,
		TotalWei: total,
	}
}

// TotalNative returns the cost in the chain's native unit (18 decimals).
func (e *GasEstimate) TotalNative() decimal.Decimal {
	return decimal.NewFromBigInt(e.TotalWei, -18)
}
