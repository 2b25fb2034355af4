package domain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PricePrecision is the number of fractional digits kept in derived prices.
const PricePrecision = 18

var (
	ErrReferenceNotInPool = errors.New("pool does not pair the token with the reference asset")
	ErrEmptyReserve       = errors.New("pool has an empty reserve")
)

// TradeReserves is a snapshot of a constant-product pool. It is read fresh
// for every derivation.
type TradeReserves struct {
	Pool      common.Address
	Token0    common.Address
	Token1    common.Address
	Reserve0  *big.Int
	Reserve1  *big.Int
	Decimals0 uint8
	Decimals1 uint8
}

// SpotPrice prices token in USD from the pool ratio and the reference
// asset's USD price: (refReserve / tokenReserve) * refUSD, both reserves
// scaled by their decimals.
func (r TradeReserves) SpotPrice(token, reference common.Address, refUSD decimal.Decimal) (decimal.Decimal, error) {
	var (
		tokRaw, refRaw *big.Int
		tokDec, refDec uint8
	)
	switch {
	case r.Token0 == reference && r.Token1 == token:
		refRaw, refDec, tokRaw, tokDec = r.Reserve0, r.Decimals0, r.Reserve1, r.Decimals1
	case r.Token1 == reference && r.Token0 == token:
		refRaw, refDec, tokRaw, tokDec = r.Reserve1, r.Decimals1, r.Reserve0, r.Decimals0
	default:
		return decimal.Zero, ErrReferenceNotInPool
	}

	if tokRaw == nil || tokRaw.Sign() <= 0 || refRaw == nil || refRaw.Sign() <= 0 {
		return decimal.Zero, ErrEmptyReserve
	}

	refAmount := decimal.NewFromBigInt(refRaw, -int32(refDec))
	tokAmount := decimal.NewFromBigInt(tokRaw, -int32(tokDec))

	return refAmount.Mul(refUSD).DivRound(tokAmount, PricePrecision), nil
}
