// Package asset models on-chain tokens and the off-chain quote currency.
// Raw quantities stay in big.Int; decimal.Decimal appears only at boundaries.
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ID identifies an asset by chain and contract address. Native coins use the
// zero address; off-chain currencies use chain 0.
type ID struct {
	chainID uint64
	address common.Address
}

// NativeID returns the ID of a chain's native coin.
func NativeID(chainID uint64) ID {
	return ID{chainID: chainID}
}

// TokenID returns the ID of an ERC-20 token.
func TokenID(chainID uint64, addr common.Address) ID {
	return ID{chainID: chainID, address: addr}
}

// FiatID returns the ID of an off-chain currency.
func FiatID(symbol string) ID {
	return ID{address: common.BytesToAddress(common.RightPadBytes([]byte(symbol), common.AddressLength))}
}

func (id ID) ChainID() uint64         { return id.chainID }
func (id ID) Address() common.Address { return id.address }
func (id ID) IsFiat() bool            { return id.chainID == 0 }

// IsNative reports whether id is a chain's native coin.
func (id ID) IsNative() bool {
	return id.chainID != 0 && id.address == (common.Address{})
}

func (id ID) String() string {
	switch {
	case id.IsFiat():
		return "fiat:" + string(common.TrimRightZeroes(id.address.Bytes()))
	case id.IsNative():
		return fmt.Sprintf("chain:%d/native", id.chainID)
	default:
		return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
	}
}
