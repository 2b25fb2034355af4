package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxOptions overrides what the executor would otherwise derive from the node.
// Nil or zero fields are filled in at send time.
type TxOptions struct {
	Value     *big.Int
	GasLimit  uint64
	GasPrice  *big.Int // forces a legacy transaction
	GasTipCap *big.Int
	GasFeeCap *big.Int
	Nonce     *uint64
	// Confirmations is the block depth to wait for; zero uses the executor default.
	Confirmations uint64
}

// TxRequest is one state-changing call in a batch.
type TxRequest struct {
	Method  string
	Args    []any
	Options TxOptions
}

// Receipt is the outcome of a mined transaction.
type Receipt struct {
	TxHash            common.Hash
	Nonce             uint64
	BlockNumber       uint64
	BlockHash         common.Hash
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Status            uint64
	// Events holds the receipt's logs emitted by the bound contract, decoded.
	Events []Event
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// NewReceipt converts a node receipt.
func NewReceipt(r *types.Receipt, nonce uint64) *Receipt {
	out := &Receipt{
		TxHash:            r.TxHash,
		Nonce:             nonce,
		BlockHash:         r.BlockHash,
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: r.EffectiveGasPrice,
		Status:            r.Status,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}

// BatchResult reports how far a batch got. Receipts holds every confirmed
// transaction in order; FailedIndex is -1 when the whole batch confirmed.
type BatchResult struct {
	BatchID     string
	StartNonce  uint64
	Receipts    []*Receipt
	FailedIndex int
}
