// Package domain contains the core domain types for the watch context.
package domain

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Target is a contract the watcher binds and follows.
type Target struct {
	Address string
	Network string
	ABI     string // empty resolves through the block explorer
	Events  []string
}

// Label is the short display name of the target.
func (t Target) Label() string {
	return ShortAddress(t.Address) + "@" + t.Network
}

// TrackedToken is a token whose USD price is refreshed every block.
type TrackedToken struct {
	Address string
	Network string
	Label   string
}

// Name returns the label, or the short address when no label is set.
func (t TrackedToken) Name() string {
	if t.Label != "" {
		return t.Label
	}
	return ShortAddress(t.Address)
}

// ContractEvent is a decoded log delivered to a watcher listener.
type ContractEvent struct {
	Contract    common.Address
	Network     string
	Name        string
	ListenerID  string
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Args        map[string]any
	Removed     bool
	ReceivedAt  time.Time
}

// Summary renders the event arguments as sorted key=value pairs.
func (e ContractEvent) Summary() string {
	keys := make([]string, 0, len(e.Args))
	for k := range e.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+FormatValue(e.Args[k]))
	}
	return strings.Join(parts, " ")
}

// PriceTick is the outcome of one price refresh.
type PriceTick struct {
	Token    TrackedToken
	PriceUSD decimal.Decimal
	Source   string
	Block    uint64
	Err      error
}

// GasTick is the gas price observed at a block.
type GasTick struct {
	Network string
	Gwei    decimal.Decimal
	Block   uint64
}

// ShortAddress abbreviates a hex address to 0x1234…abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// FormatValue renders a decoded ABI value for display.
func FormatValue(v any) string {
	switch x := v.(type) {
	case common.Address:
		return ShortAddress(x.Hex())
	case *big.Int:
		return x.String()
	case []byte:
		return "0x" + common.Bytes2Hex(x)
	case [32]byte:
		return common.Hash(x).Hex()
	default:
		return fmt.Sprint(v)
	}
}
