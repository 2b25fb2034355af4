package asset

import "fmt"

// Asset is the metadata of a token or currency. Identity is the ID, not the symbol.
type Asset struct {
	id       ID
	symbol   string
	decimals uint8
}

// New creates an Asset. Decimals above 77 cannot be represented by a uint256 and are rejected.
func New(id ID, symbol string, decimals uint8) (*Asset, error) {
	if decimals > 77 {
		return nil, fmt.Errorf("asset: %s reports %d decimals", id, decimals)
	}
	if symbol == "" {
		symbol = "?"
	}
	return &Asset{id: id, symbol: symbol, decimals: decimals}, nil
}

// MustNew is New for package-level constants.
func MustNew(id ID, symbol string, decimals uint8) *Asset {
	a, err := New(id, symbol, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Asset) ID() ID          { return a.id }
func (a *Asset) Symbol() string  { return a.symbol }
func (a *Asset) Decimals() uint8 { return a.decimals }
func (a *Asset) String() string  { return a.symbol }
