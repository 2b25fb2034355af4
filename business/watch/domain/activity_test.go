package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestContractEventSummary(t *testing.T) {
	e := ContractEvent{Args: map[string]any{
		"value": big.NewInt(1500),
		"to":    common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		"from":  common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
	}}
	assert.Equal(t, "from=0xf39F…2266 to=0x7099…79C8 value=1500", e.Summary())
	assert.Empty(t, ContractEvent{}.Summary())
}

func TestLabels(t *testing.T) {
	target := Target{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Network: "mainnet"}
	assert.Equal(t, "0x6B17…1d0F@mainnet", target.Label())

	assert.Equal(t, "DAI", TrackedToken{Address: target.Address, Label: "DAI"}.Name())
	assert.Equal(t, "0x6B17…1d0F", TrackedToken{Address: target.Address}.Name())
	assert.Equal(t, "0x01", ShortAddress("0x01"))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "0xdead", FormatValue([]byte{0xde, 0xad}))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "42", FormatValue(uint8(42)))
}
