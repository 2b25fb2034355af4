// Package domain contains the core domain types for the contract context.
package domain

import "strings"

// ContractConfig describes how to bind to a deployed contract.
type ContractConfig struct {
	Address string
	// ABI is the JSON interface. When empty it is fetched from the block explorer.
	ABI     string
	Network string
	// ChainID is used for signing; zero asks the node.
	ChainID         uint64
	PrivateKey      string
	ExplorerAPIKey  string
	ExplorerNetwork string
}

// HasABISource reports whether the config can produce an ABI: either inline
// or through explorer credentials.
func (c ContractConfig) HasABISource() bool {
	return strings.TrimSpace(c.ABI) != "" || c.UsesExplorer()
}

// UsesExplorer reports whether the ABI must come from the block explorer.
func (c ContractConfig) UsesExplorer() bool {
	return strings.TrimSpace(c.ABI) == "" && c.ExplorerAPIKey != "" && c.ExplorerNetwork != ""
}

// Key identifies a bound contract: network plus lowercase address.
func (c ContractConfig) Key() string {
	return BindingKey(c.Network, c.Address)
}

// BindingKey builds the key used to index bound contracts.
func BindingKey(network, address string) string {
	return strings.ToLower(network) + ":" + strings.ToLower(address)
}
