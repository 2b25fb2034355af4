package domain

import "github.com/ethereum/go-ethereum/common"

// Event is a decoded contract log.
type Event struct {
	Name        string
	Args        map[string]any
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Address     common.Address
	// Removed is set when the log was dropped by a chain reorganisation.
	Removed bool
}

// EventCallback receives events for one listener, in node delivery order.
type EventCallback func(Event)

// EventFilter restricts a subscription by indexed argument values. Indexed[i]
// lists the accepted values of the i-th indexed parameter; nil matches any.
type EventFilter struct {
	Indexed [][]any
}

// PastEventsQuery is a historical log query. Nil FromBlock means genesis and
// nil ToBlock means the chain head.
type PastEventsQuery struct {
	FromBlock *uint64
	ToBlock   *uint64
	Indexed   [][]any
}
