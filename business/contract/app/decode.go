package app

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/chainkit/business/contract/domain"
)

var errEventMismatch = errors.New("log topic does not match event")

func errUnknownMethod(name string) error {
	return fmt.Errorf("method %q not in contract ABI", name)
}

// eventByTopic finds the ABI event for a log's first topic.
func (b *bound) eventByTopic(lg types.Log) (abi.Event, bool) {
	if len(lg.Topics) == 0 {
		return abi.Event{}, false
	}
	ev, err := b.abi.EventByID(lg.Topics[0])
	if err != nil {
		return abi.Event{}, false
	}
	return *ev, true
}

// decodeLog decodes a log emitted for ev into a domain event.
func decodeLog(ev abi.Event, lg types.Log) (domain.Event, error) {
	if !ev.Anonymous && (len(lg.Topics) == 0 || lg.Topics[0] != ev.ID) {
		return domain.Event{}, errEventMismatch
	}

	args := make(map[string]any, len(ev.Inputs))
	if err := ev.Inputs.UnpackIntoMap(args, lg.Data); err != nil {
		return domain.Event{}, fmt.Errorf("decode %s data: %w", ev.Name, err)
	}

	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if len(indexed) > 0 {
		topics := lg.Topics
		if !ev.Anonymous {
			topics = topics[1:]
		}
		if err := abi.ParseTopicsIntoMap(args, indexed, topics); err != nil {
			return domain.Event{}, fmt.Errorf("decode %s topics: %w", ev.Name, err)
		}
	}

	return domain.Event{
		Name:        ev.Name,
		Args:        args,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
		LogIndex:    lg.Index,
		Address:     lg.Address,
		Removed:     lg.Removed,
	}, nil
}

// decodeReceiptLogs decodes the logs the bound contract emitted; unknown
// topics and foreign addresses are skipped.
func (b *bound) decodeReceiptLogs(logs []*types.Log) []domain.Event {
	var out []domain.Event
	for _, lg := range logs {
		if lg == nil || lg.Address != b.address {
			continue
		}
		ev, ok := b.eventByTopic(*lg)
		if !ok {
			continue
		}
		decoded, err := decodeLog(ev, *lg)
		if err != nil {
			continue
		}
		out = append(out, decoded)
	}
	return out
}
