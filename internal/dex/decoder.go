package dex

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"pairScout/internal/model"
)

// ErrUnknownTopic is returned for logs whose topic0 the decoder does not handle.
var ErrUnknownTopic = errors.New("unknown topic0")

// Decoder decodes Uniswap V2 factory and pair logs.
type Decoder struct {
	pairABI    abi.ABI
	factoryABI abi.ABI
}

// NewDecoder builds a V2 decoder.
func NewDecoder() (*Decoder, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	factoryABI, err := V2FactoryABI()
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	return &Decoder{pairABI: pairABI, factoryABI: factoryABI}, nil
}

// PairCreatedTopic returns topic0 of the factory PairCreated event.
func (d *Decoder) PairCreatedTopic() common.Hash {
	return d.factoryABI.Events["PairCreated"].ID
}

// SwapTopic returns topic0 of the pair Swap event.
func (d *Decoder) SwapTopic() common.Hash {
	return d.pairABI.Events["Swap"].ID
}

// PairTopics returns topic0 of Swap, Mint and Burn, for a per-pair filter.
func (d *Decoder) PairTopics() []common.Hash {
	return []common.Hash{
		d.pairABI.Events["Swap"].ID,
		d.pairABI.Events["Mint"].ID,
		d.pairABI.Events["Burn"].ID,
	}
}

// DecodePairCreated decodes a factory PairCreated log.
func (d *Decoder) DecodePairCreated(log types.Log) (model.PairCreatedEvent, error) {
	event := d.factoryABI.Events["PairCreated"]
	if err := checkTopic0(event, log); err != nil {
		return model.PairCreatedEvent{}, err
	}

	var indexed struct {
		Token0 common.Address
		Token1 common.Address
	}
	if err := parseTopics(&indexed, event, log); err != nil {
		return model.PairCreatedEvent{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PairCreatedEvent{}, err
	}
	if len(values) != 2 {
		return model.PairCreatedEvent{}, fmt.Errorf("unexpected PairCreated values: %d", len(values))
	}
	pair, err := asAddress(values[0])
	if err != nil {
		return model.PairCreatedEvent{}, err
	}

	return model.PairCreatedEvent{
		Log:    logRef(log),
		Token0: indexed.Token0.Hex(),
		Token1: indexed.Token1.Hex(),
		Pair:   pair.Hex(),
	}, nil
}

// DecodeSwap decodes a pair Swap log.
func (d *Decoder) DecodeSwap(log types.Log) (model.SwapEvent, error) {
	event := d.pairABI.Events["Swap"]
	if err := checkTopic0(event, log); err != nil {
		return model.SwapEvent{}, err
	}

	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := parseTopics(&indexed, event, log); err != nil {
		return model.SwapEvent{}, err
	}

	amounts, err := unpackAmounts(event, log.Data, 4)
	if err != nil {
		return model.SwapEvent{}, err
	}

	return model.SwapEvent{
		Log:        logRef(log),
		Sender:     indexed.Sender.Hex(),
		Amount0In:  amounts[0],
		Amount1In:  amounts[1],
		Amount0Out: amounts[2],
		Amount1Out: amounts[3],
		To:         indexed.To.Hex(),
	}, nil
}

// DecodeMint decodes a pair Mint log.
func (d *Decoder) DecodeMint(log types.Log) (model.MintEvent, error) {
	event := d.pairABI.Events["Mint"]
	if err := checkTopic0(event, log); err != nil {
		return model.MintEvent{}, err
	}

	var indexed struct {
		Sender common.Address
	}
	if err := parseTopics(&indexed, event, log); err != nil {
		return model.MintEvent{}, err
	}

	amounts, err := unpackAmounts(event, log.Data, 2)
	if err != nil {
		return model.MintEvent{}, err
	}

	return model.MintEvent{
		Log:     logRef(log),
		Sender:  indexed.Sender.Hex(),
		Amount0: amounts[0],
		Amount1: amounts[1],
	}, nil
}

// DecodeBurn decodes a pair Burn log.
func (d *Decoder) DecodeBurn(log types.Log) (model.BurnEvent, error) {
	event := d.pairABI.Events["Burn"]
	if err := checkTopic0(event, log); err != nil {
		return model.BurnEvent{}, err
	}

	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := parseTopics(&indexed, event, log); err != nil {
		return model.BurnEvent{}, err
	}

	amounts, err := unpackAmounts(event, log.Data, 2)
	if err != nil {
		return model.BurnEvent{}, err
	}

	return model.BurnEvent{
		Log:     logRef(log),
		Sender:  indexed.Sender.Hex(),
		Amount0: amounts[0],
		Amount1: amounts[1],
		To:      indexed.To.Hex(),
	}, nil
}

// DecodePairEvent decodes any pair log into a *SwapEvent, *MintEvent or
// *BurnEvent based on topic0.
func (d *Decoder) DecodePairEvent(log types.Log) (interface{}, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	switch log.Topics[0] {
	case d.pairABI.Events["Swap"].ID:
		ev, err := d.DecodeSwap(log)
		if err != nil {
			return nil, err
		}
		return &ev, nil
	case d.pairABI.Events["Mint"].ID:
		ev, err := d.DecodeMint(log)
		if err != nil {
			return nil, err
		}
		return &ev, nil
	case d.pairABI.Events["Burn"].ID:
		ev, err := d.DecodeBurn(log)
		if err != nil {
			return nil, err
		}
		return &ev, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, log.Topics[0].Hex())
	}
}

func logRef(log types.Log) model.LogRef {
	return model.LogRef{
		Address:     log.Address.Hex(),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Removed:     log.Removed,
	}
}

func checkTopic0(event abi.Event, log types.Log) error {
	if len(log.Topics) == 0 {
		return fmt.Errorf("missing topics")
	}
	if log.Topics[0] != event.ID {
		return fmt.Errorf("%w: %s is not %s", ErrUnknownTopic, log.Topics[0].Hex(), event.Name)
	}
	return nil
}

func parseTopics(out interface{}, event abi.Event, log types.Log) error {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
	}
	if err := abi.ParseTopics(out, indexed, log.Topics[1:]); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func unpackAmounts(event abi.Event, data []byte, want int) ([]*big.Int, error) {
	values, err := unpackNonIndexed(event, data)
	if err != nil {
		return nil, err
	}
	if len(values) != want {
		return nil, fmt.Errorf("unexpected %s values: %d", event.Name, len(values))
	}
	out := make([]*big.Int, 0, want)
	for _, value := range values {
		amount, err := asBigInt(value)
		if err != nil {
			return nil, err
		}
		out = append(out, amount)
	}
	return out, nil
}
