package evm

import (
	"fmt"
	"math/big"
	"slices"

	"github.com/ava-labs/libevm/accounts/abi"
	"github.com/ava-labs/libevm/common"
	libevmtypes "github.com/ava-labs/libevm/core/types"

	"github.com/ava-labs/record-indexer/pkg/types"
)

const (
	argAuthor    = "author"
	argTimestamp = "timestamp"
	argContent   = "content"
)

// mapToRecords decodes logs into records in ascending on-chain order. Logs
// removed by a reorg are dropped.
func mapToRecords(event abi.Event, logs []libevmtypes.Log) ([]types.Record, error) {
	slices.SortStableFunc(logs, func(a, b libevmtypes.Log) int {
		if a.BlockNumber != b.BlockNumber {
			if a.BlockNumber < b.BlockNumber {
				return -1
			}
			return 1
		}
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		default:
			return 0
		}
	})

	records := make([]types.Record, 0, len(logs))
	for i := range logs {
		if logs[i].Removed {
			continue
		}
		r, err := mapToRecord(event, &logs[i])
		if err != nil {
			return nil, fmt.Errorf("decode log %s/%d: %w", logs[i].TxHash.Hex(), logs[i].Index, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func mapToRecord(event abi.Event, log *libevmtypes.Log) (types.Record, error) {
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return types.Record{}, fmt.Errorf("unexpected event signature")
	}

	fields := make(map[string]interface{}, len(event.Inputs))
	if err := event.Inputs.NonIndexed().UnpackIntoMap(fields, log.Data); err != nil {
		return types.Record{}, fmt.Errorf("unpack data: %w", err)
	}
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics)-1 != len(indexed) {
		return types.Record{}, fmt.Errorf("expected %d indexed topics, got %d", len(indexed), len(log.Topics)-1)
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
		return types.Record{}, fmt.Errorf("unpack topics: %w", err)
	}

	author, ok := fields[argAuthor].(common.Address)
	if !ok {
		return types.Record{}, fmt.Errorf("author has type %T, want address", fields[argAuthor])
	}
	timestamp, err := toInt64(fields[argTimestamp])
	if err != nil {
		return types.Record{}, fmt.Errorf("timestamp: %w", err)
	}
	content, ok := fields[argContent].(string)
	if !ok {
		return types.Record{}, fmt.Errorf("content has type %T, want string", fields[argContent])
	}

	return types.Record{
		Author:          author.Hex(),
		Timestamp:       timestamp,
		Content:         content,
		TransactionHash: log.TxHash.Hex(),
	}, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case *big.Int:
		if !n.IsInt64() {
			return 0, fmt.Errorf("%s overflows int64", n)
		}
		return n.Int64(), nil
	case uint64:
		if n > 1<<63-1 {
			return 0, fmt.Errorf("%d overflows int64", n)
		}
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
