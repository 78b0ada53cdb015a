package evm

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/ava-labs/libevm/accounts/abi"

	"github.com/ava-labs/record-indexer/internal/chainclient"
)

// DefaultEventName is the contract event materialized into records.
const DefaultEventName = "Record"

//go:embed abi/record.json
var defaultABI []byte

// DefaultABI returns the ABI of
// `event Record(address indexed author, uint256 timestamp, string content)`.
func DefaultABI() []byte {
	return bytes.Clone(defaultABI)
}

// parseEvent extracts the named event from a JSON ABI. The event must carry
// author, timestamp and content arguments. author and timestamp decode from
// either topics or data; an indexed content only yields its hash and fails to
// decode.
func parseEvent(abiJSON []byte, name string) (abi.Event, error) {
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return abi.Event{}, chainclient.Permanent(fmt.Errorf("parse abi: %w", err))
	}
	event, ok := parsed.Events[name]
	if !ok {
		return abi.Event{}, chainclient.Permanent(fmt.Errorf("abi has no event %q", name))
	}
	for _, arg := range []string{argAuthor, argTimestamp, argContent} {
		if !hasArgument(event.Inputs, arg) {
			return abi.Event{}, chainclient.Permanent(fmt.Errorf("event %s has no %q argument", name, arg))
		}
	}
	return event, nil
}

func hasArgument(args abi.Arguments, name string) bool {
	for _, a := range args {
		if a.Name == name {
			return true
		}
	}
	return false
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	var indexed abi.Arguments
	for _, a := range args {
		if a.Indexed {
			indexed = append(indexed, a)
		}
	}
	return indexed
}
