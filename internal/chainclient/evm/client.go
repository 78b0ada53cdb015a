package evm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/libevm/accounts/abi"
	"github.com/ava-labs/libevm/common"
	"github.com/ava-labs/libevm/common/hexutil"
	libevmtypes "github.com/ava-labs/libevm/core/types"

	corethrpc "github.com/ava-labs/coreth/rpc"
	subnetevmrpc "github.com/ava-labs/subnet-evm/rpc"

	"github.com/ava-labs/record-indexer/internal/chainclient"
	"github.com/ava-labs/record-indexer/pkg/metrics"
	"github.com/ava-labs/record-indexer/pkg/types"
)

// Supported RPC client flavors.
const (
	ClientTypeCoreth    = "coreth"
	ClientTypeSubnetEVM = "subnet-evm"
)

// JSON-RPC error codes that retrying cannot fix.
const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// Config selects the node and the contract event to read.
type Config struct {
	ClientType string // coreth or subnet-evm
	URL        string
	Contract   string
	ABI        []byte // JSON ABI; DefaultABI when empty
	EventName  string // DefaultEventName when empty
}

// Client reads Record events of one contract over JSON-RPC.
type Client struct {
	rpc      rpcCaller
	contract common.Address
	event    abi.Event
	metrics  *metrics.Metrics // nil if metrics disabled
}

var _ chainclient.EventSource = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithMetrics enables metrics collection for the client.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New validates cfg and dials the node. Invalid configuration is reported as
// chainclient.ErrPermanent.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if !common.IsHexAddress(cfg.Contract) {
		return nil, chainclient.Permanent(fmt.Errorf("invalid contract address %q", cfg.Contract))
	}
	abiJSON := cfg.ABI
	if len(abiJSON) == 0 {
		abiJSON = defaultABI
	}
	name := cfg.EventName
	if name == "" {
		name = DefaultEventName
	}
	event, err := parseEvent(abiJSON, name)
	if err != nil {
		return nil, err
	}

	rpc, err := dial(ctx, cfg.ClientType, cfg.URL)
	if err != nil {
		return nil, err
	}

	client := &Client{
		rpc:      rpc,
		contract: common.HexToAddress(cfg.Contract),
		event:    event,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func dial(ctx context.Context, clientType, url string) (rpcCaller, error) {
	if url == "" {
		return nil, chainclient.Permanent(errors.New("rpc url is required"))
	}
	switch clientType {
	case ClientTypeCoreth, "":
		c, err := corethrpc.DialContext(ctx, url)
		if err != nil {
			return nil, chainclient.Permanent(fmt.Errorf("dial coreth rpc: %w", err))
		}
		return c, nil
	case ClientTypeSubnetEVM:
		c, err := subnetevmrpc.DialContext(ctx, url)
		if err != nil {
			return nil, chainclient.Permanent(fmt.Errorf("dial subnet-evm rpc: %w", err))
		}
		return c, nil
	default:
		return nil, chainclient.Permanent(fmt.Errorf("unknown client type %q", clientType))
	}
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	start := time.Now()
	c.metrics.IncRPCInFlight()
	defer c.metrics.DecRPCInFlight()

	err := c.rpc.CallContext(ctx, result, method, args...)
	c.metrics.RecordRPCCall(method, err, time.Since(start).Seconds())
	return classify(err)
}

// classify marks JSON-RPC errors that point at a configuration problem as permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) {
		switch coded.ErrorCode() {
		case codeMethodNotFound, codeInvalidParams:
			return chainclient.Permanent(err)
		}
	}
	return err
}

// Head returns the latest block number.
func (c *Client) Head(ctx context.Context) (uint64, error) {
	var head hexutil.Uint64
	if err := c.call(ctx, &head, "eth_blockNumber"); err != nil {
		return 0, fmt.Errorf("get block number: %w", err)
	}
	return uint64(head), nil
}

// BlockTimestamp returns the timestamp of the block at height.
func (c *Client) BlockTimestamp(ctx context.Context, height uint64) (uint64, bool, error) {
	var header *struct {
		Timestamp hexutil.Uint64 `json:"timestamp"`
	}
	if err := c.call(ctx, &header, "eth_getBlockByNumber", hexutil.EncodeUint64(height), false); err != nil {
		return 0, false, fmt.Errorf("get block %d: %w", height, err)
	}
	if header == nil {
		return 0, false, nil
	}
	return uint64(header.Timestamp), true, nil
}

// QueryEvents returns the decoded Record events of the contract in [from, to].
func (c *Client) QueryEvents(ctx context.Context, from, to uint64) ([]types.Record, error) {
	filter := map[string]interface{}{
		"address":   c.contract,
		"fromBlock": hexutil.EncodeUint64(from),
		"toBlock":   hexutil.EncodeUint64(to),
		"topics":    [][]common.Hash{{c.event.ID}},
	}
	var logs []libevmtypes.Log
	if err := c.call(ctx, &logs, "eth_getLogs", filter); err != nil {
		return nil, fmt.Errorf("get logs [%d, %d]: %w", from, to, err)
	}

	records, err := mapToRecords(c.event, logs)
	if err != nil {
		c.metrics.IncError(metrics.ErrTypeDecode)
		// the filter pins address and signature, so a decode failure means the ABI is wrong
		return nil, chainclient.Permanent(err)
	}
	return records, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	c.rpc.Close()
}
