package evm

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ava-labs/libevm/common"
	"github.com/ava-labs/libevm/common/hexutil"
	libevmtypes "github.com/ava-labs/libevm/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/record-indexer/internal/chainclient"
	"github.com/ava-labs/record-indexer/pkg/metrics"
	"github.com/ava-labs/record-indexer/pkg/types"
)

const testContract = "0xC415e346Ebb297Cf849E2323702C97E6DC01bee7"

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// testRPCServer answers JSON-RPC calls through handle, which returns either a
// result to marshal or an error. Every request is recorded.
type testRPCServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []rpcRequest
}

func newTestRPCServer(t *testing.T, handle func(req rpcRequest) (interface{}, *rpcError)) *testRPCServer {
	t.Helper()
	s := &testRPCServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		result, rpcErr := handle(req)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			raw, err := json.Marshal(result)
			require.NoError(t, err)
			resp.Result = raw
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testRPCServer) calls() []rpcRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rpcRequest(nil), s.requests...)
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := New(t.Context(), Config{ClientType: ClientTypeCoreth, URL: url, Contract: testContract}, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// recordLog builds a log as emitted by the default Record event.
func recordLog(t *testing.T, block uint64, index uint, txHash string, author common.Address, ts int64, content string) libevmtypes.Log {
	t.Helper()
	event, err := parseEvent(defaultABI, DefaultEventName)
	require.NoError(t, err)
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(ts), content)
	require.NoError(t, err)
	return libevmtypes.Log{
		Address:     common.HexToAddress(testContract),
		Topics:      []common.Hash{event.ID, common.BytesToHash(author.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash(txHash),
		Index:       index,
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "bad contract address",
			cfg:  Config{URL: "http://127.0.0.1:1", Contract: "0x1234"},
		},
		{
			name: "missing url",
			cfg:  Config{Contract: testContract},
		},
		{
			name: "unknown client type",
			cfg:  Config{ClientType: "geth", URL: "http://127.0.0.1:1", Contract: testContract},
		},
		{
			name: "malformed abi",
			cfg:  Config{URL: "http://127.0.0.1:1", Contract: testContract, ABI: []byte("{not json")},
		},
		{
			name: "event missing from abi",
			cfg:  Config{URL: "http://127.0.0.1:1", Contract: testContract, EventName: "Posted"},
		},
		{
			name: "event without content argument",
			cfg: Config{
				URL:      "http://127.0.0.1:1",
				Contract: testContract,
				ABI: []byte(`[{"type":"event","name":"Record","inputs":[
					{"name":"author","type":"address","indexed":true},
					{"name":"timestamp","type":"uint256","indexed":false}]}]`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(t.Context(), tt.cfg)
			require.ErrorIs(t, err, chainclient.ErrPermanent)
		})
	}
}

func TestNew_ClientTypes(t *testing.T) {
	t.Parallel()

	for _, clientType := range []string{ClientTypeCoreth, ClientTypeSubnetEVM} {
		t.Run(clientType, func(t *testing.T) {
			t.Parallel()
			srv := newTestRPCServer(t, func(rpcRequest) (interface{}, *rpcError) {
				return hexutil.Uint64(42), nil
			})
			c, err := New(t.Context(), Config{ClientType: clientType, URL: srv.URL, Contract: testContract})
			require.NoError(t, err)
			defer c.Close()

			head, err := c.Head(t.Context())
			require.NoError(t, err)
			require.Equal(t, uint64(42), head)
		})
	}
}

func TestClient_Head(t *testing.T) {
	t.Parallel()

	srv := newTestRPCServer(t, func(req rpcRequest) (interface{}, *rpcError) {
		require.Equal(t, "eth_blockNumber", req.Method)
		return hexutil.Uint64(0x2710), nil
	})
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	c := newTestClient(t, srv.URL, WithMetrics(m))
	head, err := c.Head(t.Context())
	require.NoError(t, err)
	require.Equal(t, uint64(10000), head)
	require.Equal(t, 1, testutil.CollectAndCount(reg, "recordindexer_rpc_calls_total"))
}

func TestClient_BlockTimestamp(t *testing.T) {
	t.Parallel()

	srv := newTestRPCServer(t, func(req rpcRequest) (interface{}, *rpcError) {
		require.Equal(t, "eth_getBlockByNumber", req.Method)
		require.Len(t, req.Params, 2)
		var number string
		require.NoError(t, json.Unmarshal(req.Params[0], &number))
		require.JSONEq(t, "false", string(req.Params[1]))
		if number == "0x1f4" {
			return map[string]interface{}{"number": number, "timestamp": "0x6553f100"}, nil
		}
		return nil, nil
	})
	c := newTestClient(t, srv.URL)

	ts, found, err := c.BlockTimestamp(t.Context(), 500)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(1700000000), ts)

	_, found, err = c.BlockTimestamp(t.Context(), 99999999)
	require.NoError(t, err)
	require.False(t, found)
}

func TestClient_QueryEvents(t *testing.T) {
	t.Parallel()

	author := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	logs := []libevmtypes.Log{
		recordLog(t, 95, 3, "0x03", author, 300, "third"),
		recordLog(t, 91, 0, "0x01", author, 100, "first"),
		recordLog(t, 95, 1, "0x02", author, 200, "second"),
	}
	removed := recordLog(t, 96, 0, "0x04", author, 400, "reorged")
	removed.Removed = true
	logs = append(logs, removed)

	srv := newTestRPCServer(t, func(req rpcRequest) (interface{}, *rpcError) {
		require.Equal(t, "eth_getLogs", req.Method)
		return logs, nil
	})
	c := newTestClient(t, srv.URL)

	got, err := c.QueryEvents(t.Context(), 90, 100)
	require.NoError(t, err)
	require.Equal(t, []types.Record{
		{Author: author.Hex(), Timestamp: 100, Content: "first", TransactionHash: common.HexToHash("0x01").Hex()},
		{Author: author.Hex(), Timestamp: 200, Content: "second", TransactionHash: common.HexToHash("0x02").Hex()},
		{Author: author.Hex(), Timestamp: 300, Content: "third", TransactionHash: common.HexToHash("0x03").Hex()},
	}, got)

	calls := srv.calls()
	require.Len(t, calls, 1)
	var filter struct {
		Address   common.Address  `json:"address"`
		FromBlock string          `json:"fromBlock"`
		ToBlock   string          `json:"toBlock"`
		Topics    [][]common.Hash `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(calls[0].Params[0], &filter))
	require.Equal(t, common.HexToAddress(testContract), filter.Address)
	require.Equal(t, "0x5a", filter.FromBlock)
	require.Equal(t, "0x64", filter.ToBlock)
	require.Equal(t, [][]common.Hash{{c.event.ID}}, filter.Topics)
}

func TestClient_QueryEventsEmptyRange(t *testing.T) {
	t.Parallel()

	srv := newTestRPCServer(t, func(rpcRequest) (interface{}, *rpcError) {
		return []interface{}{}, nil
	})
	c := newTestClient(t, srv.URL)

	got, err := c.QueryEvents(t.Context(), 0, 1999)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestClient_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		code          int
		wantPermanent bool
	}{
		{name: "method not found", code: -32601, wantPermanent: true},
		{name: "invalid params", code: -32602, wantPermanent: true},
		{name: "server error", code: -32000, wantPermanent: false},
		{name: "limit exceeded", code: -32005, wantPermanent: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestRPCServer(t, func(rpcRequest) (interface{}, *rpcError) {
				return nil, &rpcError{Code: tt.code, Message: tt.name}
			})
			c := newTestClient(t, srv.URL)

			_, err := c.QueryEvents(t.Context(), 1, 2)
			require.Error(t, err)
			require.Equal(t, tt.wantPermanent, chainclient.IsPermanent(err))
		})
	}
}

func TestClient_DecodeFailureIsPermanent(t *testing.T) {
	t.Parallel()

	author := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bad := recordLog(t, 10, 0, "0x10", author, 1, "x")
	bad.Data = []byte{0x01, 0x02}

	srv := newTestRPCServer(t, func(rpcRequest) (interface{}, *rpcError) {
		return []libevmtypes.Log{bad}, nil
	})
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	c := newTestClient(t, srv.URL, WithMetrics(m))

	_, err = c.QueryEvents(t.Context(), 10, 10)
	require.ErrorIs(t, err, chainclient.ErrPermanent)
	require.Equal(t, 1, testutil.CollectAndCount(reg, "recordindexer_errors_total"))
}
