package evm

import (
	"math/big"
	"testing"

	"github.com/ava-labs/libevm/common"
	libevmtypes "github.com/ava-labs/libevm/core/types"
	"github.com/stretchr/testify/require"
)

// indexedTimestampABI emits the timestamp as a topic instead of in the data.
const indexedTimestampABI = `[{"type":"event","name":"Record","anonymous":false,"inputs":[
	{"name":"author","type":"address","indexed":true},
	{"name":"timestamp","type":"uint256","indexed":true},
	{"name":"content","type":"string","indexed":false}]}]`

func TestMapToRecord_IndexedTimestamp(t *testing.T) {
	t.Parallel()

	event, err := parseEvent([]byte(indexedTimestampABI), DefaultEventName)
	require.NoError(t, err)

	author := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	data, err := event.Inputs.NonIndexed().Pack("hello")
	require.NoError(t, err)

	log := &libevmtypes.Log{
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(author.Bytes()),
			common.BigToHash(big.NewInt(1700000000)),
		},
		Data:   data,
		TxHash: common.HexToHash("0xabc"),
	}

	r, err := mapToRecord(event, log)
	require.NoError(t, err)
	require.Equal(t, author.Hex(), r.Author)
	require.Equal(t, int64(1700000000), r.Timestamp)
	require.Equal(t, "hello", r.Content)
	require.Equal(t, common.HexToHash("0xabc").Hex(), r.TransactionHash)
}

func TestMapToRecord_Errors(t *testing.T) {
	t.Parallel()

	event, err := parseEvent(defaultABI, DefaultEventName)
	require.NoError(t, err)
	author := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tests := []struct {
		name   string
		mutate func(l *libevmtypes.Log)
	}{
		{
			name:   "wrong signature",
			mutate: func(l *libevmtypes.Log) { l.Topics[0] = common.HexToHash("0xdead") },
		},
		{
			name:   "no topics",
			mutate: func(l *libevmtypes.Log) { l.Topics = nil },
		},
		{
			name:   "missing indexed author",
			mutate: func(l *libevmtypes.Log) { l.Topics = l.Topics[:1] },
		},
		{
			name:   "truncated data",
			mutate: func(l *libevmtypes.Log) { l.Data = l.Data[:10] },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := recordLog(t, 1, 0, "0x01", author, 5, "c")
			tt.mutate(&l)
			_, err := mapToRecord(event, &l)
			require.Error(t, err)
		})
	}
}

func TestToInt64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      interface{}
		want    int64
		wantErr bool
	}{
		{name: "big int", in: big.NewInt(1700000000), want: 1700000000},
		{name: "big int overflow", in: new(big.Int).Lsh(big.NewInt(1), 64), wantErr: true},
		{name: "uint64", in: uint64(42), want: 42},
		{name: "uint64 overflow", in: uint64(1 << 63), wantErr: true},
		{name: "uint32", in: uint32(7), want: 7},
		{name: "string", in: "7", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := toInt64(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultABI_IsCopy(t *testing.T) {
	t.Parallel()

	a := DefaultABI()
	a[0] = 'x'
	require.NotEqual(t, a[0], DefaultABI()[0])
}
