package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/record-indexer/pkg/types"
)

var outputRecords = []types.Record{
	{Author: "0x00000000000000000000000000000000000000aa", Timestamp: 1700000000, Content: "gm", TransactionHash: "0x01"},
	{Author: "0x00000000000000000000000000000000000000bb", Timestamp: 1700000060, Content: "gn", TransactionHash: "0x02"},
}

func TestWriteRecords_JSONLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeRecords(&buf, formatJSON, outputRecords))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		var got types.Record
		require.NoError(t, json.Unmarshal([]byte(line), &got))
		assert.Equal(t, outputRecords[i], got)
	}
}

func TestWriteRecords_Table(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeRecords(&buf, formatTable, outputRecords))

	out := strings.ToLower(buf.String())
	assert.Contains(t, out, "author")
	assert.Contains(t, out, "2023-11-14t22:13:20z")
	assert.Contains(t, out, "0x00000000000000000000000000000000000000bb")
	assert.Less(t, strings.Index(out, "gm"), strings.Index(out, "gn"), "rows keep the given order")
}

func TestWriteRecords_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeRecords(&buf, formatTable, nil))
	assert.Equal(t, "no records found\n", buf.String())

	buf.Reset()
	require.NoError(t, writeRecords(&buf, formatJSON, nil))
	assert.Empty(t, buf.String())

	require.Error(t, writeRecords(&buf, "xml", outputRecords))
}
