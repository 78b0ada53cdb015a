package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/kataras/tablewriter"
	"github.com/lensesio/tableprinter"

	"github.com/ava-labs/record-indexer/pkg/types"
)

type recordRow struct {
	Time    string `header:"time"`
	Author  string `header:"author"`
	Content string `header:"content"`
	TxHash  string `header:"transaction"`
}

func toRows(records []types.Record) []recordRow {
	rows := make([]recordRow, len(records))
	for i, r := range records {
		rows[i] = recordRow{
			Time:    time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339),
			Author:  r.Author,
			Content: r.Content,
			TxHash:  r.TransactionHash,
		}
	}
	return rows
}

// writeRecords prints records in the requested format: a bordered table, or
// one JSON object per line.
func writeRecords(w io.Writer, format string, records []types.Record) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
		return nil
	case formatTable:
		if len(records) == 0 {
			_, err := fmt.Fprintln(w, "no records found")
			return err
		}
		printer := tableprinter.New(w)
		printer.BorderTop, printer.BorderBottom, printer.BorderLeft, printer.BorderRight = true, true, true, true
		printer.CenterSeparator = "│"
		printer.ColumnSeparator = "│"
		printer.RowSeparator = "─"
		printer.HeaderFgColor = tablewriter.FgGreenColor
		printer.Print(toRows(records))
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
