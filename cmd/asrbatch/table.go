package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Count columns are right aligned; a
// non-zero limit truncates cells to that many runes.
type column struct {
	title string
	count bool
	limit int
}

const (
	failureMessageLimit = 80
	fileNameLimit       = 48
)

var (
	engineColumns = []column{{title: "Engine"}, {title: "Aliases"}, {title: "Kind"}, {title: "Description"}}

	cacheEntryColumns = []column{
		{title: "Fingerprint"},
		{title: "Engine"},
		{title: "Source", limit: fileNameLimit},
		{title: "Segments", count: true},
		{title: "Cached"},
	}
	cacheEngineColumns = []column{{title: "Engine"}, {title: "Entries", count: true}}

	resultColumns  = []column{{title: "Result"}, {title: "Count", count: true}}
	failureColumns = []column{
		{title: "File", limit: fileNameLimit},
		{title: "Kind"},
		{title: "Error", limit: failureMessageLimit},
	}
)

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.title
		align := text.AlignLeft
		if col.count {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		cells := make(table.Row, len(columns))
		for i, col := range columns {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			if col.limit > 0 {
				value = truncate(value, col.limit)
			}
			cells[i] = value
		}
		tw.AppendRow(cells)
	}
	return tw.Render()
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
