/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package report renders batch results as markdown tables.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// Column is one table column. The zero Align means left aligned.
type Column struct {
	Header string
	Align  tw.Align
}

// Left returns left aligned columns for headers.
func Left(headers ...string) []Column {
	cols := make([]Column, 0, len(headers))
	for _, h := range headers {
		cols = append(cols, Column{Header: h})
	}
	return cols
}

func newTable(w io.Writer, columns []Column) *tablewriter.Table {
	headers := make([]string, 0, len(columns))
	align := make([]tw.Align, 0, len(columns))
	for _, c := range columns {
		headers = append(headers, c.Header)
		if c.Align == "" {
			c.Align = tw.AlignLeft
		}
		align = append(align, c.Align)
	}

	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft, PerColumn: align},
		},
		MaxWidth: 160,
		Behavior: tw.Behavior{TrimSpace: tw.On},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{Left: tw.On, Top: tw.Off, Right: tw.On, Bottom: tw.Off},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

// cell flattens multi-line text, such as git stderr, into one markdown cell.
func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// Write renders rows under columns. Every row must have one value per column.
func Write(w io.Writer, columns []Column, rows [][]string) error {
	table := newTable(w, columns)
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(columns))
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cell(v)
		}
		if err := table.Append(cells); err != nil {
			return err
		}
	}
	return table.Render()
}
