package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/cantora-app/cantora/internal/engine"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable builds a rounded-style table from headers and string rows.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// printOutcome renders one scored attempt as terminal tables plus tips.
func printOutcome(out *engine.Outcome) {
	if out.AttemptID != "" {
		fmt.Printf("Attempt %s\n", out.AttemptID)
	}

	perf := out.Performance
	wordsCol := "—"
	if perf.Words != nil {
		wordsCol = strconv.Itoa(*perf.Words)
	}
	fmt.Println(renderTable(
		[]string{"Overall", perf.Label, "Timing", "Stability", "Words"},
		[][]string{{
			strconv.Itoa(perf.Overall),
			strconv.Itoa(perf.Pitch),
			strconv.Itoa(perf.Timing),
			strconv.Itoa(perf.Stability),
			wordsCol,
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	fb := out.Feedback
	if len(fb.Segments) > 0 {
		rows := make([][]string, 0, len(fb.Segments))
		for _, seg := range fb.Segments {
			rows = append(rows, []string{
				strconv.Itoa(seg.SegmentIndex),
				fmt.Sprintf("%.1f–%.1f s", seg.Start, seg.End),
				seg.Text,
				strconv.Itoa(seg.WordAccuracyPct) + "%",
				strings.Join(seg.MainIssues, "; "),
			})
		}
		fmt.Println(renderTable(
			[]string{"#", "Span", "Lyrics", "Accuracy", "Notes"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
		))
	}

	if fb.Message != "" {
		fmt.Println(fb.Message)
	}
	for _, w := range fb.Warnings {
		fmt.Println("Note:", w)
	}
	for _, tip := range fb.Tips {
		fmt.Println("Tip:", tip)
	}
	for _, tip := range perf.Tips {
		fmt.Println("Tip:", tip)
	}
	if fb.Drill.Note != "" {
		fmt.Println("Drill:", fb.Drill.Note)
	}
	fmt.Println()
}
