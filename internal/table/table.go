// Package table renders rows as a pipe-delimited text table.
package table

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

type align int

const (
	alignLeft align = iota
	alignRight
)

// Render writes headers and rows to w. Columns whose cells are all numeric
// are right-aligned, all others (including empty columns) left-aligned. Short rows are padded with
// empty cells.
func Render(w io.Writer, headers []string, rows [][]string) error {
	cols := len(headers)
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return nil
	}

	widths := make([]int, cols)
	aligns := make([]align, cols)
	for c := 0; c < cols; c++ {
		widths[c] = utf8.RuneCountInString(cell(headers, c))
		numeric, seen := true, false
		for _, row := range rows {
			v := cell(row, c)
			widths[c] = max(widths[c], utf8.RuneCountInString(v))
			if v == "" {
				continue
			}
			seen = true
			if !isNumber(v) {
				numeric = false
			}
		}
		if numeric && seen {
			aligns[c] = alignRight
		}
	}

	bw := bufio.NewWriter(w)
	writeRow(bw, headers, widths, aligns)
	writeSeparator(bw, widths, aligns)
	for _, row := range rows {
		writeRow(bw, row, widths, aligns)
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, row []string, widths []int, aligns []align) {
	w.WriteByte('|')
	for c, width := range widths {
		v := cell(row, c)
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(v))
		w.WriteByte(' ')
		if aligns[c] == alignRight {
			w.WriteString(pad)
			w.WriteString(v)
		} else {
			w.WriteString(v)
			w.WriteString(pad)
		}
		w.WriteString(" |")
	}
	w.WriteByte('\n')
}

func writeSeparator(w *bufio.Writer, widths []int, aligns []align) {
	w.WriteByte('|')
	for c, width := range widths {
		dashes := strings.Repeat("-", width+1)
		if aligns[c] == alignRight {
			w.WriteString(dashes + ":")
		} else {
			w.WriteString(":" + dashes)
		}
		w.WriteByte('|')
	}
	w.WriteByte('\n')
}

func cell(row []string, c int) string {
	if c < len(row) {
		return row[c]
	}
	return ""
}

func isNumber(v string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return err == nil
}
