package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/chazu/forkvm/explore"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiDim    = "\x1b[2m"
)

var kindColor = map[explore.Kind]string{
	explore.Terminated: ansiGreen,
	explore.Failed:     ansiRed,
	explore.Exhausted:  ansiYellow,
	explore.Duplicate:  ansiDim,
}

// table renders outcomes as aligned columns. Widths are measured in
// terminal cells so symbolic results with wide runes stay aligned.
type table struct {
	color bool
	rows  [][]string
	kinds []explore.Kind
}

var tableHeader = []string{"PATH", "KIND", "RESULT", "CONSTRAINT", "STEPS"}

func newTable(color bool, outcomes []explore.Outcome) *table {
	t := &table{color: color}
	for _, o := range outcomes {
		result := ""
		switch {
		case o.Error != "":
			result = o.Error
		case o.Result != nil:
			result = fmt.Sprint(o.Result)
		}
		constraint := o.Constraint
		if constraint == "" {
			constraint = "-"
		}
		t.rows = append(t.rows, []string{o.Lineage, string(o.Kind), result, constraint, fmt.Sprint(o.Steps)})
		t.kinds = append(t.kinds, o.Kind)
	}
	return t
}

func (t *table) widths() []int {
	w := make([]int, len(tableHeader))
	for i, h := range tableHeader {
		w[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			w[i] = max(w[i], runewidth.StringWidth(cell))
		}
	}
	return w
}

func (t *table) paint(s, code string) string {
	if !t.color || code == "" {
		return s
	}
	return code + s + ansiReset
}

func (t *table) line(cells []string, widths []int, style func(i int, padded string) string) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		padded := cell
		if i < len(cells)-1 {
			padded = runewidth.FillRight(cell, widths[i])
		}
		b.WriteString(style(i, padded))
	}
	return strings.TrimRight(b.String(), " ")
}

// WriteTo writes the header and one line per outcome.
func (t *table) WriteTo(w io.Writer) (int64, error) {
	widths := t.widths()
	var b strings.Builder
	b.WriteString(t.line(tableHeader, widths, func(_ int, s string) string { return t.paint(s, ansiBold) }))
	b.WriteByte('\n')
	for r, row := range t.rows {
		kind := t.kinds[r]
		b.WriteString(t.line(row, widths, func(i int, s string) string {
			if i == 1 {
				return t.paint(s, kindColor[kind])
			}
			return s
		}))
		b.WriteByte('\n')
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
