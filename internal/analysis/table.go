package analysis

import (
	"fmt"
	"strings"
)

// Table is a parsed tabular file: one header row followed by records.
// Records are normalized to the header width.
type Table struct {
	Name    string
	Header  []string
	Records [][]string
}

// NewTable normalizes header names and record widths.
func NewTable(name string, header []string, records [][]string) *Table {
	h := NormalizeHeader(header)
	out := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(h))
		copy(row, rec)
		out[i] = row
	}
	return &Table{Name: name, Header: h, Records: out}
}

// Rows returns the number of data records.
func (t *Table) Rows() int { return len(t.Records) }

// Column returns all cells of column j.
func (t *Table) Column(j int) []string {
	col := make([]string, len(t.Records))
	for i, rec := range t.Records {
		if j < len(rec) {
			col[i] = rec[j]
		}
	}
	return col
}

// NormalizeHeader trims names, labels blank ones "Unnamed: <i>" and
// disambiguates duplicates with ".1", ".2", ...
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	dupes := make(map[string]int)
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if used[name] {
			base := name
			for used[name] {
				dupes[base]++
				name = fmt.Sprintf("%s.%d", base, dupes[base])
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}

var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "<NA>": {}, "#N/A": {}, "#NA": {}, "#N/A N/A": {},
}

// IsMissing reports whether a raw cell counts as a missing value.
func IsMissing(v string) bool {
	_, ok := missingTokens[strings.TrimSpace(v)]
	return ok
}
