package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/csvglance/internal/pipeline"
	"github.com/montanaflynn/stats"
)

// PayloadOptions controls the service answer built from a table.
type PayloadOptions struct {
	// PreviewRows caps the preview; 0 means 20.
	PreviewRows int
	// NumericThreshold is the share of rows that must parse after cleaning
	// for a text column to become numeric; 0 means 0.5.
	NumericThreshold float64
}

// DefaultPayloadOptions mirrors the service defaults.
func DefaultPayloadOptions() PayloadOptions {
	return PayloadOptions{PreviewRows: 20, NumericThreshold: 0.5}
}

// NumericStats summarizes the first numeric column.
type NumericStats struct {
	Column string  `json:"column"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// PayloadSummary is the "summary" object of an upload answer.
type PayloadSummary struct {
	Rows           int           `json:"rows"`
	Columns        []string      `json:"columns"`
	NumericSummary *NumericStats `json:"numericSummary"`
}

// Payload is the JSON body answered by POST /upload.
type Payload struct {
	Summary PayloadSummary `json:"summary"`
	Preview []Record       `json:"preview"`
}

// Record is one preview row; it marshals with keys in column order.
type Record struct {
	Keys   []string
	Values []any
}

func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		var v any
		if i < len(r.Values) {
			v = r.Values[i]
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

type columnKind int

const (
	kindText columnKind = iota
	kindNumber
	kindBool
)

// typedColumn holds one column after type inference; cells are nil,
// float64, bool or string.
type typedColumn struct {
	kind  columnKind
	cells []any
}

// BuildPayload types every column, coerces numeric-looking text columns and
// assembles the summary and preview.
func BuildPayload(t *Table, opt PayloadOptions) *Payload {
	if opt.PreviewRows <= 0 {
		opt.PreviewRows = 20
	}
	if opt.NumericThreshold <= 0 {
		opt.NumericThreshold = 0.5
	}
	cols := make([]typedColumn, len(t.Header))
	for j := range t.Header {
		cols[j] = inferColumn(t.Column(j), opt.NumericThreshold)
	}

	p := &Payload{
		Summary: PayloadSummary{Rows: t.Rows(), Columns: append([]string{}, t.Header...)},
		Preview: make([]Record, 0, min(opt.PreviewRows, t.Rows())),
	}
	for i := 0; i < t.Rows() && i < opt.PreviewRows; i++ {
		rec := Record{Keys: p.Summary.Columns, Values: make([]any, len(cols))}
		for j := range cols {
			rec.Values[j] = cols[j].cells[i]
		}
		p.Preview = append(p.Preview, rec)
	}
	for j, c := range cols {
		if c.kind != kindNumber {
			continue
		}
		p.Summary.NumericSummary = summarize(t.Header[j], c.cells)
		break
	}
	return p
}

// inferColumn types a column: all cells numbers (or missing) gives a number
// column, all cells booleans a bool column, anything else text. Text columns
// become numbers when at least threshold of rows parse once cleaned.
func inferColumn(raw []string, threshold float64) typedColumn {
	if c, ok := nativeNumbers(raw); ok {
		return c
	}
	if c, ok := nativeBools(raw); ok {
		return c
	}
	text := typedColumn{kind: kindText, cells: make([]any, len(raw))}
	coerced := typedColumn{kind: kindNumber, cells: make([]any, len(raw))}
	parsed := 0
	for i, v := range raw {
		if !IsMissing(v) {
			text.cells[i] = v
		}
		if f, err := strconv.ParseFloat(pipeline.CleanNumeric(v), 64); err == nil && finite(f) {
			coerced.cells[i] = f
			parsed++
		}
	}
	if len(raw) > 0 && float64(parsed)/float64(len(raw)) >= threshold {
		return coerced
	}
	return text
}

func nativeNumbers(raw []string) (typedColumn, bool) {
	c := typedColumn{kind: kindNumber, cells: make([]any, len(raw))}
	for i, v := range raw {
		if IsMissing(v) {
			continue
		}
		s := strings.TrimSpace(v)
		// ParseFloat also takes hex floats and digit separators
		if strings.ContainsAny(s, "xX_") {
			return typedColumn{}, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(f) {
			return typedColumn{}, false
		}
		c.cells[i] = f
	}
	return c, true
}

func nativeBools(raw []string) (typedColumn, bool) {
	c := typedColumn{kind: kindBool, cells: make([]any, len(raw))}
	for i, v := range raw {
		switch strings.TrimSpace(v) {
		case "True", "true", "TRUE":
			c.cells[i] = true
		case "False", "false", "FALSE":
			c.cells[i] = false
		default:
			return typedColumn{}, false
		}
	}
	return c, len(raw) > 0
}

// summarize returns nil when the column holds no values.
func summarize(name string, cells []any) *NumericStats {
	var data stats.Float64Data
	for _, v := range cells {
		if f, ok := v.(float64); ok {
			data = append(data, f)
		}
	}
	if data.Len() == 0 {
		return nil
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return nil
	}
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	return &NumericStats{Column: name, Mean: mean, Min: lo, Max: hi, Count: data.Len()}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
