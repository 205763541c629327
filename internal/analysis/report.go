package analysis

import (
	"fmt"
	"io"
	"strings"
)

const (
	maxCorrLines = 10
	maxCellWidth = 80
)

// Markdown renders the report as bracketed plain-text sections with a pipe
// table of sample rows.
func (r *Report) Markdown() string {
	var sb strings.Builder
	for _, section := range []func(io.Writer){
		r.writeSummary,
		r.writeSchema,
		r.writeCorrelations,
		r.writeSamples,
		r.writeNotes,
	} {
		section(&sb)
	}
	return sb.String()
}

func (r *Report) writeSummary(w io.Writer) {
	fmt.Fprintln(w, "[DATASET SUMMARY]")
	if r.Name != "" {
		fmt.Fprintf(w, "File: %s\n", r.Name)
	}
	if truncated := r.Processed > 0 && r.Processed < r.Rows; truncated {
		fmt.Fprintf(w, "Rows: ~%d (processed %d)\n", r.Rows, r.Processed)
	} else {
		fmt.Fprintf(w, "Rows: %d\n", r.Rows)
	}
	fmt.Fprintf(w, "Columns: %d\n", len(r.Cols))
	chart := r.ChartColumn
	if chart == "" {
		chart = "none (no numeric columns detected)"
	}
	fmt.Fprintf(w, "Chart column: %s\n", chart)
}

func (r *Report) writeSchema(w io.Writer) {
	fmt.Fprint(w, "\n[SCHEMA]\n")
	for i := range r.Cols {
		fmt.Fprintf(w, "- %s\n", r.Cols[i].describe())
	}
}

// describe is the one-line schema entry of a column.
func (c *ColumnSummary) describe() string {
	label := cleanLabel(c.Name)
	if c.Unit != "" {
		label += " [" + c.Unit + "]"
	}
	var missing float64
	if n := c.NonNull + c.Missing; n > 0 {
		missing = 100 * float64(c.Missing) / float64(n)
	}
	line := fmt.Sprintf("%s: %s (non-null %d, missing %.1f%%)", label, c.Kind, c.NonNull, missing)

	switch c.Kind {
	case "numeric":
		line += fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std)
		if c.OutlierThreshold <= 0 {
			break
		}
		line += fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold)
		if c.OutliersMaxAbsZ > 0 {
			line += fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ)
		}
	case "categorical":
		tops := make([]string, len(c.TopValues))
		for i, tv := range c.TopValues {
			tops[i] = fmt.Sprintf("%s(%d)", cleanCell(tv.Value), tv.Count)
		}
		line += ": top " + strings.Join(tops, ", ")
		if c.Unique > len(c.TopValues) {
			line += fmt.Sprintf("; unique=%d", c.Unique)
		}
	case "text":
		examples := make([]string, len(c.ExampleTexts))
		for i, ex := range c.ExampleTexts {
			examples[i] = cleanCell(ex)
		}
		line += ": e.g., " + strings.Join(examples, " | ")
	}
	return line
}

func (r *Report) writeCorrelations(w io.Writer) {
	if len(r.Corr) == 0 {
		return
	}
	fmt.Fprint(w, "\n[CORRELATIONS]\n")
	pairs := r.Corr
	if len(pairs) > maxCorrLines {
		pairs = pairs[:maxCorrLines]
	}
	for _, p := range pairs {
		fmt.Fprintf(w, "- %s ~ %s: r=%.3f\n", p.A, p.B, p.R)
	}
}

func (r *Report) writeSamples(w io.Writer) {
	width := len(r.Cols)
	if len(r.Samples) == 0 || width == 0 {
		return
	}
	fmt.Fprint(w, "\n[HEAD AND SAMPLE ROWS]\n")
	header := make([]string, width)
	for i := range r.Cols {
		header[i] = cleanLabel(r.Cols[i].Name)
	}
	writeTableRow(w, header)
	writeTableRow(w, strings.Split(strings.Repeat("---,", width-1)+"---", ","))
	for _, rec := range r.Samples {
		cells := make([]string, width)
		for i := 0; i < width && i < len(rec); i++ {
			cell := rec[i]
			if len(cell) > maxCellWidth {
				cell = cell[:maxCellWidth-3] + "..."
			}
			cells[i] = cleanCell(cell)
		}
		writeTableRow(w, cells)
	}
}

func writeTableRow(w io.Writer, cells []string) {
	fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
}

func (r *Report) writeNotes(w io.Writer) {
	if len(r.Warnings) == 0 {
		return
	}
	fmt.Fprint(w, "\n[NOTES]\n")
	for _, note := range r.Warnings {
		fmt.Fprintf(w, "- %s\n", note)
	}
}

func cleanLabel(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return "(unnamed)"
}

// cleanCell keeps a value on one line and out of the table's column syntax.
func cleanCell(s string) string {
	return strings.NewReplacer("\n", " ", "|", "/").Replace(s)
}
