package pipeline

// NumericSeries is the chart input derived from one preview column.
type NumericSeries struct {
	Label  string    `json:"label"`
	Labels []int     `json:"labels"`
	Values []float64 `json:"values"`
}

// Len reports the number of points.
func (s NumericSeries) Len() int { return len(s.Values) }

// BuildSeries maps preview rows positionally onto 1-based labels and coerced values.
// Rows missing the column contribute 0.
func BuildSeries(preview []Row, column string) NumericSeries {
	out := NumericSeries{
		Label:  column,
		Labels: make([]int, len(preview)),
		Values: make([]float64, len(preview)),
	}
	for i, row := range preview {
		out.Labels[i] = i + 1
		out.Values[i] = Coerce(row[column])
	}
	return out
}
