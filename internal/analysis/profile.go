package analysis

import (
	"cmp"
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
)

// Options tunes Profile.
type Options struct {
	MaxRows    int // 0 = all rows
	SampleRows int
	// Zero separators are guessed per cell.
	DecimalSeparator   rune
	ThousandsSeparator rune
	Correlations       bool
	// Outliers flags cells whose MAD-based z-score exceeds OutlierThreshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions profiles up to 100k rows with outlier counts on.
func DefaultOptions() Options {
	return Options{MaxRows: 100000, SampleRows: 5, Outliers: true, OutlierThreshold: 3.5}
}

// Report is a markdown-friendly profile of a table.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Cols      []ColumnSummary
	Samples   [][]string
	Warnings  []string
	Corr      []PairCorr
	// ChartColumn is the column the upload service would summarize.
	ChartColumn string
}

// ColumnSummary is the inferred kind and statistics of one column.
// Kind is one of numeric, datetime, categorical, text or unknown.
type ColumnSummary struct {
	Name    string
	Kind    string
	Unit    string
	NonNull int
	Missing int
	Unique  int

	Min, Max, Mean, Std float64

	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64

	TopValues    []CategoryCount
	ExampleTexts []string

	values []float64
}

// CategoryCount is one frequent value.
type CategoryCount struct {
	Value string
	Count int
}

// PairCorr is the Pearson r of two numeric columns.
type PairCorr struct {
	A, B string
	R    float64
}

// Profile infers column kinds and statistics for t.
func Profile(t *Table, opt Options) *Report {
	rep := &Report{Name: t.Name, Rows: t.Rows()}
	n := t.Rows()
	if opt.MaxRows > 0 && n > opt.MaxRows {
		n = opt.MaxRows
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", n, t.Rows()))
	}
	rep.Processed = n
	k := opt.SampleRows
	if k <= 0 {
		k = 5
	}
	rep.Samples = append(rep.Samples, t.Records[:min(n, k)]...)

	for j, name := range t.Header {
		rep.Cols = append(rep.Cols, profileColumn(name, t.Column(j)[:n], opt))
	}
	if opt.Correlations {
		rep.Corr = pearsonPairs(rep.Cols)
	}
	if ns := BuildPayload(t, DefaultPayloadOptions()).Summary.NumericSummary; ns != nil {
		rep.ChartColumn = ns.Column
	}
	return rep
}

func profileColumn(header string, cells []string, opt Options) ColumnSummary {
	name, unit := splitUnits(header)
	s := ColumnSummary{Name: name, Unit: unit}
	var dtCnt, txtCnt int
	cats := map[string]int{}
	for _, raw := range cells {
		v := strings.TrimSpace(raw)
		if IsMissing(v) {
			s.Missing++
			continue
		}
		s.NonNull++
		if strings.Contains(v, "%") && s.Unit == "" {
			s.Unit = "%"
		}
		if x, ok := parseNumeric(v, opt); ok {
			s.values = append(s.values, x)
			continue
		}
		if looksLikeTime(v) {
			dtCnt++
			continue
		}
		txtCnt++
		if len(cats) <= 10000 && len(v) <= 64 {
			cats[v]++
		}
		if len(s.ExampleTexts) < 3 {
			s.ExampleTexts = append(s.ExampleTexts, v)
		}
	}

	numCnt := len(s.values)
	switch {
	case numCnt > 0 && numCnt >= dtCnt && numCnt >= txtCnt:
		s.Kind = "numeric"
		s.ExampleTexts = nil
		data := stats.Float64Data(s.values)
		s.Min, _ = stats.Min(data)
		s.Max, _ = stats.Max(data)
		s.Mean, _ = stats.Mean(data)
		if numCnt > 1 {
			s.Std, _ = stats.StandardDeviationSample(data)
		}
		if opt.Outliers && numCnt >= 8 {
			s.OutliersCount, s.OutliersMaxAbsZ, s.OutlierThreshold = robustOutliers(data, opt.OutlierThreshold)
		}
	case dtCnt > 0 && dtCnt >= txtCnt:
		s.Kind = "datetime"
		s.ExampleTexts = nil
	case len(cats) > 0:
		s.Kind = "categorical"
		s.ExampleTexts = nil
		s.Unique = len(cats)
		s.TopValues = topValues(cats, 8)
	case txtCnt > 0:
		s.Kind = "text"
	default:
		s.Kind = "unknown"
	}
	return s
}

// robustOutliers counts |z| > thr where z = 0.6745 (x - median) / MAD.
func robustOutliers(data stats.Float64Data, thr float64) (count int, maxAbsZ, threshold float64) {
	if thr <= 0 {
		thr = 3.5
	}
	median, err := stats.Median(data)
	if err != nil {
		return 0, 0, thr
	}
	mad, err := stats.MedianAbsoluteDeviation(data)
	if err != nil || mad == 0 {
		return 0, 0, thr
	}
	for _, v := range data {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			count++
		}
		maxAbsZ = math.Max(maxAbsZ, az)
	}
	return count, maxAbsZ, thr
}

// topValues orders by descending count, then value.
func topValues(counts map[string]int, limit int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, CategoryCount{Value: v, Count: n})
	}
	slices.SortFunc(out, func(a, b CategoryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Value, b.Value)
	})
	return out[:min(limit, len(out))]
}

// pearsonPairs pairs numeric columns of equal length and sorts by |r|.
// Columns with missing or non-numeric cells are not paired.
func pearsonPairs(cols []ColumnSummary) []PairCorr {
	var pairs []PairCorr
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			a, b := cols[i], cols[j]
			if a.Kind != "numeric" || b.Kind != "numeric" || len(a.values) != len(b.values) || len(a.values) < 3 {
				continue
			}
			if len(a.values) != a.NonNull+a.Missing || len(b.values) != b.NonNull+b.Missing {
				continue
			}
			r, err := stats.Pearson(a.values, b.values)
			if err != nil || math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, PairCorr{A: a.Name, B: b.Name, R: r})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return math.Abs(pairs[i].R) > math.Abs(pairs[j].R) })
	return pairs
}

var timeLayouts = []string{
	time.RFC3339,
	time.DateOnly, time.DateTime, "2006-01-02 15:04",
	"2006/01/02", "02/01/2006", "01/02/2006",
	"1/2/2006 15:04", "1/2/2006 15:04:05",
}

func looksLikeTime(s string) bool {
	return slices.ContainsFunc(timeLayouts, func(layout string) bool {
		_, err := time.Parse(layout, s)
		return err == nil
	})
}

// parseNumeric reads locale-formatted numbers such as "1.234,5" or "12 %".
func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.NewReplacer("%", "", "\u00a0", " ").Replace(strings.TrimSpace(s))
	raw = strings.TrimSpace(raw)
	dec, thou := opt.DecimalSeparator, opt.ThousandsSeparator
	if dec == 0 {
		var guessed rune
		if dec, guessed = guessSeparators(raw); guessed != 0 {
			thou = guessed
		}
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == dec:
			b.WriteByte('.')
		case thou != 0 && r == thou:
		case thou == 0 && (r == ',' || r == '.' || r == ' '):
		default:
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// guessSeparators treats the right-most of ',' and '.' as the decimal mark.
func guessSeparators(raw string) (dec, thou rune) {
	comma, dot := strings.LastIndexByte(raw, ','), strings.LastIndexByte(raw, '.')
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		return ',', '.'
	case comma >= 0 && dot >= 0:
		return '.', ','
	case comma >= 0:
		return ',', 0
	}
	return '.', 0
}

var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`),
	regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`),
	regexp.MustCompile(`^(.*?)[_\s-]+(mg/L|g/L|ug/L|°[CF]|%|ppm|ppb|USD|EUR|kg|km)$`),
}

// splitUnits separates a unit from a header: "Alpha (%)", "Mass [mg/L]", "Temp_°F".
func splitUnits(header string) (name, unit string) {
	name = strings.TrimSpace(header)
	for _, re := range unitPatterns {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if base, u := strings.TrimSpace(m[1]), strings.TrimSpace(m[2]); base != "" && u != "" {
			return base, u
		}
	}
	return name, ""
}
