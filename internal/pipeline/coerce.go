package pipeline

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericPrefix matches the longest leading decimal number left after cleaning.
var numericPrefix = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)

// Coerce converts one cell into a number for charting.
// Null cells yield 0 and numeric cells are returned unchanged. Anything else is
// reduced to its digits, dots and minus signs and the longest leading number
// is parsed; failures, objects and out-of-range literals yield 0.
func Coerce(s Scalar) float64 {
	switch s.Kind() {
	case KindNull:
		return 0
	case KindNumber:
		return s.num
	case KindText:
		return parseLoose(s.text)
	case KindOther:
		text, ok := otherText(s.text)
		if !ok {
			return 0
		}
		return parseLoose(text)
	}
	return 0
}

// otherText renders a raw JSON bool, array or object the way a browser's
// String() does: arrays join their elements with commas and objects become
// "[object Object]". ok is false for a bare number literal, which only lands
// in Other when it is out of float64 range.
func otherText(raw string) (string, bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw, true
	}
	if _, isNum := v.(json.Number); isNum {
		return "", false
	}
	return jsString(v), true
}

func jsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	case json.Number:
		f, err := x.Float64()
		if err != nil || math.IsInf(f, 0) {
			return "Infinity"
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = jsString(e)
		}
		return strings.Join(parts, ",")
	}
	return "[object Object]"
}

// CleanNumeric strips every rune except ASCII digits, '.' and '-'.
func CleanNumeric(raw string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)
}

// parseLoose is a best-effort extraction: "$1,200" -> 1200, "45%" -> 45.
func parseLoose(raw string) float64 {
	m := numericPrefix.FindString(CleanNumeric(raw))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
