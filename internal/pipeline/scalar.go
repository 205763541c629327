package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the variant held by a Scalar.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindText
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindOther:
		return "other"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Scalar is one preview cell as decoded from the analysis service.
// The zero value is Null, which is also what a missing row key yields.
type Scalar struct {
	kind Kind
	num  float64
	text string // Text payload, or raw JSON for Other
}

// Null returns the absent/null scalar.
func Null() Scalar { return Scalar{} }

// Number wraps a numeric cell.
func Number(f float64) Scalar { return Scalar{kind: KindNumber, num: f} }

// Text wraps a string cell.
func Text(s string) Scalar { return Scalar{kind: KindText, text: s} }

// Other wraps any other JSON value (bool, array, object) by its raw encoding.
func Other(raw string) Scalar { return Scalar{kind: KindOther, text: raw} }

func (s Scalar) Kind() Kind { return s.kind }

// Float returns the numeric payload; ok is false unless Kind is KindNumber.
func (s Scalar) Float() (float64, bool) {
	if s.kind != KindNumber {
		return 0, false
	}
	return s.num, true
}

// String returns the textual form of the cell.
func (s Scalar) String() string {
	switch s.kind {
	case KindNull:
		return "null"
	case KindNumber:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	default:
		return s.text
	}
}

// UnmarshalJSON decodes any JSON value into the matching variant.
// Numbers that overflow float64 are kept as Other so they never surface as Inf.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("scalar: empty input")
	}
	switch c := b[0]; {
	case c == 'n':
		if string(b) != "null" {
			return fmt.Errorf("scalar: invalid literal %q", b)
		}
		*s = Null()
	case c == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return fmt.Errorf("scalar: %w", err)
		}
		*s = Text(str)
	case c == '-' || (c >= '0' && c <= '9'):
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			*s = Other(string(b))
			return nil
		}
		*s = Number(f)
	default:
		if !json.Valid(b) {
			return fmt.Errorf("scalar: invalid json %q", b)
		}
		*s = Other(string(b))
	}
	return nil
}

// MarshalJSON re-encodes the cell as it was received.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindNull:
		return []byte("null"), nil
	case KindNumber:
		return json.Marshal(s.num)
	case KindText:
		return json.Marshal(s.text)
	default:
		if s.text == "" {
			return []byte("null"), nil
		}
		return []byte(s.text), nil
	}
}
