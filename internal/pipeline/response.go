package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one preview record keyed by column name.
type Row map[string]Scalar

// UnmarshalJSON accepts objects; any other JSON value decodes to an empty row
// so a malformed preview entry contributes zeros instead of failing the cycle.
func (r *Row) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		*r = Row{}
		return nil
	}
	m := map[string]Scalar{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*r = Row(m)
	return nil
}

// NumericSummary is the service's pick of the chartable column.
type NumericSummary struct {
	Column string
}

// Summary keeps the service summary opaque apart from numericSummary.column.
type Summary struct {
	Fields         map[string]any
	NumericSummary *NumericSummary
}

func (s *Summary) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("decode summary: %w", err)
	}
	s.Fields = fields
	s.NumericSummary = nil
	ns, ok := fields["numericSummary"].(map[string]any)
	if !ok {
		return nil
	}
	switch col := ns["column"].(type) {
	case string:
		s.NumericSummary = &NumericSummary{Column: col}
	case json.Number:
		// integer headers are still addressable by their text
		s.NumericSummary = &NumericSummary{Column: col.String()}
	}
	return nil
}

func (s Summary) MarshalJSON() ([]byte, error) {
	if s.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.Fields)
}

// AnalysisResponse is the decoded body of one upload call.
type AnalysisResponse struct {
	Summary Summary `json:"summary"`
	Preview []Row   `json:"preview"`
	Error   string  `json:"error,omitempty"`
}

func (a *AnalysisResponse) UnmarshalJSON(b []byte) error {
	var wire struct {
		Summary json.RawMessage `json:"summary"`
		Preview json.RawMessage `json:"preview"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*a = AnalysisResponse{}
	if isPresent(wire.Summary) {
		if err := json.Unmarshal(wire.Summary, &a.Summary); err != nil {
			return err
		}
	}
	if isPresent(wire.Preview) {
		if err := json.Unmarshal(wire.Preview, &a.Preview); err != nil {
			return fmt.Errorf("decode preview: %w", err)
		}
	}
	if isPresent(wire.Error) {
		var msg string
		if err := json.Unmarshal(wire.Error, &msg); err != nil {
			msg = string(bytes.TrimSpace(wire.Error))
		}
		a.Error = msg
	}
	return nil
}

func isPresent(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && !bytes.Equal(t, []byte("null"))
}

// DecodeResponse parses a raw upload body.
func DecodeResponse(body []byte) (*AnalysisResponse, error) {
	var resp AnalysisResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}
