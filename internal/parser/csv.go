package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/csvglance/internal/analysis"
)

// candidate delimiters in tie-break order
var delimiters = []rune{',', ';', '\t', '|'}

type csvReader struct{}

func (csvReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

// Read decodes data as UTF-8 dropping invalid bytes, sniffs the delimiter
// and parses the first row as header.
func (csvReader) Read(name string, data []byte) (*analysis.Table, error) {
	text := strings.TrimPrefix(strings.ToValidUTF8(string(data), ""), "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoColumns
	}
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = SniffDelimiter(name, text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoColumns
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	var records [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return analysis.NewTable(name, header, records), nil
}

// SniffDelimiter picks the candidate delimiter occurring most often in the
// first non-empty line. Files named .tsv are always tab separated.
func SniffDelimiter(name, text string) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	var line string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}
	best, bestN := ',', 0
	for _, d := range delimiters {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}
