package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/KaramelBytes/csvglance/internal/analysis"
	"github.com/xuri/excelize/v2"
)

type xlsxReader struct{}

func (xlsxReader) CanRead(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

func (xlsxReader) Read(name string, data []byte) (*analysis.Table, error) {
	return ReadXLSX(name, data, "")
}

// ReadXLSX reads one worksheet; an empty sheet name selects the first one.
// Leading blank rows are skipped and the first non-blank row is the header.
func ReadXLSX(name string, data []byte, sheet string) (*analysis.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoColumns
	}
	title := name
	if sheet == "" {
		sheet = sheets[0]
	} else {
		title = fmt.Sprintf("%s (sheet: %s)", name, sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	for len(rows) > 0 && blank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, ErrNoColumns
	}
	return analysis.NewTable(title, rows[0], rows[1:]), nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
