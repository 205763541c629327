package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/csvglance/internal/analysis"
)

// Reader turns the raw bytes of an uploaded or local file into a table.
type Reader interface {
	CanRead(filename string) bool
	Read(name string, data []byte) (*analysis.Table, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

// ReadBytes selects a reader based on filename; unknown names are read as CSV.
func ReadBytes(name string, data []byte) (*analysis.Table, error) {
	if strings.EqualFold(filepath.Ext(name), ".xls") {
		return nil, fmt.Errorf("%s: %w (save as .xlsx or .csv)", filepath.Base(name), ErrUnsupported)
	}
	for _, r := range registry {
		if r.CanRead(name) {
			return r.Read(name, data)
		}
	}
	return csvReader{}.Read(name, data)
}

// ReadFile reads path from disk and parses it with ReadBytes.
func ReadFile(path string) (*analysis.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ReadBytes(filepath.Base(path), data)
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}

var (
	// ErrUnsupported indicates a format is not supported.
	ErrUnsupported = errors.New("unsupported table format")
	// ErrNoColumns is returned when no header row can be found.
	ErrNoColumns = errors.New("no columns to parse from file")
)
