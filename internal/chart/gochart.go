package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/KaramelBytes/csvglance/internal/utils"
	gochart "github.com/wcharczuk/go-chart/v2"
)

// Format is the image encoding written by FileSurface.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ParseFormat accepts png or svg (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "svg":
		return FormatSVG, nil
	}
	return "", fmt.Errorf("unsupported chart format: %s (use png|svg)", s)
}

func (f Format) provider() gochart.RendererProvider {
	if f == FormatSVG {
		return gochart.SVG
	}
	return gochart.PNG
}

const (
	defaultWidth  = 1024
	defaultHeight = 512
	barSpacing    = 6
)

// Draw renders a bar chart configuration as an image onto w.
func Draw(cfg Config, format Format, width, height int, w io.Writer) error {
	if cfg.Type != "bar" {
		return fmt.Errorf("unsupported chart type %q", cfg.Type)
	}
	if len(cfg.Data.Datasets) != 1 {
		return fmt.Errorf("expected exactly one dataset, got %d", len(cfg.Data.Datasets))
	}
	ds := cfg.Data.Datasets[0]
	if len(ds.Data) == 0 {
		return errors.New("dataset has no values")
	}
	if len(ds.Data) != len(cfg.Data.Labels) {
		return fmt.Errorf("labels/data length mismatch: %d != %d", len(cfg.Data.Labels), len(ds.Data))
	}
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	bars := make([]gochart.Value, len(ds.Data))
	lo, hi := 0.0, 0.0
	for i, v := range ds.Data {
		bars[i] = gochart.Value{Label: strconv.Itoa(cfg.Data.Labels[i]), Value: v}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		// all-zero data still needs a non-empty y range
		hi = lo + 1
	}

	bc := gochart.BarChart{
		Width:        width,
		Height:       height,
		BarWidth:     barWidthFor(width, len(bars)),
		BarSpacing:   barSpacing,
		UseBaseValue: true,
		BaseValue:    0,
		Background:   gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}
	if cfg.Options.Legend {
		bc.Title = ds.Label
	}
	if err := bc.Render(format.provider(), w); err != nil {
		return fmt.Errorf("go-chart: %w", err)
	}
	return nil
}

func barWidthFor(width, n int) int {
	usable := width - 120
	bw := usable/n - barSpacing
	if bw < 4 {
		return 4
	}
	if bw > 80 {
		return 80
	}
	return bw
}

// FileSurface draws each chart instance into a single image file.
// Destroying the instance removes the file, so at most one chart is ever on disk.
type FileSurface struct {
	Path   string
	Format Format
	Width  int
	Height int
}

// Create renders cfg and writes it atomically to Path.
func (s *FileSurface) Create(cfg Config) (Instance, error) {
	if s.Path == "" {
		return nil, errors.New("chart output path not set")
	}
	var buf bytes.Buffer
	if err := Draw(cfg, s.Format, s.Width, s.Height, &buf); err != nil {
		return nil, err
	}
	if err := utils.SafeWriteFile(s.Path, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write chart: %w", err)
	}
	return &fileInstance{path: s.Path}, nil
}

// Reset removes whatever chart file is at Path.
func (s *FileSurface) Reset() error {
	if s.Path == "" {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove chart: %w", err)
	}
	return nil
}

type fileInstance struct {
	path      string
	destroyed bool
}

func (f *fileInstance) Destroy() error {
	if f.destroyed {
		return nil
	}
	f.destroyed = true
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove chart: %w", err)
	}
	return nil
}
