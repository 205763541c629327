package chart

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestDraw_PNGAndSVG(t *testing.T) {
	cfg := BarConfig(series("price", 10, 0, 20, -5))

	var png bytes.Buffer
	require.NoError(t, Draw(cfg, FormatPNG, 640, 320, &png))
	assert.True(t, bytes.HasPrefix(png.Bytes(), pngMagic))

	var svg bytes.Buffer
	require.NoError(t, Draw(cfg, FormatSVG, 640, 320, &svg))
	assert.Contains(t, svg.String(), "<svg")
}

func TestDraw_AllZeroValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Draw(BarConfig(series("z", 0, 0, 0)), FormatPNG, 0, 0, &buf))
	assert.NotZero(t, buf.Len())
}

func TestDraw_RejectsBadConfig(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Draw(Config{Type: "line"}, FormatPNG, 0, 0, &buf))
	assert.Error(t, Draw(Config{Type: "bar"}, FormatPNG, 0, 0, &buf))
	bad := BarConfig(series("a", 1, 2))
	bad.Data.Labels = bad.Data.Labels[:1]
	assert.Error(t, Draw(bad, FormatPNG, 0, 0, &buf))
}

func TestFileSurface_ReplaceAndClear(t *testing.T) {
	out := filepath.Join(t.TempDir(), "charts", "chart.png")
	a := NewAdapter(&FileSurface{Path: out, Format: FormatPNG, Width: 400, Height: 240}, nil)

	require.NoError(t, a.Render(series("a", 1, 2, 3)))
	first, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(first, pngMagic))

	require.NoError(t, a.Render(series("b", 5)))
	_, err = os.Stat(out)
	require.NoError(t, err)

	a.Clear()
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestFileSurface_ClearRemovesFileFromEarlierRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(out, pngMagic, 0o644))

	a := NewAdapter(&FileSurface{Path: out, Format: FormatPNG}, nil)
	a.Clear()

	assert.Equal(t, StateIdle, a.State())
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "stale chart should be removed")

	a.Clear()
	assert.Equal(t, StateIdle, a.State(), "clearing an empty surface is a no-op")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("SVG")
	require.NoError(t, err)
	assert.Equal(t, FormatSVG, f)
	_, err = ParseFormat("gif")
	assert.Error(t, err)
}
