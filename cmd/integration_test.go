package cmd

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/csvglance/internal/logging"
	"github.com/KaramelBytes/csvglance/internal/orchestrator"
	"github.com/KaramelBytes/csvglance/internal/server"
)

func startService(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(server.New(server.Config{}, logging.Discard()).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestCLI_UploadWritesChart(t *testing.T) {
	home := isolate(t)
	url := startService(t)
	csv := writeFile(t, filepath.Join(home, "prices.csv"), "name,price\na,$10\nb,bad\nc,$20\n")
	chartPath := filepath.Join(home, "out", "prices.svg")

	out := runCmd(t, "upload", csv, "--server", url, "-o", chartPath, "--format", "svg")

	if !strings.Contains(out, `✓ Chart of "price" (3 bars) written to `+chartPath) {
		t.Fatalf("unexpected outcome line:\n%s", out)
	}
	if !strings.Contains(out, "[SUMMARY]") || !strings.Contains(out, `"numericSummary"`) {
		t.Fatalf("expected summary dump, got:\n%s", out)
	}
	if !strings.Contains(out, "[PREVIEW]") || !strings.Contains(out, `"price": null`) {
		t.Fatalf("expected preview dump with null price, got:\n%s", out)
	}
	b, err := os.ReadFile(chartPath)
	if err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	if !strings.Contains(string(b), "<svg") {
		t.Fatalf("expected svg output")
	}
}

func TestCLI_UploadYAMLQuiet(t *testing.T) {
	home := isolate(t)
	url := startService(t)
	csv := writeFile(t, filepath.Join(home, "n.csv"), "v\n1\n2\n")
	chartPath := filepath.Join(home, "n.png")

	out := runCmd(t, "upload", csv, "--server", url, "-o", chartPath, "--dump", "yaml", "-q")

	if strings.Contains(out, "[SUMMARY]") {
		t.Fatalf("quiet mode should not dump:\n%s", out)
	}
	if !strings.Contains(out, `✓ Chart of "v" (2 bars)`) {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(chartPath); err != nil {
		t.Fatalf("png chart missing: %v", err)
	}
}

func TestCLI_UploadWithoutNumericColumns(t *testing.T) {
	home := isolate(t)
	url := startService(t)
	csv := writeFile(t, filepath.Join(home, "names.csv"), "name\nalice\nbob\n")
	chartPath := filepath.Join(home, "names.png")

	out := runCmd(t, "upload", csv, "--server", url, "-o", chartPath)

	if !strings.Contains(out, "⚠ "+orchestrator.StatusNoNumeric) {
		t.Fatalf("expected no-numeric notice, got:\n%s", out)
	}
	if _, err := os.Stat(chartPath); !os.IsNotExist(err) {
		t.Fatalf("no chart should be written, stat err=%v", err)
	}
}

func TestCLI_UploadServiceError(t *testing.T) {
	home := isolate(t)
	url := startService(t)
	empty := writeFile(t, filepath.Join(home, "empty.csv"), "")

	_, err := execute("upload", empty, "--server", url, "-o", filepath.Join(home, "c.png"))
	if err == nil {
		t.Fatalf("expected error for empty upload")
	}
	if err.Error() != "empty file" {
		t.Fatalf("expected service message, got %q", err.Error())
	}
}

func TestCLI_UploadRejectsBadFormat(t *testing.T) {
	home := isolate(t)
	csv := writeFile(t, filepath.Join(home, "a.csv"), "v\n1\n")
	if _, err := execute("upload", csv, "--format", "gif"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestCLI_AnalyzeMarkdownJSONAndHTML(t *testing.T) {
	home := isolate(t)
	csv := writeFile(t, filepath.Join(home, "hops.csv"), "variety,alpha (%)\nCascade,5.5\nCitra,12\nSaaz,3.5\n")

	md := runCmd(t, "analyze", csv)
	for _, want := range []string{"[DATASET SUMMARY]", "Rows: 3", "- alpha [%]: numeric", "Chart column: alpha (%)"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}

	js := runCmd(t, "analyze", csv, "--json")
	if !strings.Contains(js, `"column": "alpha (%)"`) || !strings.Contains(js, `"variety": "Cascade"`) {
		t.Fatalf("unexpected payload:\n%s", js)
	}

	htmlPath := filepath.Join(home, "report", "hops.html")
	out := runCmd(t, "analyze", csv, "--html", "-o", htmlPath)
	if !strings.Contains(out, "✓ Wrote analysis to") {
		t.Fatalf("unexpected output: %s", out)
	}
	b, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	if !strings.Contains(string(b), "<title>hops.csv</title>") || !strings.Contains(string(b), "<table>") {
		t.Fatalf("unexpected html:\n%s", b)
	}

	if _, err := execute("analyze", csv, "--html", "--json"); err == nil {
		t.Fatalf("expected --html/--json conflict")
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	home := isolate(t)

	runCmd(t, "config", "set", "preview_rows", "7")
	runCmd(t, "config", "set", "server_url", "http://example.test:9000/")
	if _, err := os.Stat(filepath.Join(home, ".csvglance", "config.yaml")); err != nil {
		t.Fatalf("config not saved: %v", err)
	}

	cfg = nil
	out := runCmd(t, "config", "show")
	if !strings.Contains(out, "preview_rows: 7\n") || !strings.Contains(out, "server_url: http://example.test:9000\n") {
		t.Fatalf("unexpected config show:\n%s", out)
	}
	if _, err := execute("config", "set", "preview_rows", "zero"); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := execute("config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestCLI_PersistentFlagsOverrideConfig(t *testing.T) {
	isolate(t)
	out := runCmd(t, "config", "show", "--retry-max", "7", "--http-timeout", "9")
	if !strings.Contains(out, "retry_max_attempts: 7\n") || !strings.Contains(out, "http_timeout_sec: 9\n") {
		t.Fatalf("flags did not override config:\n%s", out)
	}
	out = runCmd(t, "config", "show")
	if !strings.Contains(out, "retry_max_attempts: 3\n") {
		t.Fatalf("overrides leaked into the next run:\n%s", out)
	}
}

func TestCLI_ClearedUploadRemovesEarlierChart(t *testing.T) {
	home := isolate(t)
	url := startService(t)
	chartPath := filepath.Join(home, "chart.png")
	numbers := writeFile(t, filepath.Join(home, "n.csv"), "v\n1\n2\n")
	names := writeFile(t, filepath.Join(home, "names.csv"), "name\nalice\n")
	empty := writeFile(t, filepath.Join(home, "empty.csv"), "")

	runCmd(t, "upload", numbers, "--server", url, "-o", chartPath, "-q")
	if _, err := os.Stat(chartPath); err != nil {
		t.Fatalf("chart not written: %v", err)
	}
	out := runCmd(t, "upload", names, "--server", url, "-o", chartPath)
	if !strings.Contains(out, orchestrator.StatusNoNumeric) {
		t.Fatalf("expected no-numeric notice, got:\n%s", out)
	}
	if _, err := os.Stat(chartPath); !os.IsNotExist(err) {
		t.Fatalf("chart from the earlier run survived a cleared cycle: %v", err)
	}

	runCmd(t, "upload", numbers, "--server", url, "-o", chartPath, "-q")
	if _, err := execute("upload", empty, "--server", url, "-o", chartPath); err == nil {
		t.Fatalf("expected empty upload to fail")
	}
	if _, err := os.Stat(chartPath); !os.IsNotExist(err) {
		t.Fatalf("chart from the earlier run survived a failed cycle: %v", err)
	}
}
