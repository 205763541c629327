package cmd

import (
	"fmt"
	"os"
	"time"

	cfgpkg "github.com/KaramelBytes/csvglance/internal/config"
	"github.com/KaramelBytes/csvglance/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool

	// positive values replace the matching config keys
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	cfg    *cfgpkg.Global
	logger = logging.NewStderr(logging.LevelWarn)
)

var rootCmd = &cobra.Command{
	Use:   "csvglance",
	Short: "csvglance: upload a CSV, read its summary and chart its first numeric column",
	Long: `csvglance sends CSV or XLSX files to an analysis service, prints the returned
summary and preview, and draws a bar chart of the first numeric column.
It can also run the analysis service itself and profile files locally.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.csvglance/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "log at DEBUG level")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "upload timeout in seconds (overrides http_timeout_sec)")
	pf.IntVar(&flagRetryMaxAttempts, "retry-max", 0, "upload attempts on timeouts, 429 and 5xx (overrides retry_max_attempts)")
	pf.IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "first retry backoff in ms (overrides retry_base_delay_ms)")
	pf.IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "retry backoff cap in ms (overrides retry_max_delay_ms)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// commands retry with defaults through currentConfig
		fmt.Fprintf(os.Stderr, "⚠ Warning: config not loaded: %v\n", err)
		return
	}
	cfg = c

	applyFlagOverrides(cfg)

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v; using INFO\n", err)
		level = logging.LevelInfo
	}
	if debug {
		level = logging.LevelDebug
	}
	logger = logging.NewStderr(level)
}

func applyFlagOverrides(c *cfgpkg.Global) {
	flags := rootCmd.PersistentFlags()
	for name, o := range map[string]struct{ from, to *int }{
		"http-timeout":  {&flagHTTPTimeoutSec, &c.HTTPTimeoutSec},
		"retry-max":     {&flagRetryMaxAttempts, &c.RetryMaxAttempts},
		"retry-base-ms": {&flagRetryBaseDelayMs, &c.RetryBaseDelayMs},
		"retry-max-ms":  {&flagRetryMaxDelayMs, &c.RetryMaxDelayMs},
	} {
		if flags.Changed(name) && *o.from > 0 {
			*o.to = *o.from
		}
	}
}

// currentConfig returns the loaded configuration, or defaults when loading failed.
func currentConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load("")
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
