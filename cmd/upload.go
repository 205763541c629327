package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/csvglance/internal/chart"
	"github.com/KaramelBytes/csvglance/internal/client"
	"github.com/KaramelBytes/csvglance/internal/orchestrator"
	"github.com/KaramelBytes/csvglance/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	upServer string
	upOutput string
	upFormat string
	upDump   string
	upQuiet  bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a file to the analysis service and chart its first numeric column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		format, err := chart.ParseFormat(firstNonEmpty(upFormat, c.ChartFormat))
		if err != nil {
			return err
		}
		dump, err := pipeline.ParseDumpFormat(firstNonEmpty(upDump, c.DumpFormat))
		if err != nil {
			return err
		}
		output := upOutput
		if output == "" {
			output = c.ChartOutput
			if ext := filepath.Ext(output); ext != "" && ext != "."+string(format) {
				output = strings.TrimSuffix(output, ext) + "." + string(format)
			}
		}

		cl := client.NewClient(
			firstNonEmpty(upServer, c.ServerURL),
			time.Duration(c.HTTPTimeoutSec)*time.Second,
			c.RetryMaxAttempts,
			millis(c.RetryBaseDelayMs),
			millis(c.RetryMaxDelayMs),
		).WithLogger(logger)
		surface := &chart.FileSurface{Path: output, Format: format, Width: c.ChartWidth, Height: c.ChartHeight}
		display := &writerDisplay{out: cmd.OutOrStdout(), quiet: upQuiet}
		orch := orchestrator.New(cl, chart.NewAdapter(surface, logger), display,
			orchestrator.WithDumpFormat(dump), orchestrator.WithLogger(logger))

		res := orch.RunCycle(cmd.Context(), orchestrator.Upload{Filename: filepath.Base(path), Content: content})
		switch res.State {
		case orchestrator.StateRendering:
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Chart of %q (%d bars) written to %s\n", res.Series.Label, res.Series.Len(), output)
		case orchestrator.StateCleared:
			fmt.Fprintf(cmd.OutOrStdout(), "⚠ %s\n", res.Status)
		case orchestrator.StateFailed:
			return &cycleError{res: res}
		}
		return nil
	},
}

// cycleError reports a failed cycle with its user-facing message.
type cycleError struct {
	res orchestrator.Result
}

func (e *cycleError) Error() string { return client.Message(e.res.Err) }
func (e *cycleError) Unwrap() error { return e.res.Err }

// writerDisplay prints dumps to a terminal. Error statuses are left to the
// command's return value.
type writerDisplay struct {
	out   io.Writer
	quiet bool
}

func (d *writerDisplay) Status(text string) {
	if d.quiet || text == "" || text == orchestrator.StatusNoNumeric || strings.HasPrefix(text, "Error: ") {
		return
	}
	fmt.Fprintln(d.out, text)
}

func (d *writerDisplay) Summary(text string) {
	if !d.quiet {
		fmt.Fprintf(d.out, "[SUMMARY]\n%s\n", text)
	}
}

func (d *writerDisplay) Preview(text string) {
	if !d.quiet {
		fmt.Fprintf(d.out, "[PREVIEW]\n%s\n", text)
	}
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&upServer, "server", "", "analysis service base URL (overrides server_url)")
	uploadCmd.Flags().StringVarP(&upOutput, "output", "o", "", "chart image path (overrides chart_output)")
	uploadCmd.Flags().StringVar(&upFormat, "format", "", "chart format: png|svg (overrides chart_format)")
	uploadCmd.Flags().StringVar(&upDump, "dump", "", "summary/preview format: json|yaml (overrides dump_format)")
	uploadCmd.Flags().BoolVarP(&upQuiet, "quiet", "q", false, "print only the outcome line")
}
