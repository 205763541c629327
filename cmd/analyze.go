package cmd

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/csvglance/internal/analysis"
	"github.com/KaramelBytes/csvglance/internal/parser"
	"github.com/KaramelBytes/csvglance/internal/utils"
	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	anaOutputPath string
	anaHTML       bool
	anaJSON       bool
	anaProfile    profileFlags
)

// profileFlags are shared by analyze and analyze-batch.
type profileFlags struct {
	sampleRows int
	maxRows    int
	corr       bool
	decimal    string
	thousands  string
	outliers   bool
	outlierThr float64
	sheetName  string
}

func (f *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	cmd.Flags().IntVar(&f.sampleRows, "sample-rows", 5, "number of sample rows to include")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 100000, "maximum rows to process (0 = unlimited)")
	cmd.Flags().BoolVar(&f.corr, "correlations", false, "compute Pearson correlations among numeric columns")
	cmd.Flags().BoolVar(&f.outliers, "outliers", true, "compute robust outlier counts (MAD)")
	cmd.Flags().Float64Var(&f.outlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to analyze (default first sheet)")
}

func (f *profileFlags) options() (analysis.Options, error) {
	opt := analysis.DefaultOptions()
	if f.sampleRows > 0 {
		opt.SampleRows = f.sampleRows
	}
	opt.MaxRows = f.maxRows
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	opt.Correlations = f.corr
	opt.Outliers = f.outliers
	if f.outlierThr > 0 {
		opt.OutlierThreshold = f.outlierThr
	}
	return opt, nil
}

// readTable picks the reader by extension; --sheet-name only applies to XLSX.
func (f *profileFlags) readTable(path string) (*analysis.Table, error) {
	if f.sheetName != "" && strings.EqualFold(filepath.Ext(path), ".xlsx") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return parser.ReadXLSX(filepath.Base(path), data, f.sheetName)
	}
	return parser.ReadFile(path)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Profile a CSV/TSV/XLSX locally and print a Markdown report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if anaHTML && anaJSON {
			return fmt.Errorf("--html and --json are mutually exclusive")
		}
		opt, err := anaProfile.options()
		if err != nil {
			return err
		}
		tbl, err := anaProfile.readTable(args[0])
		if err != nil {
			return err
		}

		var out []byte
		switch {
		case anaJSON:
			c, err := currentConfig()
			if err != nil {
				return err
			}
			p := analysis.BuildPayload(tbl, analysis.PayloadOptions{PreviewRows: c.PreviewRows, NumericThreshold: c.NumericThreshold})
			if out, err = utils.PrettyJSON(p); err != nil {
				return err
			}
		case anaHTML:
			if out, err = markdownToHTML(tbl.Name, analysis.Profile(tbl, opt).Markdown()); err != nil {
				return err
			}
		default:
			out = []byte(analysis.Profile(tbl, opt).Markdown())
		}

		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// markdownToHTML wraps the rendered report in a standalone page.
func markdownToHTML(title, md string) ([]byte, error) {
	gm := goldmark.New(
		goldmark.WithExtensions(extension.Table),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)
	var body bytes.Buffer
	// bracketed section labels would otherwise run into the following lines
	if err := gm.Convert([]byte(strings.ReplaceAll(md, "]\n", "]\n\n")), &body); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n", html.EscapeString(title))
	b.Write(body.Bytes())
	b.WriteString("</body></html>\n")
	return b.Bytes(), nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report")
	analyzeCmd.Flags().BoolVar(&anaHTML, "html", false, "render the report as HTML")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "print the upload service payload instead of the report")
	anaProfile.register(analyzeCmd)
}
