package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/KaramelBytes/csvglance/internal/analysis"
	"github.com/KaramelBytes/csvglance/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	abOutDir  string
	abJobs    int
	abQuiet   bool
	abProfile profileFlags
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Profile multiple CSV/TSV/XLSX files concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandInputs(args)
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		opt, err := abProfile.options()
		if err != nil {
			return err
		}
		var targets []string
		if abOutDir != "" {
			if err := utils.EnsureDir(abOutDir); err != nil {
				return fmt.Errorf("create out dir: %w", err)
			}
			targets = summaryPaths(abOutDir, files)
		}

		jobs := abJobs
		if jobs <= 0 {
			jobs = runtime.NumCPU()
		}
		out := cmd.OutOrStdout()
		var mu sync.Mutex
		reports := make([]string, len(files))
		total := len(files)

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(jobs)
		for i, path := range files {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if !abQuiet {
					mu.Lock()
					fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
					mu.Unlock()
				}
				tbl, err := abProfile.readTable(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				md := analysis.Profile(tbl, opt).Markdown()
				if targets == nil {
					reports[i] = md
					return nil
				}
				if err := utils.SafeWriteFile(targets[i], []byte(md)); err != nil {
					return fmt.Errorf("write summary: %w", err)
				}
				logger.Debug("wrote %s", targets[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("analyze-batch canceled")
			}
			return err
		}

		if targets != nil {
			if !abQuiet {
				fmt.Fprintf(out, "✓ Wrote %d summaries to %s\n", len(targets), abOutDir)
			}
			return nil
		}
		for _, md := range reports {
			fmt.Fprintln(out, md)
		}
		return nil
	},
}

// expandInputs resolves globs and literal paths, deduplicated and sorted.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// summaryPaths assigns <base>.summary.md per file, suffixing __2, __3, ...
// when names collide with each other or with existing files.
func summaryPaths(dir string, files []string) []string {
	taken := map[string]bool{}
	out := make([]string, len(files))
	for i, path := range files {
		base := utils.BaseName(path)
		if abProfile.sheetName != "" {
			base += "__sheet-" + slug(abProfile.sheetName)
		}
		cand := filepath.Join(dir, base+".summary.md")
		for idx := 2; taken[cand] || exists(cand); idx++ {
			cand = filepath.Join(dir, fmt.Sprintf("%s__%d.summary.md", base, idx))
		}
		taken[cand] = true
		out[i] = cand
	}
	return out
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else if r == ' ' || r == '-' || r == '_' {
			b.WriteRune('-')
		}
	}
	if ss := strings.Trim(b.String(), "-"); ss != "" {
		return ss
	}
	return "sheet"
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory for <name>.summary.md files (default: print to stdout)")
	analyzeBatchCmd.Flags().IntVarP(&abJobs, "jobs", "j", 0, "concurrent files (0 = number of CPUs)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
	abProfile.register(analyzeBatchCmd)
}
