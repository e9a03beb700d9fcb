package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/keshav2232/viva/internal/render"
	"github.com/keshav2232/viva/internal/viva/analyzer"
	"github.com/keshav2232/viva/internal/viva/domain"
)

// fileAnalysis is one row of the analyze JSON output.
type fileAnalysis struct {
	Path     string                `json:"path"`
	Analysis domain.AnalysisResult `json:"analysis"`
	Rate     float64               `json:"rate"`
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <glob>...",
		Short: "Count filler words in transcript files",
		Long: `Run the filler analyzer over plain-text transcripts.
Patterns support ** (e.g. "transcripts/**/*.txt").`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			paths, err := expandGlobs(args)
			if err != nil {
				exitOnError(err)
			}
			if len(paths) == 0 {
				exitOnError(fmt.Errorf("no files match %v", args))
			}

			results, total, err := analyzeFiles(paths)
			if err != nil {
				exitOnError(err)
			}

			if jsonOut {
				printJSON(map[string]interface{}{"files": results, "total": total, "rate": total.Rate()})
				return
			}
			r := render.New(pretty)
			w := render.Stdout()
			for _, res := range results {
				w.Print(r.Analysis(res.Path, res.Analysis))
			}
			if len(results) > 1 {
				w.Print(r.Aggregate(len(results), total))
			}
		},
	}
}

// expandGlobs resolves each pattern, deduplicates and sorts the matches.
// A pattern without glob syntax is kept as a literal path.
func expandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		if !doublestar.ValidatePathPattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func analyzeFiles(paths []string) ([]fileAnalysis, domain.FillerStats, error) {
	total := domain.NewFillerStats()
	results := make([]fileAnalysis, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, total, fmt.Errorf("read %s: %w", p, err)
		}
		a := analyzer.Analyze(string(data))
		total.Add(a)
		results = append(results, fileAnalysis{Path: p, Analysis: a, Rate: a.Rate()})
	}
	return results, total, nil
}
