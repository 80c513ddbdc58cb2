package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"

	"github.com/conneroisu/mpwizard/internal/generator"
)

var buildCmd = &cobra.Command{
	Use:     "build <state>...",
	Aliases: []string{"b"},
	Short:   "Generate management packs for several state files",
	Long: `Generate one management pack per state file. Sessions are independent and
run concurrently; a failing state file is reported and does not stop the others.

Examples:
  mpwizard build packs/*.yaml                  # Write into build.output_dir
  mpwizard build a.yaml b.yaml --out-dir out -j 8`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

var (
	buildOutDir  string
	buildWorkers int
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildOutDir, "out-dir", "", "Output directory (default build.output_dir)")
	buildCmd.Flags().IntVarP(&buildWorkers, "jobs", "j", 0, "Concurrent sessions (default build.workers)")
}

// buildResult is the outcome for one state file.
type buildResult struct {
	State    string
	Output   string
	Err      error
	Duration time.Duration
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	outDir := a.cfg.Build.OutputDir
	if buildOutDir != "" {
		outDir = buildOutDir
	}
	workers := a.cfg.Build.Workers
	if buildWorkers > 0 {
		workers = buildWorkers
	}

	results, err := a.buildAll(cmd.Context(), args, outDir, workers)
	if err != nil {
		return err
	}

	return printBuildSummary(cmd.OutOrStdout(), results)
}

// buildAll generates every state file on a pool of workers. Results come
// back in argument order.
func (a *app) buildAll(ctx context.Context, states []string, outDir string, workers int) ([]buildResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		a.logger.Error(ctx, fmt.Errorf("%v", p), "Build worker panicked")
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]buildResult, len(states))
	var wg sync.WaitGroup

	for i, state := range states {
		wg.Add(1)
		i, state := i, state
		task := func() {
			defer wg.Done()
			results[i] = a.buildOne(ctx, state, outDir)
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			results[i] = buildResult{State: state, Err: err}
		}
	}
	wg.Wait()

	return results, nil
}

func (a *app) buildOne(ctx context.Context, state, outDir string) buildResult {
	start := time.Now()
	res := buildResult{State: state}

	s, err := a.loadSession(state, "")
	if err != nil {
		res.Err = err

		return res
	}

	out, err := a.generator.Generate(ctx, s)
	if err != nil {
		res.Err = err

		return res
	}

	id, _ := s.Identity()
	res.Output = filepath.Join(outDir, generator.Filename(id))
	res.Err = writeFile(io.Discard, res.Output, out)
	res.Duration = time.Since(start)

	return res
}

func printBuildSummary(w io.Writer, results []buildResult) error {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s: %v\n", r.State, r.Err)

			continue
		}
		fmt.Fprintf(w, "ok   %s -> %s (%s)\n", r.State, r.Output, r.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(w, "\n%d built, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d state files failed", failed, len(results))
	}

	return nil
}
