package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/mpwizard/internal/generator"
	"github.com/conneroisu/mpwizard/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch <state.yaml>",
	Aliases: []string{"w"},
	Short:   "Regenerate a management pack whenever its state file changes",
	Long: `Generate the pack once, then again after every change to the state file.
Bursts of saves are coalesced.

Examples:
  mpwizard watch pack.yaml -o ACME.Widget.xml
  mpwizard watch pack.yaml --merge base.xml -o out.xml`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchOutput string
	watchMerge  string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "Output file (default {CompanyID}.{AppName}.xml)")
	watchCmd.Flags().StringVar(&watchMerge, "merge", "", "Existing management pack to merge into")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	statePath := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	regenerate := func(ctx context.Context) error {
		return a.regenerate(ctx, out, statePath, watchMerge, watchOutput)
	}

	// A broken state file is reported and watched until it is fixed
	if err := regenerate(ctx); err != nil {
		fmt.Fprintf(out, "Generation failed: %v\n", err)
	}

	fw, err := watcher.NewFileWatcher(a.cfg.Watch.Debounce, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddFilter(watcher.StateFileFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	if err := fw.AddFile(statePath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", statePath, err)
	}

	fw.AddHandler(func(ctx context.Context, _ []watcher.ChangeEvent) error {
		// Editors that save by rename report a delete and a create in one batch
		if _, err := os.Stat(statePath); err != nil {
			fmt.Fprintf(out, "%s was removed, waiting for it to return\n", statePath)

			return nil
		}

		return regenerate(ctx)
	})

	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Fprintf(out, "Watching %s (press Ctrl+C to stop)\n", statePath)
	<-ctx.Done()
	fmt.Fprintln(out, "Stopped watching")

	return nil
}

// regenerate loads the state file and writes the pack. It reports the
// written path on w.
func (a *app) regenerate(ctx context.Context, w io.Writer, statePath, mergePath, output string) error {
	s, err := a.loadSession(statePath, mergePath)
	if err != nil {
		return err
	}

	doc, err := a.generator.Generate(ctx, s)
	if err != nil {
		return err
	}

	target := output
	if target == "" {
		id, _ := s.Identity()
		target = generator.Filename(id)
	}
	if err := writeFile(w, target, doc); err != nil {
		return err
	}
	if target != "-" {
		fmt.Fprintf(w, "Wrote %s\n", target)
	}

	return nil
}
