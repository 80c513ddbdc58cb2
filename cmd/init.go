package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/mpwizard/internal/fragments"
	"github.com/conneroisu/mpwizard/internal/session"
)

var initCmd = &cobra.Command{
	Use:     "init [state.yaml]",
	Aliases: []string{"i"},
	Short:   "Answer the wizard and save a state file",
	Long: `Walk through the wizard on the terminal: identity, discovery, monitors and
rules. The answers are saved as a state file for generate, build and watch.

Examples:
  mpwizard init                 # Writes mpwizard.yaml
  mpwizard init widget.json     # JSON state file
  mpwizard init pack.yaml --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initForce bool

// defaultStateFile is written when init is given no path.
const defaultStateFile = "mpwizard.yaml"

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing state file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := defaultStateFile
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	s, err := session.NewWizard(fragments.Default(), cmd.InOrStdin(), cmd.OutOrStdout()).Run()
	if err != nil {
		return err
	}

	if err := session.SaveStateFile(path, s.State()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nState saved to %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "Next: mpwizard generate %s\n", path)

	return nil
}
