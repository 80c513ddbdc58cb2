package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/mpwizard/internal/generator"
)

var generateCmd = &cobra.Command{
	Use:     "generate <state.yaml>",
	Aliases: []string{"g"},
	Short:   "Generate a management pack from a state file",
	Long: `Generate a management pack from a YAML or JSON state file.

Without --merge a new pack is written. With --merge the selected fragments are
added to an existing pack, its version is bumped and everything it already
contains is kept as it was.

Examples:
  mpwizard generate pack.yaml                      # Write ACME.Widget.xml
  mpwizard generate pack.yaml -o -                 # Print to stdout
  mpwizard generate pack.yaml --merge ACME.Widget.xml -o ACME.Widget.xml
  mpwizard generate pack.yaml --deploy-script Deploy-MP.ps1 --management-group scom01`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var (
	generateOutput          string
	generateMerge           string
	generateDeployScript    string
	generateManagementGroup string
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Output file, '-' for stdout (default {CompanyID}.{AppName}.xml)")
	generateCmd.Flags().StringVar(&generateMerge, "merge", "", "Existing management pack to merge into")
	generateCmd.Flags().StringVar(&generateDeployScript, "deploy-script", "", "Also write a PowerShell deployment script")
	generateCmd.Flags().StringVar(&generateManagementGroup, "management-group", "", "Management server the deployment script connects to")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	s, err := a.loadSession(args[0], generateMerge)
	if err != nil {
		return err
	}

	out, err := a.generator.Generate(cmd.Context(), s)
	if err != nil {
		return err
	}

	id, _ := s.Identity()
	target := generateOutput
	if target == "" {
		target = generator.Filename(id)
	}
	if err := writeFile(cmd.OutOrStdout(), target, out); err != nil {
		return err
	}
	if target != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", target)
	}

	if generateDeployScript != "" {
		script := generator.DeployScript(id, generateManagementGroup)
		if err := writeFile(cmd.OutOrStdout(), generateDeployScript, script); err != nil {
			return err
		}
		if generateDeployScript != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", generateDeployScript)
		}
	}

	return nil
}
