package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/mpwizard/internal/assembler"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <existing.xml>",
	Short: "Show what an existing management pack contains",
	Long: `Read an existing management pack and show its identity, version and the
classes it discovers, with the discovery method inferred for each class.

Examples:
  mpwizard inspect ACME.Widget.xml
  mpwizard inspect ACME.Widget.xml -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var inspectFormat string

func init() {
	rootCmd.AddCommand(inspectCmd)

	addFormatFlag(inspectCmd, &inspectFormat, "table", listFormats)
}

func runInspect(cmd *cobra.Command, args []string) error {
	imp, err := readImported(args[0])
	if err != nil {
		return err
	}

	if inspectFormat == "table" {
		return printImported(cmd.OutOrStdout(), imp)
	}

	return printStructured(cmd.OutOrStdout(), inspectFormat, imp)
}

func printImported(w io.Writer, imp *assembler.ImportedDocument) error {
	fmt.Fprintf(w, "Pack:    %s\n", imp.RootIdentifier)
	fmt.Fprintf(w, "Version: %s\n\n", imp.Version)

	if len(imp.DiscoveredClasses) == 0 {
		fmt.Fprintln(w, "No classes defined.")

		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tBASE\tDISCOVERY")
	for _, c := range imp.DiscoveredClasses {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.BaseType, c.InferredDiscoveryKind)
	}

	return tw.Flush()
}
