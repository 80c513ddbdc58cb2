package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/mpwizard/internal/fragments"
)

var fragmentsCmd = &cobra.Command{
	Use:     "fragments",
	Aliases: []string{"f", "list"},
	Short:   "List the fragment catalog",
	Long: `List every fragment the wizard can select, grouped by category.

Examples:
  mpwizard fragments                       # Table of all fragments
  mpwizard fragments --category monitors   # Only monitors
  mpwizard fragments --fields              # Include each fragment's fields
  mpwizard fragments -o yaml`,
	Args: cobra.NoArgs,
	RunE: runFragments,
}

var (
	fragmentsFormat   string
	fragmentsCategory string
	fragmentsFields   bool
)

func init() {
	rootCmd.AddCommand(fragmentsCmd)

	addFormatFlag(fragmentsCmd, &fragmentsFormat, "table", listFormats)
	fragmentsCmd.Flags().StringVar(&fragmentsCategory, "category", "", "Only list this category")
	fragmentsCmd.Flags().BoolVar(&fragmentsFields, "fields", false, "Include field definitions")
}

func runFragments(cmd *cobra.Command, args []string) error {
	lib := fragments.Default()

	defs := lib.All()
	if fragmentsCategory != "" {
		cat, err := fragments.ParseCategory(fragmentsCategory)
		if err != nil {
			return err
		}
		defs = lib.ByCategory(cat)
	}

	if fragmentsFormat == "table" {
		return printFragments(cmd.OutOrStdout(), defs, fragmentsFields)
	}

	if !fragmentsFields {
		trimmed := make([]fragments.Definition, len(defs))
		for i, d := range defs {
			trimmed[i] = *d
			trimmed[i].Fields = nil
		}

		return printStructured(cmd.OutOrStdout(), fragmentsFormat, trimmed)
	}

	return printStructured(cmd.OutOrStdout(), fragmentsFormat, defs)
}

func printFragments(w io.Writer, defs []*fragments.Definition, withFields bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tKEY\tNAME\tSOURCE")

	for _, d := range defs {
		source := "inline"
		if d.Template.IsFile() {
			source = d.Template.File
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Category, d.Key, d.DisplayName, source)

		if !withFields {
			continue
		}
		for _, f := range d.Fields {
			attrs := []string{string(f.Kind)}
			if f.Required {
				attrs = append(attrs, "required")
			}
			if f.Default != "" {
				attrs = append(attrs, "default="+f.Default)
			}
			fmt.Fprintf(tw, "\t  %s\t%s\t%s\n", f.ID, f.Label, strings.Join(attrs, ", "))
		}
	}

	return tw.Flush()
}
