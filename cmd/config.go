package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/mpwizard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect mpwizard configuration",
	Long: `Validate configuration files and show the resolved configuration.

Examples:
  mpwizard config validate                       # Validate .mpwizard.yml
  mpwizard config validate --file ci.yml --strict
  mpwizard config show --format json`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate an mpwizard configuration file.

This command checks for:
- A known fragment source and the location it needs
- A known description policy and a four-part default version
- Valid ports, hosts and allowed origins
- A positive number of build workers

Examples:
  mpwizard config validate                   # Validate .mpwizard.yml
  mpwizard config validate --file pack.yml   # Validate specific file
  mpwizard config validate --strict          # Treat warnings as errors`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Display the configuration after defaults, the configuration file,
environment variables and command-line flags have been applied.

Examples:
  mpwizard config show                 # YAML
  mpwizard config show --format json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var (
	configFile   string
	configFormat string
	configStrict bool
)

// defaultConfigFile is the file validate looks for without --file.
const defaultConfigFile = ".mpwizard.yml"

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: .mpwizard.yml)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
	AddFlagValidation(configShowCmd, "format", func(value string) error {
		return ValidateFormat(value, []string{"yaml", "json"})
	})
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	target := configFile
	if target == "" {
		target = defaultConfigFile
	}

	if _, err := os.Stat(target); os.IsNotExist(err) {
		if configFile == "" {
			return errors.New("no configuration file found. Use --file to specify a config file")
		}

		return fmt.Errorf("configuration file %s does not exist", target)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Validating configuration file: %s\n", target)

	cfg, err := readConfigFile(target)
	if err != nil {
		return err
	}

	validation := config.ValidateConfigWithDetails(cfg)
	if validation.Valid && !validation.HasWarnings() {
		fmt.Fprintln(w, "Configuration is valid.")

		return nil
	}

	fmt.Fprint(w, validation.String())

	if validation.HasErrors() {
		return fmt.Errorf("configuration validation failed with %d errors", len(validation.Errors))
	}

	if configStrict {
		return fmt.Errorf("configuration validation failed in strict mode with %d warnings", len(validation.Warnings))
	}

	fmt.Fprintf(w, "Configuration is valid with %d warnings. Use --strict to treat warnings as errors.\n",
		len(validation.Warnings))

	return nil
}

// readConfigFile reads path on its own viper instance on top of the
// defaults, without validating.
func readConfigFile(path string) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	cfg := config.Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return cfg, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	return printStructured(cmd.OutOrStdout(), configFormat, cfg)
}
