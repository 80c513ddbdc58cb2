// Package cmd provides the command-line interface for mpwizard.
//
// Configuration is read, in order of increasing precedence, from defaults,
// a .mpwizard.yml file, MPWIZARD_ prefixed environment variables and
// command-line flags.
//
// Environment Variables:
//
//	MPWIZARD_CONFIG_FILE: Path to custom configuration file
//	MPWIZARD_SERVER_PORT: Override server port
//	MPWIZARD_FRAGMENTS_SOURCE: embedded, dir or http
//	And others following the MPWIZARD_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/mpwizard/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mpwizard",
	Short: "Build SCOM Management Pack XML from fragment templates",
	Long: `mpwizard assembles System Center Operations Manager management packs from a
catalog of fragment templates. A session (a state file, the interactive wizard or
the preview server) selects fragments and fills in their fields; mpwizard turns it
into a complete management pack or merges it into an existing one.

Quick Start:
  mpwizard init pack.yaml          Answer the wizard and save a state file
  mpwizard generate pack.yaml      Write {CompanyID}.{AppName}.xml
  mpwizard serve                   Edit sessions in the browser with live preview
  mpwizard fragments               List the fragment catalog`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .mpwizard.yml, can also use MPWIZARD_CONFIG_FILE env var)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("fragments-dir", "", "read fragment files from this directory")
	flags.String("fragments-url", "", "fetch fragment files from this base URL")

	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("fragments.dir", flags.Lookup("fragments-dir"))
	_ = viper.BindPFlag("fragments.base_url", flags.Lookup("fragments-url"))
}

// initConfig locates the config file and enables environment overrides.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("MPWIZARD_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".mpwizard")
	}

	viper.SetEnvPrefix("MPWIZARD")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file leaves the defaults in place
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// A fragment location given on the command line selects its source
	flags := rootCmd.PersistentFlags()
	switch {
	case flags.Changed("fragments-url"):
		viper.Set("fragments.source", config.SourceHTTP)
	case flags.Changed("fragments-dir"):
		viper.Set("fragments.source", config.SourceDir)
	}
}
