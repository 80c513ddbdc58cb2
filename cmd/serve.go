package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/mpwizard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the wizard server with live preview",
	Long: `Start an HTTP server for editing wizard sessions in the browser. Every
change to a session pushes the regenerated management pack to connected
previews over a websocket. Fragment files are served under the library
directory so other mpwizard instances can fetch them over HTTP.

Examples:
  mpwizard serve                      # http://localhost:8080
  mpwizard serve --port 3000 --open   # Custom port, open a browser
  mpwizard serve --host 0.0.0.0       # Listen on all interfaces`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("open", false, "Open a browser once listening")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.open", serveCmd.Flags().Lookup("open"))
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.cfg, server.Options{
		Library:   a.lib,
		Generator: a.generator,
		Files:     a.files,
		Logger:    a.logger,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s:%d (press Ctrl+C to stop)\n",
		a.cfg.Server.Host, a.cfg.Server.Port)

	return srv.Start(ctx)
}
