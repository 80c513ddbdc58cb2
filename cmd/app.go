package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/mpwizard/internal/assembler"
	"github.com/conneroisu/mpwizard/internal/config"
	"github.com/conneroisu/mpwizard/internal/fragments"
	"github.com/conneroisu/mpwizard/internal/generator"
	"github.com/conneroisu/mpwizard/internal/logging"
	"github.com/conneroisu/mpwizard/internal/processor"
	"github.com/conneroisu/mpwizard/internal/session"
)

// app bundles what every command builds from the configuration.
type app struct {
	cfg       *config.Config
	logger    logging.Logger
	lib       *fragments.Library
	files     fs.FS
	generator *generator.Generator
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return newApp(cfg, os.Stderr)
}

func newApp(cfg *config.Config, logOutput io.Writer) (*app, error) {
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		Output:    logOutput,
		Component: "mpwizard",
	})

	policy, err := assembler.ParseDescriptionPolicy(cfg.Assembly.DescriptionPolicy)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		lib:    fragments.Default(),
		files:  fragments.FS(),
	}

	var fetcher processor.Fetcher
	switch cfg.Fragments.Source {
	case config.SourceDir:
		a.files = os.DirFS(cfg.Fragments.Dir)
		fetcher = processor.FSFetcher{FS: a.files}
	case config.SourceHTTP:
		fetcher = processor.NewHTTPFetcher(cfg.Fragments.BaseURL, cfg.Fragments.LibraryDir, cfg.Fragments.Timeout)
	default:
		fetcher = processor.FSFetcher{FS: a.files}
	}

	a.generator = generator.New(a.lib,
		processor.New(fetcher, logger),
		assembler.New(policy),
		logger,
		generator.Options{DefaultVersion: cfg.Assembly.DefaultVersion})

	return a, nil
}

// loadSession reads a state file and, when mergePath is set, attaches the
// existing pack to merge into.
func (a *app) loadSession(statePath, mergePath string) (*session.Session, error) {
	st, err := session.LoadStateFile(statePath)
	if err != nil {
		return nil, err
	}

	s, err := session.FromState(a.lib, st)
	if err != nil {
		return nil, err
	}

	if mergePath != "" {
		imp, err := readImported(mergePath)
		if err != nil {
			return nil, err
		}
		s.Imported = imp
	}

	return s, nil
}

func readImported(path string) (*assembler.ImportedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return assembler.ParseImported(string(data))
}

// writeFile writes content to path, creating parent directories. A path of
// "-" writes to w instead.
func writeFile(w io.Writer, path, content string) error {
	if path == "-" {
		_, err := io.WriteString(w, content)

		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return os.WriteFile(path, []byte(content), 0o644)
}

// printStructured writes v as JSON or YAML.
func printStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()

		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
