package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"

	"github.com/conneroisu/mpwizard/internal/assembler"
)

// ValidationError is one finding from ValidateConfigWithDetails. Suggestions
// are printed as hints under the message.
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult collects the findings of a validation run. Warnings never
// make a result invalid.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

func (vr *ValidationResult) HasErrors() bool   { return len(vr.Errors) > 0 }
func (vr *ValidationResult) HasWarnings() bool { return len(vr.Warnings) > 0 }

func (vr *ValidationResult) fail(field string, value interface{}, msg string, hints ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: hints})
}

func (vr *ValidationResult) warn(field string, value interface{}, msg string, hints ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: hints})
}

// String renders errors then warnings, each under its own heading.
func (vr *ValidationResult) String() string {
	var b strings.Builder

	section := func(title string, items []ValidationError) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s:\n", title)
		for _, item := range items {
			fmt.Fprintf(&b, "  - %s: %s\n", item.Field, item.Message)
			for _, hint := range item.Suggestions {
				fmt.Fprintf(&b, "      hint: %s\n", hint)
			}
		}
	}

	section("Validation errors", vr.Errors)
	if vr.HasErrors() && vr.HasWarnings() {
		b.WriteString("\n")
	}
	section("Validation warnings", vr.Warnings)

	return b.String()
}

// configCheck inspects one section of a Config.
type configCheck func(cfg *Config, vr *ValidationResult)

var configChecks = []configCheck{
	checkFragments,
	checkAssembly,
	checkServerAddress,
	checkServerLimits,
	checkBuild,
}

// ValidateConfigWithDetails runs every section check and reports errors
// with hints, plus warnings for settings that work but are likely mistakes.
// Valid agrees with the error Load would return for the same values.
func ValidateConfigWithDetails(cfg *Config) *ValidationResult {
	vr := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}
	for _, check := range configChecks {
		check(cfg, vr)
	}
	vr.Valid = !vr.HasErrors()

	return vr
}

func checkFragments(cfg *Config, vr *ValidationResult) {
	f := &cfg.Fragments
	if err := validateFragmentsConfig(f); err != nil {
		vr.fail("fragments", f.Source, err.Error(),
			"Use 'embedded' to read the fragment files shipped with mpwizard",
			"Use 'dir' with fragments.dir pointing at a folder of .mpx files",
			"Use 'http' with fragments.base_url pointing at a running 'mpwizard serve'",
		)

		return
	}

	switch {
	case f.Source == SourceDir && !isDir(f.Dir):
		vr.warn("fragments.dir", f.Dir, "directory does not exist",
			"Create it with: mkdir -p "+f.Dir)
	case f.Source != SourceHTTP && f.BaseURL != "":
		vr.warn("fragments.base_url", f.BaseURL,
			fmt.Sprintf("ignored while fragments.source is %q", f.Source))
	}
}

var fourPartVersion = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

func checkAssembly(cfg *Config, vr *ValidationResult) {
	a := &cfg.Assembly
	if _, err := assembler.ParseDescriptionPolicy(a.DescriptionPolicy); err != nil {
		vr.fail("assembly.description_policy", a.DescriptionPolicy, err.Error(),
			"'new-only' drops the description from new packs that carry an alerting rule",
			"'always' also removes it when merging into an existing pack",
			"'never' keeps the description",
		)
	}

	if a.DefaultVersion != "" && !fourPartVersion.MatchString(a.DefaultVersion) {
		vr.warn("assembly.default_version", a.DefaultVersion,
			"version is not four numeric parts; merges will not bump it",
			"Use a version like 1.0.0.0")
	}
}

func checkServerAddress(cfg *Config, vr *ValidationResult) {
	s := &cfg.Server
	switch {
	case s.Port < 0 || s.Port > 65535:
		vr.fail("server.port", s.Port, fmt.Sprintf("port %d is not in valid range 0-65535", s.Port),
			"Pick a port above 1024, or 0 to let the system choose")
	case s.Port > 0 && s.Port < 1024:
		vr.warn("server.port", s.Port, "binding below 1024 needs elevated privileges")
	}

	if s.Host == "" {
		return
	}
	if err := checkHost(s.Host); err != nil {
		vr.fail("server.host", s.Host, err.Error(),
			"Use 'localhost' to serve this machine only",
			"Use '0.0.0.0' to listen on every interface",
		)
	}
}

func checkServerLimits(cfg *Config, vr *ValidationResult) {
	s := &cfg.Server
	switch {
	case s.RateLimit < 0 || s.RateBurst < 0:
		vr.fail("server.rate_limit", s.RateLimit, "rate limit and burst must not be negative")
	case s.RateLimit == 0:
		vr.warn("server.rate_limit", s.RateLimit, "API rate limiting is disabled")
	}

	for _, origin := range s.AllowedOrigins {
		if origin == "*" {
			vr.warn("server.allowed_origins", origin, "any origin may open a preview websocket",
				"List the exact origins that embed the preview")

			break
		}
	}
}

func checkBuild(cfg *Config, vr *ValidationResult) {
	if err := validateBuildConfig(&cfg.Build); err != nil {
		vr.fail("build", cfg.Build, err.Error(),
			"Set build.workers to 1 or more",
			"Keep build.output_dir relative and inside the project, e.g. 'dist'",
		)
	}
}

var hostLabels = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// checkHost accepts IP literals and DNS names.
func checkHost(host string) error {
	if net.ParseIP(host) != nil {
		return nil
	}
	if len(host) > 253 {
		return fmt.Errorf("host name longer than 253 characters")
	}
	if !hostLabels.MatchString(host) {
		return fmt.Errorf("%q is neither an IP address nor a host name", host)
	}

	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}
