// Package processor turns one fragment template and its resolved values into
// the fragment XML for one instance.
package processor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/fragments"
	"github.com/conneroisu/mpwizard/internal/logging"
)

// Job is one instance to materialize.
type Job struct {
	InstanceID string
	Category   fragments.Category
	Definition *fragments.Definition
	// Values maps token names, without ##, to escaped values.
	Values map[string]string
}

// Result is the fragment produced for a job.
type Result struct {
	FragmentKey string
	InstanceID  string
	XML         string
	// Inert is set when the template could not be loaded and XML holds a
	// placeholder fragment instead.
	Inert bool
	Err   error
}

// Processor fetches external templates and substitutes placeholders.
type Processor struct {
	fetcher Fetcher
	logger  logging.Logger
}

// New creates a processor. A nil logger discards output.
func New(fetcher Fetcher, logger logging.Logger) *Processor {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Processor{
		fetcher: fetcher,
		logger:  logger.WithComponent("processor"),
	}
}

// Process materializes one job. A template that cannot be fetched yields an
// inert fragment and the failure is logged; it is not retried.
func (p *Processor) Process(ctx context.Context, job Job) Result {
	def := job.Definition
	res := Result{FragmentKey: def.Key, InstanceID: job.InstanceID}

	template := def.Template.Inline
	if def.Template.IsFile() {
		text, err := p.fetch(ctx, def.Template.File)
		if err != nil {
			p.logger.Error(ctx, err, "Fragment template unavailable",
				"fragment", def.Key,
				"instance", job.InstanceID,
				"file", def.Template.File)

			res.XML = InertFragment(job.Category, def.Key, job.InstanceID, errors.UserMessage(err))
			res.Inert = true
			res.Err = err

			return res
		}
		template = text
	}

	res.XML = p.substitute(ctx, job, template)

	return res
}

func (p *Processor) fetch(ctx context.Context, name string) (string, error) {
	if p.fetcher == nil {
		return "", errors.NewFetchError(errors.ErrCodeFetchFailed, "no fragment source configured", nil)
	}

	return p.fetcher.Fetch(ctx, name)
}

// substitute replaces every ##Token## in one pass. Tokens without a value
// are logged and blanked so no placeholder reaches the output.
func (p *Processor) substitute(ctx context.Context, job Job, template string) string {
	tokens := fragments.ScanTokens(template)
	if len(tokens) == 0 {
		return template
	}
	sort.Strings(tokens)

	oldnew := make([]string, 0, 2*len(tokens))
	for _, tok := range tokens {
		v, ok := job.Values[tok]
		if !ok {
			p.logger.Warn(ctx, nil, "Placeholder has no value",
				"fragment", job.Definition.Key,
				"instance", job.InstanceID,
				"token", tok)
		}
		oldnew = append(oldnew, "##"+tok+"##", neutralize(v))
	}

	return strings.NewReplacer(oldnew...).Replace(template)
}

// neutralize encodes the # of a value that itself looks like a placeholder.
// The character reference reads back as # once the XML is parsed.
func neutralize(v string) string {
	if !fragments.TokenPattern().MatchString(v) {
		return v
	}

	return strings.ReplaceAll(v, "#", "&#35;")
}

// sectionFor names the Monitoring child an inert fragment is placed in.
func sectionFor(cat fragments.Category) string {
	switch cat {
	case fragments.CategoryDiscovery:
		return "Discoveries"
	case fragments.CategoryRules:
		return "Rules"
	default:
		return "Monitors"
	}
}

var commentEscaper = strings.NewReplacer("--", "- -")

// InertFragment builds the fragment used in place of one whose template
// could not be loaded. It carries only a comment naming the gap.
func InertFragment(cat fragments.Category, key, instanceID, reason string) string {
	text := fmt.Sprintf("FRAGMENT UNAVAILABLE: %s (%s): %s", key, instanceID, reason)
	text = commentEscaper.Replace(commentEscaper.Replace(text))
	if strings.HasSuffix(text, "-") {
		text += " "
	}

	section := sectionFor(cat)

	return fmt.Sprintf(
		"<ManagementPackFragment SchemaVersion=\"2.0\">\n  <Monitoring>\n    <%s>\n      <!-- %s -->\n    </%s>\n  </Monitoring>\n</ManagementPackFragment>\n",
		section, text, section)
}
