// Package generator runs a session through the fragment pipeline: resolve,
// process, extract, combine and assemble.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/mpwizard/internal/assembler"
	"github.com/conneroisu/mpwizard/internal/combiner"
	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/extractor"
	"github.com/conneroisu/mpwizard/internal/fragments"
	"github.com/conneroisu/mpwizard/internal/logging"
	"github.com/conneroisu/mpwizard/internal/processor"
	"github.com/conneroisu/mpwizard/internal/resolver"
	"github.com/conneroisu/mpwizard/internal/session"
	"github.com/conneroisu/mpwizard/internal/xmltree"
)

// DefaultVersion is used when the session carries no version.
const DefaultVersion = "1.0.0.0"

// Options tune a generator.
type Options struct {
	DefaultVersion string
}

// Generator produces management pack documents from sessions. It holds no
// per-session state, so repeated calls with an unchanged session return
// identical output.
type Generator struct {
	lib       *fragments.Library
	processor *processor.Processor
	assembler *assembler.Assembler
	logger    logging.Logger
	opts      Options
}

// New wires a generator. A nil library uses the shipped catalog and a nil
// logger discards output.
func New(lib *fragments.Library, proc *processor.Processor, asm *assembler.Assembler, logger logging.Logger, opts Options) *Generator {
	if lib == nil {
		lib = fragments.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if asm == nil {
		asm = assembler.New(assembler.DescriptionNewOnly)
	}
	if proc == nil {
		proc = processor.New(processor.FSFetcher{FS: fragments.FS()}, logger)
	}
	if opts.DefaultVersion == "" {
		opts.DefaultVersion = DefaultVersion
	}

	return &Generator{
		lib:       lib,
		processor: proc,
		assembler: asm,
		logger:    logger.WithComponent("generator"),
		opts:      opts,
	}
}

// Generate assembles the document for s: a fresh pack, or a merge into
// s.Imported when one is attached.
func (g *Generator) Generate(ctx context.Context, s *session.Session) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewAssemblyError(errors.ErrCodeAssemblyFailed,
				"document assembly failed", fmt.Errorf("%v", r))
			g.logger.Error(ctx, err, "Generation panicked")
		}
	}()

	basic, err := s.Identity()
	if err != nil {
		return "", err
	}
	if basic.CompanyID == "" || basic.AppName == "" {
		return "", errors.NewValidationError(errors.ErrCodeMissingIdentity,
			"company id and application name are required")
	}

	perf := logging.StartOperation(g.logger, "generate")

	buckets, alerting := g.collect(ctx, s, basic)

	sections, err := combiner.Combine(buckets)
	if err != nil {
		return "", errors.NewAssemblyError(errors.ErrCodeAssemblyFailed, "combine sections", err)
	}

	req := assembler.Request{
		Manifest: assembler.Manifest{
			ID:          basic.CompanyID + "." + basic.AppName,
			Version:     g.version(basic),
			Description: basic.Description,
			References:  assembler.References(s.SelectedKeys()),
		},
		Sections:     sections,
		AlertingRule: alerting,
	}

	if s.Imported != nil {
		out, err = g.assembler.Merge(s.Imported, req)
	} else {
		out, err = g.assembler.New(req)
	}
	if err != nil {
		return "", err
	}

	perf.End(ctx, "pack", req.Manifest.ID, "merge", s.Imported != nil)

	return out, nil
}

func (g *Generator) version(b session.BasicInfo) string {
	if b.Version != "" {
		return b.Version
	}

	return g.opts.DefaultVersion
}

// maxSuffixTries bounds the search for a free .InstanceN suffix.
const maxSuffixTries = 1000

// collect materializes every selected instance in generation order and
// gathers its nodes. It also reports whether an alerting rule is selected.
//
// Element ids stay unique across the whole document: ids declared by an
// imported pack and by earlier instances are taken, a monitor or rule that
// would reuse one moves to the next free .InstanceN suffix, and a
// discovery whose class the imported pack already declares is left out.
func (g *Generator) collect(ctx context.Context, s *session.Session, basic session.BasicInfo) (extractor.Buckets, bool) {
	var (
		all      extractor.Buckets
		alerting bool
	)

	taken := s.Imported.ElementIDs()

	discovery := s.DiscoveryRecord()
	if s.DiscoveryActive() && discovery == nil {
		discovery = session.Record{}
	}

	render := func(def *fragments.Definition, in resolver.Input) (extractor.Buckets, bool) {
		res := g.processor.Process(ctx, processor.Job{
			InstanceID: in.InstanceID,
			Category:   in.Category,
			Definition: def,
			Values:     resolver.Resolve(in),
		})

		b, err := extractor.Extract(res.XML)
		if err != nil {
			g.logger.Error(ctx, err, "Fragment could not be parsed",
				"fragment", def.Key,
				"instance", in.InstanceID)

			return b, false
		}

		return b, true
	}

	// claim reserves the ids of b, or reports false when one is taken.
	claim := func(b extractor.Buckets) bool {
		ids, err := b.ElementIDs()
		if err != nil {
			g.logger.Warn(ctx, err, "Element ids could not be read")

			return true
		}
		for _, id := range ids {
			if taken[id] {
				return false
			}
		}
		for _, id := range ids {
			taken[id] = true
		}

		return true
	}

	if s.DiscoveryActive() {
		key := s.Discovery()
		if def, ok := g.lib.Get(key); ok {
			b, ok := render(def, resolver.Input{
				Basic:        basic,
				FragmentKey:  key,
				InstanceID:   key,
				Category:     fragments.CategoryDiscovery,
				Record:       discovery,
				Defaults:     session.Record(def.Defaults()),
				Discovery:    discovery,
				SiblingCount: 1,
			})
			switch {
			case !ok:
			case claim(b):
				all.Append(b)
			default:
				g.logger.Info(ctx, "Discovered class already declared by the imported pack", "fragment", key)
			}
		} else {
			g.logger.Error(ctx, nil, "Fragment definition not found", "fragment", key)
		}
	}

	for _, cat := range []fragments.Category{fragments.CategoryMonitors, fragments.CategoryRules} {
		for _, inst := range s.Instances(cat) {
			def, ok := g.lib.Get(inst.FragmentKey)
			if !ok {
				g.logger.Error(ctx, nil, "Fragment definition not found",
					"fragment", inst.FragmentKey,
					"instance", inst.InstanceID)

				continue
			}
			if def.RaisesAlert {
				alerting = true
			}

			in := resolver.Input{
				Basic:        basic,
				FragmentKey:  inst.FragmentKey,
				InstanceID:   inst.InstanceID,
				Category:     cat,
				Record:       s.Record(inst.InstanceID),
				Defaults:     session.Record(def.Defaults()),
				Discovery:    discovery,
				SkipTarget:   s.SkipTarget(),
				SiblingCount: s.CountOf(cat, inst.FragmentKey),
				Ordinal:      inst.Ordinal,
			}

			b, ok := render(def, in)
			for tries := 0; ok && !claim(b); tries++ {
				if tries == maxSuffixTries {
					g.logger.Error(ctx, nil, "No free instance suffix, instance left out",
						"fragment", inst.FragmentKey,
						"instance", inst.InstanceID)
					ok = false

					break
				}
				in.Ordinal = max(in.Ordinal, 1) + 1
				in.ForceSuffix = true
				b, ok = render(def, in)
			}
			if ok {
				all.Append(b)
			}
		}
	}

	return all, alerting
}

// Preview returns the document for s, an explanation of what is missing
// when the identity is incomplete, or a comment carrying the failure.
func (g *Generator) Preview(ctx context.Context, s *session.Session) string {
	basic, err := s.Identity()
	if err != nil {
		return xmltree.CommentString(" " + commentSafe(errors.UserMessage(err)) + " ")
	}
	if basic.CompanyID == "" || basic.AppName == "" {
		return missingIdentity(s, basic)
	}

	out, err := g.Generate(ctx, s)
	if err != nil {
		g.logger.Error(ctx, err, "Preview failed")

		return xmltree.CommentString(" " + commentSafe(errors.UserMessage(err)) + " ")
	}

	return out
}

func missingIdentity(s *session.Session, basic session.BasicInfo) string {
	orNot := func(v string) string {
		if v == "" {
			return "Not provided"
		}

		return v
	}

	var b strings.Builder
	b.WriteString("<!-- Management Pack Preview -->\n")
	b.WriteString("<!-- Fill in the company id and application name to see the XML preview -->\n\n")
	b.WriteString("Basic information needed:\n")
	fmt.Fprintf(&b, "- Company ID: %s\n", orNot(basic.CompanyID))
	fmt.Fprintf(&b, "- Application Name: %s\n\n", orNot(basic.AppName))
	b.WriteString("Selected components:\n")

	switch d := s.Discovery(); d {
	case "":
		b.WriteString("- No discovery selected\n")
	case session.SkipDiscovery:
		fmt.Fprintf(&b, "- Discovery skipped, targeting %s\n", orNot(s.SkipTarget()))
	default:
		fmt.Fprintf(&b, "- Discovery: %s\n", d)
	}

	for _, cat := range []fragments.Category{fragments.CategoryMonitors, fragments.CategoryRules} {
		insts := s.Instances(cat)
		if len(insts) == 0 {
			continue
		}
		keys := make([]string, 0, len(insts))
		for _, inst := range insts {
			keys = append(keys, inst.FragmentKey)
		}
		plural := ""
		if len(insts) > 1 {
			plural = "s"
		}
		fmt.Fprintf(&b, "- %s: %s (%d instance%s)\n", cat, strings.Join(keys, ", "), len(insts), plural)
	}

	return b.String()
}

var dashes = strings.NewReplacer("--", "- -")

func commentSafe(s string) string {
	return dashes.Replace(dashes.Replace(s))
}

// Filename is the download name of the pack built for b.
func Filename(b session.BasicInfo) string {
	return b.CompanyID + "." + b.AppName + ".xml"
}

// DeployScript renders a PowerShell script importing the pack built for b.
// managementGroup is optional.
func DeployScript(b session.BasicInfo, managementGroup string) string {
	var s strings.Builder
	s.WriteString("# Management Pack Deployment Script\n")
	s.WriteString("# Generated by mpwizard\n\n")
	fmt.Fprintf(&s, "$MPName = %s\n", psQuote(b.CompanyID+"."+b.AppName))
	fmt.Fprintf(&s, "$MPFile = %s\n\n", psQuote(Filename(b)))
	s.WriteString("Import-Module OperationsManager\n\n")

	if managementGroup != "" {
		s.WriteString("# Connect to Management Group\n")
		fmt.Fprintf(&s, "New-SCOMManagementGroupConnection -ComputerName %s\n\n", psQuote(managementGroup))
	}

	s.WriteString("try {\n")
	s.WriteString("    Import-SCManagementPack -FullName $MPFile\n")
	s.WriteString("    Write-Host \"Management Pack $MPName imported successfully\" -ForegroundColor Green\n")
	s.WriteString("} catch {\n")
	s.WriteString("    Write-Host \"Failed to import Management Pack: $($_.Exception.Message)\" -ForegroundColor Red\n")
	s.WriteString("    exit 1\n")
	s.WriteString("}\n")

	return s.String()
}

// psQuotes doubles every character PowerShell accepts as a single quote.
var psQuotes = strings.NewReplacer("'", "''", "\u2018", "\u2018\u2018", "\u2019", "\u2019\u2019", "\u201a", "\u201a\u201a", "\u201b", "\u201b\u201b")

// psQuote renders v as a verbatim PowerShell string literal.
func psQuote(v string) string {
	return "'" + psQuotes.Replace(v) + "'"
}
