// Package extractor classifies the content of one processed fragment into
// the fixed buckets the combiner works from.
package extractor

import (
	"slices"

	"github.com/beevik/etree"

	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/xmltree"
)

// Buckets holds serialized nodes per kind, in fragment processing order.
// Discoveries, Monitors and Rules may also hold serialized comments left by
// inert fragments.
type Buckets struct {
	ClassTypes     []string
	ModuleTypes    []string
	MonitorTypes   []string
	Discoveries    []string
	Monitors       []string
	Rules          []string
	DisplayStrings []string
}

// Append adds other's nodes after b's, bucket by bucket.
func (b *Buckets) Append(other Buckets) {
	b.ClassTypes = append(b.ClassTypes, other.ClassTypes...)
	b.ModuleTypes = append(b.ModuleTypes, other.ModuleTypes...)
	b.MonitorTypes = append(b.MonitorTypes, other.MonitorTypes...)
	b.Discoveries = append(b.Discoveries, other.Discoveries...)
	b.Monitors = append(b.Monitors, other.Monitors...)
	b.Rules = append(b.Rules, other.Rules...)
	b.DisplayStrings = append(b.DisplayStrings, other.DisplayStrings...)
}

// Empty reports whether no bucket holds anything.
func (b Buckets) Empty() bool {
	return len(b.ClassTypes) == 0 &&
		len(b.ModuleTypes) == 0 &&
		len(b.MonitorTypes) == 0 &&
		len(b.Discoveries) == 0 &&
		len(b.Monitors) == 0 &&
		len(b.Rules) == 0 &&
		len(b.DisplayStrings) == 0
}

// ElementIDs returns the ID attribute of every identified node, display
// strings and comments excluded.
func (b Buckets) ElementIDs() ([]string, error) {
	var ids []string
	for _, list := range [][]string{b.ClassTypes, b.ModuleTypes, b.MonitorTypes, b.Discoveries, b.Monitors, b.Rules} {
		for _, node := range list {
			if xmltree.IsComment(node) {
				continue
			}
			el, err := xmltree.ParseElement(node)
			if err != nil {
				return nil, errors.NewParseError(errors.ErrCodeMalformedXML, "read extracted node", err)
			}
			if id := el.SelectAttrValue("ID", ""); id != "" {
				ids = append(ids, id)
			}
		}
	}

	return ids, nil
}

type bucketPath struct {
	container string
	tags      []string
	comments  bool
	target    func(*Buckets) *[]string
}

var bucketPaths = []bucketPath{
	{
		container: "TypeDefinitions/EntityTypes/ClassTypes",
		tags:      []string{"ClassType"},
		target:    func(b *Buckets) *[]string { return &b.ClassTypes },
	},
	{
		container: "TypeDefinitions/ModuleTypes",
		tags:      []string{"DataSourceModuleType", "ProbeActionModuleType", "ConditionDetectionModuleType", "WriteActionModuleType"},
		target:    func(b *Buckets) *[]string { return &b.ModuleTypes },
	},
	{
		container: "TypeDefinitions/MonitorTypes",
		tags:      []string{"UnitMonitorType", "AggregateMonitorType", "DependencyMonitorType"},
		target:    func(b *Buckets) *[]string { return &b.MonitorTypes },
	},
	{
		container: "Monitoring/Discoveries",
		tags:      []string{"Discovery"},
		comments:  true,
		target:    func(b *Buckets) *[]string { return &b.Discoveries },
	},
	{
		container: "Monitoring/Monitors",
		tags:      []string{"UnitMonitor", "AggregateMonitor", "DependencyMonitor"},
		comments:  true,
		target:    func(b *Buckets) *[]string { return &b.Monitors },
	},
	{
		container: "Monitoring/Rules",
		tags:      []string{"Rule"},
		comments:  true,
		target:    func(b *Buckets) *[]string { return &b.Rules },
	},
	{
		container: "LanguagePacks/LanguagePack/DisplayStrings",
		tags:      []string{"DisplayString"},
		target:    func(b *Buckets) *[]string { return &b.DisplayStrings },
	},
}

// Extract parses one fragment and collects its nodes. A fragment that does
// not parse yields a parse error and no nodes.
func Extract(fragment string) (Buckets, error) {
	var out Buckets

	doc, err := xmltree.Parse(fragment)
	if err != nil {
		return out, errors.NewParseError(errors.ErrCodeMalformedXML, "parse fragment", err)
	}
	root := doc.Root()

	for _, bp := range bucketPaths {
		target := bp.target(&out)
		for _, container := range xmltree.Find(root, bp.container) {
			nodes, err := collect(container, bp.tags, bp.comments)
			if err != nil {
				return Buckets{}, errors.NewParseError(errors.ErrCodeMalformedXML, "serialize "+bp.container, err)
			}
			*target = append(*target, nodes...)
		}
	}

	return out, nil
}

func collect(container *etree.Element, tags []string, comments bool) ([]string, error) {
	var out []string
	for _, tok := range container.Child {
		switch t := tok.(type) {
		case *etree.Element:
			if t.Space != "" || !slices.Contains(tags, t.Tag) {
				continue
			}
			s, err := xmltree.String(t)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		case *etree.Comment:
			if comments {
				out = append(out, xmltree.CommentString(t.Data))
			}
		}
	}

	return out, nil
}
