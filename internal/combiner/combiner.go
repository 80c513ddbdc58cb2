// Package combiner turns extracted fragment nodes into the section bodies of
// a management pack and derives the string resources they reference.
package combiner

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/extractor"
	"github.com/conneroisu/mpwizard/internal/xmltree"
)

// DefaultLanguage is the language pack display strings are placed in.
const DefaultLanguage = "ENU"

// Sections holds the serialized section bodies. Each body is a complete
// container element (TypeDefinitions, Monitoring, Presentation,
// LanguagePacks) or empty when it has no content.
type Sections struct {
	TypeDefinitions string
	Monitoring      string
	Presentation    string
	LanguagePacks   string

	// StringResources lists the derived string resource ids.
	StringResources []string
}

// Empty reports whether there is nothing to assemble.
func (s Sections) Empty() bool {
	return s.TypeDefinitions == "" && s.Monitoring == "" && s.Presentation == "" && s.LanguagePacks == ""
}

// wrapper is one group of nodes nested under a chain of elements.
type wrapper struct {
	path  []string
	nodes []string
}

// Combine builds the section bodies from b.
func Combine(b extractor.Buckets) (Sections, error) {
	var (
		s   Sections
		err error
	)

	s.TypeDefinitions, err = build("TypeDefinitions", []wrapper{
		{path: []string{"EntityTypes", "ClassTypes"}, nodes: b.ClassTypes},
		{path: []string{"ModuleTypes"}, nodes: b.ModuleTypes},
		{path: []string{"MonitorTypes"}, nodes: b.MonitorTypes},
	})
	if err != nil {
		return Sections{}, err
	}

	s.Monitoring, err = build("Monitoring", []wrapper{
		{path: []string{"Discoveries"}, nodes: b.Discoveries},
		{path: []string{"Monitors"}, nodes: b.Monitors},
		{path: []string{"Rules"}, nodes: b.Rules},
	})
	if err != nil {
		return Sections{}, err
	}

	s.StringResources, err = StringResourceIDs(b.Monitors, b.Rules)
	if err != nil {
		return Sections{}, err
	}

	if len(b.DisplayStrings) > 0 || len(s.StringResources) > 0 {
		s.Presentation, err = presentation(s.StringResources)
		if err != nil {
			return Sections{}, err
		}
	}

	s.LanguagePacks, err = build("LanguagePacks", []wrapper{
		{path: []string{"LanguagePack", "DisplayStrings"}, nodes: b.DisplayStrings},
	})
	if err != nil {
		return Sections{}, err
	}

	return s, nil
}

// build serializes root with one child chain per non-empty wrapper, in the
// order given. It returns "" when every wrapper is empty.
func build(root string, wrappers []wrapper) (string, error) {
	el := etree.NewElement(root)
	for _, w := range wrappers {
		if len(w.nodes) == 0 {
			continue
		}

		parent := el
		for _, tag := range w.path {
			parent = parent.CreateElement(tag)
			if tag == "LanguagePack" {
				parent.CreateAttr("ID", DefaultLanguage)
				parent.CreateAttr("IsDefault", "true")
			}
		}
		for _, n := range w.nodes {
			if err := xmltree.AppendNode(parent, n); err != nil {
				return "", errors.NewAssemblyError(errors.ErrCodeAssemblyFailed, "combine "+strings.Join(w.path, "/"), err)
			}
		}
	}

	if len(el.ChildElements()) == 0 {
		return "", nil
	}

	return xmltree.String(el)
}

func presentation(ids []string) (string, error) {
	el := etree.NewElement("Presentation")
	sr := el.CreateElement("StringResources")
	for _, id := range ids {
		sr.CreateElement("StringResource").CreateAttr("ID", id)
	}

	return xmltree.String(el)
}

var mpElementRef = regexp.MustCompile(`\$MPElement\[Name=["']?([^"'\]]+)["']?\]\$`)

// StringResourceIDs collects the alert message ids referenced by monitors
// (AlertSettings/@AlertMessage) and rules (AlertMessageId), once each, in
// first-seen order.
func StringResourceIDs(monitors, rules []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, n := range monitors {
		if xmltree.IsComment(n) {
			continue
		}
		el, err := xmltree.ParseElement(n)
		if err != nil {
			return nil, errors.NewParseError(errors.ErrCodeMalformedXML, "read monitor", err)
		}
		for _, as := range el.FindElements(".//AlertSettings") {
			add(as.SelectAttrValue("AlertMessage", ""))
		}
	}

	for _, n := range rules {
		if xmltree.IsComment(n) {
			continue
		}
		el, err := xmltree.ParseElement(n)
		if err != nil {
			return nil, errors.NewParseError(errors.ErrCodeMalformedXML, "read rule", err)
		}
		for _, ref := range el.FindElements(".//AlertMessageId") {
			for _, m := range mpElementRef.FindAllStringSubmatch(ref.Text(), -1) {
				add(m[1])
			}
		}
	}

	return out, nil
}
