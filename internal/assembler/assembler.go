// Package assembler produces the final management pack document, either as
// a fresh document or by merging new sections into an imported one.
package assembler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/conneroisu/mpwizard/internal/combiner"
	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/xmltree"
)

// DescriptionPolicy controls when the manifest description is dropped
// because an alerting rule is selected.
type DescriptionPolicy string

const (
	// DescriptionNewOnly drops the description in new documents only.
	DescriptionNewOnly DescriptionPolicy = "new-only"
	// DescriptionAlways drops it in new documents and removes it from merged
	// ones.
	DescriptionAlways DescriptionPolicy = "always"
	// DescriptionNever keeps the description.
	DescriptionNever DescriptionPolicy = "never"
)

// ParseDescriptionPolicy validates a policy name. Empty means new-only.
func ParseDescriptionPolicy(s string) (DescriptionPolicy, error) {
	switch p := DescriptionPolicy(strings.TrimSpace(s)); p {
	case "":
		return DescriptionNewOnly, nil
	case DescriptionNewOnly, DescriptionAlways, DescriptionNever:
		return p, nil
	default:
		return "", errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown description policy %q (want new-only, always or never)", s))
	}
}

// Sibling order contracts. A created wrapper is inserted before the first
// existing sibling that comes later in its parent's list.
var (
	rootOrder = []string{
		"Manifest", "TypeDefinitions", "Categories", "Monitoring", "Templates",
		"PresentationTypes", "Presentation", "Reporting", "LanguagePacks", "Resources",
	}
	manifestOrder       = []string{"Identity", "Name", "Description", "References"}
	typeDefinitionOrder = []string{"EntityTypes", "DataTypes", "SchemaTypes", "SecureReferences", "ModuleTypes", "MonitorTypes"}
	entityTypeOrder     = []string{"ClassTypes", "RelationshipTypes"}
	monitoringOrder     = []string{"Discoveries", "Monitors", "Rules", "Tasks", "Diagnostics", "Recoveries", "Overrides"}
	presentationOrder   = []string{"StringResources", "Views", "Folders", "FolderItems", "ImageReferences", "ConsoleTasks"}
	languagePackOrder   = []string{"DisplayStrings", "KnowledgeArticles"}
)

// containerOrder lists, per container, the order of its wrapper children.
var containerOrder = map[string][]string{
	"ManagementPack":  rootOrder,
	"Manifest":        manifestOrder,
	"TypeDefinitions": typeDefinitionOrder,
	"EntityTypes":     entityTypeOrder,
	"Monitoring":      monitoringOrder,
	"Presentation":    presentationOrder,
	"LanguagePack":    languagePackOrder,
	"LanguagePacks":   nil,
}

// nodeLists are wrappers whose children are the merged nodes themselves.
var nodeLists = map[string]bool{
	"ClassTypes":      true,
	"ModuleTypes":     true,
	"MonitorTypes":    true,
	"Discoveries":     true,
	"Monitors":        true,
	"Rules":           true,
	"StringResources": true,
	"DisplayStrings":  true,
}

// Manifest is the identity block of a new document.
type Manifest struct {
	ID          string
	Version     string
	Name        string
	Description string
	References  []Reference
}

// Request is the input of one assembly run.
type Request struct {
	Manifest Manifest
	Sections combiner.Sections
	// AlertingRule is set when any selected rule raises alerts.
	AlertingRule bool
}

// Assembler builds documents. It keeps no state between calls.
type Assembler struct {
	policy DescriptionPolicy
}

// New creates an assembler with the given description policy.
func New(policy DescriptionPolicy) *Assembler {
	if policy == "" {
		policy = DescriptionNewOnly
	}

	return &Assembler{policy: policy}
}

// Policy returns the description policy in effect.
func (a *Assembler) Policy() DescriptionPolicy {
	return a.policy
}

// New emits a fresh document: manifest, then each non-empty section, with
// Monitoring always present.
func (a *Assembler) New(req Request) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	root := doc.CreateElement("ManagementPack")
	root.CreateAttr("ContentReadable", "true")
	root.CreateAttr("xmlns:xsd", "http://www.w3.org/2001/XMLSchema")
	root.CreateAttr("xmlns:xsl", "http://www.w3.org/1999/XSL/Transform")

	m := req.Manifest
	manifest := root.CreateElement("Manifest")
	identity := manifest.CreateElement("Identity")
	identity.CreateElement("ID").SetText(m.ID)
	identity.CreateElement("Version").SetText(m.Version)
	name := m.Name
	if name == "" {
		name = m.ID
	}
	manifest.CreateElement("Name").SetText(name)
	if m.Description != "" && !(req.AlertingRule && a.policy != DescriptionNever) {
		manifest.CreateElement("Description").SetText(m.Description)
	}
	refs := manifest.CreateElement("References")
	for _, r := range m.References {
		refs.AddChild(r.element())
	}

	if err := mergeSections(root, req.Sections); err != nil {
		return "", err
	}
	xmltree.EnsureChild(root, "Monitoring", rootOrder)

	return serialize(doc)
}

// Merge adds the new sections to a copy of imp. The fourth version
// component is incremented, missing references are added by alias and
// existing nodes keep their order. With nothing new the copy is returned
// unchanged.
func (a *Assembler) Merge(imp *ImportedDocument, req Request) (string, error) {
	if imp == nil || imp.doc == nil {
		return "", errors.NewAssemblyError(errors.ErrCodeAssemblyFailed, "no imported document", nil)
	}

	doc := imp.Document()
	root := doc.Root()

	if req.Sections.Empty() {
		return serialize(doc)
	}

	manifest := xmltree.EnsureChild(root, "Manifest", rootOrder)
	if versions := xmltree.Find(manifest, "Identity/Version"); len(versions) > 0 {
		versions[0].SetText(BumpVersion(strings.TrimSpace(versions[0].Text())))
	}

	refs := xmltree.EnsureChild(manifest, "References", manifestOrder)
	for _, r := range req.Manifest.References {
		if !hasReference(refs, r.Alias) {
			refs.AddChild(r.element())
		}
	}

	if a.policy == DescriptionAlways && req.AlertingRule {
		if d := xmltree.Child(manifest, "Description"); d != nil {
			manifest.RemoveChild(d)
		}
	}

	if err := mergeSections(root, req.Sections); err != nil {
		return "", err
	}

	return serialize(doc)
}

func mergeSections(root *etree.Element, s combiner.Sections) error {
	for _, body := range []string{s.TypeDefinitions, s.Monitoring, s.Presentation, s.LanguagePacks} {
		if body == "" {
			continue
		}

		section, err := xmltree.ParseElement(body)
		if err != nil {
			return errors.NewAssemblyError(errors.ErrCodeAssemblyFailed, "read section", err)
		}

		container := xmltree.EnsureChild(root, section.Tag, rootOrder)
		mergeChildren(container, section)
	}

	return nil
}

// mergeChildren moves the content of src below dst, reusing or creating
// wrappers at their ordered position and appending nodes after existing
// ones.
func mergeChildren(dst, src *etree.Element) {
	for _, tok := range src.Child {
		switch t := tok.(type) {
		case *etree.Comment:
			dst.CreateComment(t.Data)
		case *etree.Element:
			switch {
			case t.Tag == "LanguagePack" && dst.Tag == "LanguagePacks":
				mergeChildren(languagePack(dst, t), t)
			case isWrapper(t.Tag):
				mergeChildren(xmltree.EnsureChild(dst, t.Tag, containerOrder[dst.Tag]), t)
			case t.Tag == "StringResource" && hasID(dst, "StringResource", t.SelectAttrValue("ID", "")):
				// already declared
			default:
				dst.AddChild(t.Copy())
			}
		}
	}
}

func isWrapper(tag string) bool {
	if nodeLists[tag] {
		return true
	}
	_, ok := containerOrder[tag]

	return ok
}

// languagePack finds the pack of src's language below packs, creating it
// when missing.
func languagePack(packs, src *etree.Element) *etree.Element {
	id := src.SelectAttrValue("ID", combiner.DefaultLanguage)
	for _, p := range xmltree.Children(packs, "LanguagePack") {
		if p.SelectAttrValue("ID", "") == id {
			return p
		}
	}

	p := packs.CreateElement("LanguagePack")
	p.CreateAttr("ID", id)
	if v := src.SelectAttrValue("IsDefault", ""); v != "" {
		p.CreateAttr("IsDefault", v)
	}

	return p
}

func hasID(parent *etree.Element, tag, id string) bool {
	if id == "" {
		return false
	}
	for _, c := range xmltree.Children(parent, tag) {
		if c.SelectAttrValue("ID", "") == id {
			return true
		}
	}

	return false
}

func hasReference(refs *etree.Element, alias string) bool {
	for _, r := range xmltree.Children(refs, "Reference") {
		if r.SelectAttrValue("Alias", "") == alias {
			return true
		}
	}

	return false
}

// BumpVersion increments the last part of a four part numeric version.
// Anything else is returned unchanged.
func BumpVersion(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) != 4 {
		return v
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return v
		}
	}

	n, err := strconv.Atoi(parts[3])
	if err != nil {
		return v
	}
	parts[3] = strconv.Itoa(n + 1)

	return strings.Join(parts, ".")
}

func serialize(doc *etree.Document) (string, error) {
	out, err := xmltree.Serialize(doc)
	if err != nil {
		return "", errors.NewAssemblyError(errors.ErrCodeAssemblyFailed, "serialize document", err)
	}

	return out, nil
}
