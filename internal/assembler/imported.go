package assembler

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/xmltree"
)

// RootIdentifier is the companyId.appName pair of an imported pack.
type RootIdentifier struct {
	CompanyID string `json:"companyId" yaml:"company_id"`
	AppName   string `json:"appName" yaml:"app_name"`
}

// String joins the pair back into a pack id.
func (r RootIdentifier) String() string {
	if r.AppName == "" {
		return r.CompanyID
	}

	return r.CompanyID + "." + r.AppName
}

// DiscoveredClass is one class type declared by an imported pack.
type DiscoveredClass struct {
	ID       string `json:"id" yaml:"id"`
	BaseType string `json:"baseType" yaml:"base_type"`
	// InferredDiscoveryKind is the fragment key of the discovery that would
	// produce this class, or "unknown".
	InferredDiscoveryKind string `json:"inferredDiscoveryKind" yaml:"inferred_discovery_kind"`
}

// ImportedDocument is a previously exported pack to merge new content into.
// The parsed tree is never modified; merging works on a copy.
type ImportedDocument struct {
	RootIdentifier    RootIdentifier    `json:"rootIdentifier" yaml:"root_identifier"`
	Version           string            `json:"version" yaml:"version"`
	DiscoveredClasses []DiscoveredClass `json:"discoveredClasses" yaml:"discovered_classes"`

	doc *etree.Document
}

// ParseImported parses a management pack document.
func ParseImported(text string) (*ImportedDocument, error) {
	doc, err := xmltree.Parse(text)
	if err != nil {
		return nil, errors.NewParseError(errors.ErrCodeMalformedXML, "parse imported document", err)
	}

	root := doc.Root()
	if root.Tag != "ManagementPack" {
		return nil, errors.NewValidationError(errors.ErrCodeNotManagementPack,
			"root element is <"+root.FullTag()+">, not <ManagementPack>")
	}

	imp := &ImportedDocument{doc: doc}

	if ids := xmltree.Find(root, "Manifest/Identity/ID"); len(ids) > 0 {
		id := strings.TrimSpace(ids[0].Text())
		company, app, _ := strings.Cut(id, ".")
		imp.RootIdentifier = RootIdentifier{CompanyID: company, AppName: app}
	}
	if vs := xmltree.Find(root, "Manifest/Identity/Version"); len(vs) > 0 {
		imp.Version = strings.TrimSpace(vs[0].Text())
	}

	discoveries := xmltree.Find(root, "Monitoring/Discoveries/Discovery")
	for _, ct := range xmltree.Find(root, "TypeDefinitions/EntityTypes/ClassTypes/ClassType") {
		id := ct.SelectAttrValue("ID", "")
		imp.DiscoveredClasses = append(imp.DiscoveredClasses, DiscoveredClass{
			ID:                    id,
			BaseType:              ct.SelectAttrValue("Base", ""),
			InferredDiscoveryKind: inferDiscoveryKind(id, discoveries),
		})
	}

	return imp, nil
}

// elementLists are the paths of the pack's top level, identified elements.
var elementLists = []string{
	"TypeDefinitions/EntityTypes/ClassTypes/ClassType",
	"TypeDefinitions/ModuleTypes/DataSourceModuleType|ProbeActionModuleType|ConditionDetectionModuleType|WriteActionModuleType",
	"TypeDefinitions/MonitorTypes/UnitMonitorType|AggregateMonitorType|DependencyMonitorType",
	"Monitoring/Discoveries/Discovery",
	"Monitoring/Monitors/UnitMonitor|AggregateMonitor|DependencyMonitor",
	"Monitoring/Rules/Rule",
	"Presentation/StringResources/StringResource",
}

// ElementIDs returns the ids of the classes, module and monitor types,
// discoveries, monitors, rules and string resources the pack declares.
func (d *ImportedDocument) ElementIDs() map[string]bool {
	ids := make(map[string]bool)
	if d == nil || d.doc == nil {
		return ids
	}

	root := d.doc.Root()
	for _, p := range elementLists {
		for _, el := range xmltree.Find(root, p) {
			if id := el.SelectAttrValue("ID", ""); id != "" {
				ids[id] = true
			}
		}
	}

	return ids
}

// Document returns a copy of the parsed tree.
func (d *ImportedDocument) Document() *etree.Document {
	return d.doc.Copy()
}

// discoveryKinds maps data source type id fragments to fragment keys,
// checked in order against the lower-cased type id.
var discoveryKinds = []struct {
	match string
	kind  string
}{
	{"registry", "registry-key"},
	{"wmi", "wmi-query"},
	{"powershell", "script-discovery"},
	{"script", "script-discovery"},
	{"service", "service-discovery"},
}

const unknownKind = "unknown"

func inferDiscoveryKind(classID string, discoveries []*etree.Element) string {
	for _, d := range discoveries {
		targets := false
		for _, dc := range xmltree.Find(d, "DiscoveryTypes/DiscoveryClass") {
			if dc.SelectAttrValue("TypeID", "") == classID {
				targets = true

				break
			}
		}
		if !targets {
			continue
		}

		ds := xmltree.Child(d, "DataSource")
		if ds == nil {
			continue
		}
		typeID := strings.ToLower(ds.SelectAttrValue("TypeID", ""))
		for _, k := range discoveryKinds {
			if strings.Contains(typeID, k.match) {
				return k.kind
			}
		}
	}

	return unknownKind
}
