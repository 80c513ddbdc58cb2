// Package fragments holds the fixed catalog of Management Pack fragment
// templates. The catalog is built once and never changes afterwards.
package fragments

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"sync"
)

//go:embed inline/*.xml
var inlineFS embed.FS

//go:embed library/*.mpx
var libraryFS embed.FS

// Category groups fragments by the wizard step that selects them.
type Category string

const (
	CategoryDiscovery Category = "discovery"
	CategoryMonitors  Category = "monitors"
	CategoryRules     Category = "rules"
	CategoryGroups    Category = "groups"
	CategoryTasks     Category = "tasks"
	CategoryViews     Category = "views"
)

// Categories lists every category in wizard order.
var Categories = []Category{
	CategoryDiscovery,
	CategoryMonitors,
	CategoryRules,
	CategoryGroups,
	CategoryTasks,
	CategoryViews,
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}

	return "", fmt.Errorf("unknown category %q", s)
}

// FieldKind is the input widget a field is rendered with.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindTextarea FieldKind = "textarea"
	KindNumber   FieldKind = "number"
	KindSelect   FieldKind = "select"
)

// FieldSpec declares one configurable value of a fragment.
type FieldSpec struct {
	ID          string    `json:"id" yaml:"id"`
	Label       string    `json:"label" yaml:"label"`
	Kind        FieldKind `json:"kind" yaml:"kind"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Default     string    `json:"default,omitempty" yaml:"default,omitempty"`
	Options     []string  `json:"options,omitempty" yaml:"options,omitempty"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Help        string    `json:"help,omitempty" yaml:"help,omitempty"`
}

// Template is either inline fragment text or the name of an external
// fragment file. Exactly one of the two is set.
type Template struct {
	Inline string `json:"-" yaml:"-"`
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// IsFile reports whether the template must be fetched before use.
func (t Template) IsFile() bool {
	return t.File != ""
}

// Definition is one entry of the catalog.
type Definition struct {
	Key         string      `json:"key" yaml:"key"`
	DisplayName string      `json:"displayName" yaml:"display_name"`
	Category    Category    `json:"category" yaml:"category"`
	Template    Template    `json:"template" yaml:"template"`
	Fields      []FieldSpec `json:"fields" yaml:"fields"`
	// RaisesAlert marks alerting rules.
	RaisesAlert bool `json:"raisesAlert,omitempty" yaml:"raises_alert,omitempty"`
}

// Defaults returns the default value of every field that declares one.
func (d *Definition) Defaults() map[string]string {
	out := make(map[string]string)
	for _, f := range d.Fields {
		if f.Default != "" {
			out[f.ID] = f.Default
		}
	}

	return out
}

// Library is the keyed, read-only fragment catalog.
type Library struct {
	defs   []*Definition
	byKey  map[string]*Definition
	tokens []string
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
)

// Default returns the shipped catalog.
func Default() *Library {
	defaultOnce.Do(func() {
		lib, err := New(catalog())
		if err != nil {
			panic(err)
		}
		defaultLib = lib
	})

	return defaultLib
}

// New builds a library from definitions. Inline templates named by file
// stem are loaded from the embedded inline directory.
func New(defs []*Definition) (*Library, error) {
	lib := &Library{byKey: make(map[string]*Definition, len(defs))}
	seen := make(map[string]struct{})

	for _, d := range defs {
		if _, dup := lib.byKey[d.Key]; dup {
			return nil, fmt.Errorf("duplicate fragment key %q", d.Key)
		}
		if (d.Template.Inline == "") == (d.Template.File == "") {
			return nil, fmt.Errorf("fragment %q must have exactly one of inline or file template", d.Key)
		}

		lib.defs = append(lib.defs, d)
		lib.byKey[d.Key] = d

		text := d.Template.Inline
		if d.Template.IsFile() {
			raw, err := fs.ReadFile(libraryFS, path.Join("library", d.Template.File))
			if err != nil {
				return nil, fmt.Errorf("fragment %q: %w", d.Key, err)
			}
			text = string(raw)
		}
		for _, tok := range ScanTokens(text) {
			seen[tok] = struct{}{}
		}
	}

	for tok := range seen {
		lib.tokens = append(lib.tokens, tok)
	}
	sort.Strings(lib.tokens)

	return lib, nil
}

// Get looks up a definition by key.
func (l *Library) Get(key string) (*Definition, bool) {
	d, ok := l.byKey[key]

	return d, ok
}

// All returns every definition in catalog order.
func (l *Library) All() []*Definition {
	out := make([]*Definition, len(l.defs))
	copy(out, l.defs)

	return out
}

// ByCategory returns the definitions of one category in catalog order.
func (l *Library) ByCategory(c Category) []*Definition {
	var out []*Definition
	for _, d := range l.defs {
		if d.Category == c {
			out = append(out, d)
		}
	}

	return out
}

// Tokens returns every placeholder name, without the ## delimiters, used
// by any template in the library.
func (l *Library) Tokens() []string {
	out := make([]string, len(l.tokens))
	copy(out, l.tokens)

	return out
}

// FS exposes the external fragment files shipped with the binary.
func FS() fs.FS {
	sub, err := fs.Sub(libraryFS, "library")
	if err != nil {
		panic(err)
	}

	return sub
}

var tokenPattern = regexp.MustCompile(`##([A-Za-z0-9_]+)##`)

// TokenPattern matches one ##Name## placeholder.
func TokenPattern() *regexp.Regexp {
	return tokenPattern
}

// ScanTokens returns the distinct placeholder names in text in first-seen
// order.
func ScanTokens(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}

	return out
}

func inline(name string) string {
	raw, err := fs.ReadFile(inlineFS, path.Join("inline", name+".xml"))
	if err != nil {
		panic(fmt.Sprintf("missing inline fragment %s: %v", name, err))
	}

	return string(raw)
}
