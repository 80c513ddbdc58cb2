// Package session holds the working state of one wizard session: identity,
// selected fragment instances and their configuration records. A Session is
// owned by a single caller and is not safe for concurrent use.
package session

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/mpwizard/internal/assembler"
	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/fragments"
)

// SkipDiscovery is the discovery selection meaning "target an existing
// class instead of discovering a new one".
const SkipDiscovery = "skip"

// BasicInfo is the identity of the management pack being built.
type BasicInfo struct {
	CompanyID   string `json:"companyId" yaml:"company_id"`
	AppName     string `json:"appName" yaml:"app_name"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

var upper = cases.Upper(language.Und)

// Normalize upper-cases the company id and strips the app name down to
// ASCII letters and digits.
func (b BasicInfo) Normalize() BasicInfo {
	b.CompanyID = upper.String(strings.TrimSpace(b.CompanyID))
	b.AppName = strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}

		return -1
	}, b.AppName)
	b.Version = strings.TrimSpace(b.Version)
	b.Description = strings.TrimSpace(b.Description)

	return b
}

// Record maps field ids to user supplied values.
type Record map[string]string

// Lookup returns the first non-blank value among keys.
func (r Record) Lookup(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}

	return "", false
}

func (r Record) clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}

// ComponentInstance is one selected occurrence of a fragment.
type ComponentInstance struct {
	FragmentKey string             `json:"fragmentKey"`
	InstanceID  string             `json:"instanceId"`
	Category    fragments.Category `json:"category"`
	// Ordinal is the per-key counter value the instance id was built from.
	Ordinal int `json:"ordinal"`
}

// FieldValue is one captured value together with the instance it belongs
// to. For the discovery category InstanceID is the fragment key.
type FieldValue struct {
	FragmentKey string `json:"fragmentKey"`
	InstanceID  string `json:"instanceId"`
	FieldID     string `json:"fieldId"`
	Value       string `json:"value"`
}

// InstanceID formats the id of the n-th instance of key.
func InstanceID(key string, n int) string {
	return fmt.Sprintf("%s-instance-%d", key, n)
}

// Session is the explicit working state passed to the core.
type Session struct {
	lib       *fragments.Library
	basic     BasicInfo
	discovery string
	instances map[fragments.Category][]ComponentInstance
	records   map[string]Record
	counters  map[string]int

	// Imported, when set, switches generation to merge mode.
	Imported *assembler.ImportedDocument
}

// New returns an empty session over lib.
func New(lib *fragments.Library) *Session {
	return &Session{
		lib:       lib,
		instances: make(map[fragments.Category][]ComponentInstance),
		records:   make(map[string]Record),
		counters:  make(map[string]int),
	}
}

// Library returns the catalog the session draws its keys from.
func (s *Session) Library() *fragments.Library {
	return s.lib
}

// BasicInfo returns the normalized identity.
func (s *Session) BasicInfo() BasicInfo {
	return s.basic
}

// Identity is the pack identity generation names new elements after. With
// an imported pack attached, blank parts come from the pack's own id and a
// matching identity takes the pack's spelling. An identity naming a
// different pack is rejected.
func (s *Session) Identity() (BasicInfo, error) {
	b := s.basic
	if s.Imported == nil {
		return b, nil
	}

	root := s.Imported.RootIdentifier
	if root.CompanyID == "" || root.AppName == "" {
		return b, nil
	}
	if b.CompanyID == "" && b.AppName == "" {
		b.CompanyID, b.AppName = root.CompanyID, root.AppName

		return b, nil
	}

	if b.CompanyID == "" {
		b.CompanyID = root.CompanyID
	}
	if b.AppName == "" {
		b.AppName = root.AppName
	}
	if !strings.EqualFold(b.CompanyID, root.CompanyID) || !strings.EqualFold(b.AppName, root.AppName) {
		return b, errors.NewValidationError(errors.ErrCodeIdentityMismatch,
			fmt.Sprintf("identity %s.%s does not match the imported pack %s", b.CompanyID, b.AppName, root))
	}
	b.CompanyID, b.AppName = root.CompanyID, root.AppName

	return b, nil
}

// SetBasicInfo normalizes and stores the identity.
func (s *Session) SetBasicInfo(b BasicInfo) {
	s.basic = b.Normalize()
}

// SelectDiscovery makes key the active discovery. Records of previously
// selected discoveries are kept so switching back restores them.
func (s *Session) SelectDiscovery(key string) error {
	if key == SkipDiscovery {
		s.SkipDiscovery("")

		return nil
	}

	def, ok := s.lib.Get(key)
	if !ok {
		return errors.NewValidationError(errors.ErrCodeUnknownFragment,
			fmt.Sprintf("unknown fragment %q", key))
	}
	if def.Category != fragments.CategoryDiscovery {
		return errors.NewValidationError(errors.ErrCodeInvalidCategory,
			fmt.Sprintf("fragment %q is a %s fragment, not a discovery", key, def.Category))
	}

	s.discovery = key
	if _, ok := s.records[key]; !ok {
		s.records[key] = Record(def.Defaults())
	}

	return nil
}

// SkipDiscovery selects no discovery; monitors and rules then target
// targetClass. An empty targetClass keeps any previously chosen one.
func (s *Session) SkipDiscovery(targetClass string) {
	s.discovery = SkipDiscovery
	rec, ok := s.records[SkipDiscovery]
	if !ok {
		rec = Record{}
		s.records[SkipDiscovery] = rec
	}
	if targetClass != "" {
		rec["targetClass"] = targetClass
	}
}

// ClearDiscovery removes the discovery selection.
func (s *Session) ClearDiscovery() {
	s.discovery = ""
}

// Discovery returns the selected discovery key, SkipDiscovery, or "".
func (s *Session) Discovery() string {
	return s.discovery
}

// DiscoveryActive reports whether a real discovery is selected.
func (s *Session) DiscoveryActive() bool {
	return s.discovery != "" && s.discovery != SkipDiscovery
}

// DiscoveryRecord returns the active discovery's record, or nil when no
// discovery is active.
func (s *Session) DiscoveryRecord() Record {
	if !s.DiscoveryActive() {
		return nil
	}

	return s.records[s.discovery].clone()
}

// SkipTarget returns the target class chosen when discovery is skipped.
func (s *Session) SkipTarget() string {
	if s.discovery != SkipDiscovery {
		return ""
	}

	return s.records[SkipDiscovery]["targetClass"]
}

// AddInstance selects one more instance of key with an empty record. Field
// defaults are applied at generation time, so only values that were set
// count as explicit.
func (s *Session) AddInstance(key string) (ComponentInstance, error) {
	def, ok := s.lib.Get(key)
	if !ok {
		return ComponentInstance{}, errors.NewValidationError(errors.ErrCodeUnknownFragment,
			fmt.Sprintf("unknown fragment %q", key))
	}
	if def.Category == fragments.CategoryDiscovery {
		return ComponentInstance{}, errors.NewValidationError(errors.ErrCodeInvalidCategory,
			fmt.Sprintf("fragment %q is a discovery; use SelectDiscovery", key))
	}

	inst := s.addInstance(def.Category, key)
	s.records[inst.InstanceID] = Record{}

	return inst, nil
}

func (s *Session) addInstance(cat fragments.Category, key string) ComponentInstance {
	s.counters[key]++
	n := s.counters[key]

	inst := ComponentInstance{
		FragmentKey: key,
		InstanceID:  InstanceID(key, n),
		Category:    cat,
		Ordinal:     n,
	}
	s.instances[cat] = append(s.instances[cat], inst)

	return inst
}

// RemoveInstance drops one instance and its record. Siblings keep their
// ids. Once the last instance of a key is gone its counter starts over.
func (s *Session) RemoveInstance(instanceID string) error {
	inst, ok := s.Instance(instanceID)
	if !ok {
		return errors.NewValidationError(errors.ErrCodeUnknownInstance,
			fmt.Sprintf("unknown instance %q", instanceID))
	}

	list := s.instances[inst.Category]
	kept := list[:0]
	for _, i := range list {
		if i.InstanceID != instanceID {
			kept = append(kept, i)
		}
	}
	s.instances[inst.Category] = kept
	delete(s.records, instanceID)

	if s.CountOf(inst.Category, inst.FragmentKey) == 0 {
		delete(s.counters, inst.FragmentKey)
	}

	return nil
}

// RemoveAllInstances drops every instance of key.
func (s *Session) RemoveAllInstances(key string) {
	for _, cat := range fragments.Categories {
		for _, inst := range s.Instances(cat) {
			if inst.FragmentKey == key {
				_ = s.RemoveInstance(inst.InstanceID)
			}
		}
	}
	delete(s.counters, key)
}

// Instance finds an instance by id.
func (s *Session) Instance(instanceID string) (ComponentInstance, bool) {
	for _, cat := range fragments.Categories {
		for _, inst := range s.instances[cat] {
			if inst.InstanceID == instanceID {
				return inst, true
			}
		}
	}

	return ComponentInstance{}, false
}

// Instances returns the instances of a category in selection order.
func (s *Session) Instances(cat fragments.Category) []ComponentInstance {
	out := make([]ComponentInstance, len(s.instances[cat]))
	copy(out, s.instances[cat])

	return out
}

// CountOf counts the selected instances of key within a category.
func (s *Session) CountOf(cat fragments.Category, key string) int {
	n := 0
	for _, inst := range s.instances[cat] {
		if inst.FragmentKey == key {
			n++
		}
	}

	return n
}

// Record returns a copy of the record stored under id, which is an
// instance id or, for discovery, a fragment key.
func (s *Session) Record(id string) Record {
	return s.records[id].clone()
}

// Set stores one field value.
func (s *Session) Set(v FieldValue) error {
	if v.FieldID == "" {
		return errors.NewValidationError(errors.ErrCodeValidationFailed, "field id is required")
	}

	if v.FragmentKey == SkipDiscovery {
		if v.FieldID != "targetClass" {
			return errors.NewValidationError(errors.ErrCodeValidationFailed,
				fmt.Sprintf("skip discovery has no field %q", v.FieldID))
		}
		s.SkipDiscovery(v.Value)

		return nil
	}

	if v.InstanceID == "" || v.InstanceID == v.FragmentKey {
		def, ok := s.lib.Get(v.FragmentKey)
		if !ok || def.Category != fragments.CategoryDiscovery {
			return errors.NewValidationError(errors.ErrCodeUnknownInstance,
				fmt.Sprintf("%q is not a discovery fragment", v.FragmentKey))
		}
		rec, ok := s.records[v.FragmentKey]
		if !ok {
			rec = Record(def.Defaults())
			s.records[v.FragmentKey] = rec
		}
		rec[v.FieldID] = v.Value

		return nil
	}

	inst, ok := s.Instance(v.InstanceID)
	if !ok {
		return errors.NewValidationError(errors.ErrCodeUnknownInstance,
			fmt.Sprintf("unknown instance %q", v.InstanceID))
	}
	if inst.FragmentKey != v.FragmentKey {
		return errors.NewValidationError(errors.ErrCodeUnknownInstance,
			fmt.Sprintf("instance %q belongs to %q, not %q", v.InstanceID, inst.FragmentKey, v.FragmentKey))
	}

	rec, ok := s.records[v.InstanceID]
	if !ok {
		rec = Record{}
		s.records[v.InstanceID] = rec
	}
	rec[v.FieldID] = v.Value

	return nil
}

// SelectedKeys lists the fragment keys in generation order: the active
// discovery, then monitors, then rules.
func (s *Session) SelectedKeys() []string {
	var keys []string
	if s.DiscoveryActive() {
		keys = append(keys, s.discovery)
	}
	for _, cat := range []fragments.Category{fragments.CategoryMonitors, fragments.CategoryRules} {
		for _, inst := range s.instances[cat] {
			keys = append(keys, inst.FragmentKey)
		}
	}

	return keys
}
