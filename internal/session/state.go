package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/fragments"
)

// State is the serializable form of a session, shared by state files, the
// HTTP API and the interactive wizard.
type State struct {
	BasicInfo BasicInfo       `json:"basicInfo" yaml:"basic_info"`
	Discovery *DiscoveryState `json:"discovery,omitempty" yaml:"discovery,omitempty"`
	Monitors  []InstanceState `json:"monitors,omitempty" yaml:"monitors,omitempty"`
	Rules     []InstanceState `json:"rules,omitempty" yaml:"rules,omitempty"`
	Groups    []InstanceState `json:"groups,omitempty" yaml:"groups,omitempty"`
	Tasks     []InstanceState `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Views     []InstanceState `json:"views,omitempty" yaml:"views,omitempty"`
}

// DiscoveryState is the discovery selection. Key may be SkipDiscovery, in
// which case Config carries only targetClass.
type DiscoveryState struct {
	Key    string            `json:"key" yaml:"key"`
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

// InstanceState is one selected instance and its values.
type InstanceState struct {
	Key        string            `json:"key" yaml:"key"`
	InstanceID string            `json:"instanceId,omitempty" yaml:"instance_id,omitempty"`
	Config     map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

func (st *State) category(c fragments.Category) *[]InstanceState {
	switch c {
	case fragments.CategoryMonitors:
		return &st.Monitors
	case fragments.CategoryRules:
		return &st.Rules
	case fragments.CategoryGroups:
		return &st.Groups
	case fragments.CategoryTasks:
		return &st.Tasks
	case fragments.CategoryViews:
		return &st.Views
	default:
		return nil
	}
}

// State snapshots the session.
func (s *Session) State() State {
	st := State{BasicInfo: s.basic}

	switch {
	case s.discovery == SkipDiscovery:
		st.Discovery = &DiscoveryState{Key: SkipDiscovery, Config: s.records[SkipDiscovery].clone()}
	case s.discovery != "":
		st.Discovery = &DiscoveryState{Key: s.discovery, Config: s.records[s.discovery].clone()}
	}

	for _, cat := range fragments.Categories[1:] {
		list := st.category(cat)
		for _, inst := range s.instances[cat] {
			*list = append(*list, InstanceState{
				Key:        inst.FragmentKey,
				InstanceID: inst.InstanceID,
				Config:     s.records[inst.InstanceID].clone(),
			})
		}
	}

	return st
}

// FromState rebuilds a session. Instance ids are kept when they follow the
// {key}-instance-{N} format and assigned otherwise. Keys missing from the
// library are kept so generation can report them.
func FromState(lib *fragments.Library, st State) (*Session, error) {
	s := New(lib)
	s.SetBasicInfo(st.BasicInfo)

	if d := st.Discovery; d != nil && d.Key != "" {
		if d.Key == SkipDiscovery {
			s.SkipDiscovery(d.Config["targetClass"])
		} else {
			if err := s.SelectDiscovery(d.Key); err != nil {
				return nil, err
			}
			for k, v := range d.Config {
				s.records[d.Key][k] = v
			}
		}
	}

	// Reserve explicit ids first so assigned ids never collide with them.
	for _, cat := range fragments.Categories[1:] {
		for _, is := range *st.category(cat) {
			if n, ok := parseOrdinal(is.Key, is.InstanceID); ok && n > s.counters[is.Key] {
				s.counters[is.Key] = n
			}
		}
	}

	for _, cat := range fragments.Categories[1:] {
		for _, is := range *st.category(cat) {
			if is.Key == "" {
				return nil, errors.NewValidationError(errors.ErrCodeValidationFailed,
					fmt.Sprintf("%s entry without a key", cat))
			}

			inst, err := s.restoreInstance(cat, is)
			if err != nil {
				return nil, err
			}

			rec := Record{}
			for k, v := range is.Config {
				rec[k] = v
			}
			s.records[inst.InstanceID] = rec
		}
	}

	return s, nil
}

func (s *Session) restoreInstance(cat fragments.Category, is InstanceState) (ComponentInstance, error) {
	if is.InstanceID == "" {
		return s.addInstance(cat, is.Key), nil
	}

	n, ok := parseOrdinal(is.Key, is.InstanceID)
	if !ok {
		return ComponentInstance{}, errors.NewValidationError(errors.ErrCodeValidationFailed,
			fmt.Sprintf("instance id %q does not match %s-instance-N", is.InstanceID, is.Key))
	}
	if _, dup := s.Instance(is.InstanceID); dup {
		return ComponentInstance{}, errors.NewValidationError(errors.ErrCodeValidationFailed,
			fmt.Sprintf("duplicate instance id %q", is.InstanceID))
	}

	inst := ComponentInstance{FragmentKey: is.Key, InstanceID: is.InstanceID, Category: cat, Ordinal: n}
	s.instances[cat] = append(s.instances[cat], inst)
	if n > s.counters[is.Key] {
		s.counters[is.Key] = n
	}

	return inst, nil
}

// parseOrdinal checks that id was built by InstanceID for key and returns
// its counter. The key is known, so no prefix guessing is involved.
func parseOrdinal(key, id string) (int, bool) {
	prefix := key + "-instance-"
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
	if err != nil || n < 1 {
		return 0, false
	}

	return n, true
}

// LoadStateFile reads a YAML or JSON state file, chosen by extension.
func LoadStateFile(path string) (State, error) {
	var st State

	data, err := os.ReadFile(path)
	if err != nil {
		return st, errors.NewIOError(errors.ErrCodeFileNotFound, "read state file "+path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &st)
	} else {
		err = yaml.Unmarshal(data, &st)
	}
	if err != nil {
		return st, errors.NewValidationError(errors.ErrCodeStateDecodeFailure,
			fmt.Sprintf("decode state file %s: %v", path, err))
	}

	return st, nil
}

// SaveStateFile writes st as YAML, or JSON for a .json path.
func SaveStateFile(path string, st State) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(st, "", "  ")
	} else {
		data, err = yaml.Marshal(st)
	}
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "encode state", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotFound, "write state file "+path, err)
	}

	return nil
}
