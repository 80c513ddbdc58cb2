package session

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/mpwizard/internal/assembler"
	"github.com/conneroisu/mpwizard/internal/errors"
	"github.com/conneroisu/mpwizard/internal/fragments"
)

func newSession(t *testing.T) *Session {
	t.Helper()

	return New(fragments.Default())
}

func TestBasicInfoNormalize(t *testing.T) {
	b := BasicInfo{CompanyID: "  acme ", AppName: "Widget App-2!", Version: " 1.2.3.4 "}.Normalize()

	assert.Equal(t, "ACME", b.CompanyID)
	assert.Equal(t, "WidgetApp2", b.AppName)
	assert.Equal(t, "1.2.3.4", b.Version)
}

func TestRecordLookup(t *testing.T) {
	r := Record{"uniqueId": "  ", "uniqueid": "Legacy", "other": "x"}

	v, ok := r.Lookup("uniqueId", "uniqueid")
	assert.True(t, ok)
	assert.Equal(t, "Legacy", v)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestAddInstanceProducesDistinctIDs(t *testing.T) {
	s := newSession(t)

	ids := make(map[string]bool)
	for i := 1; i <= 3; i++ {
		inst, err := s.AddInstance("process-monitor")
		require.NoError(t, err)
		assert.Equal(t, fragments.CategoryMonitors, inst.Category)
		assert.Equal(t, i, inst.Ordinal)
		assert.Equal(t, InstanceID("process-monitor", i), inst.InstanceID)
		ids[inst.InstanceID] = true
	}

	assert.Len(t, ids, 3)
	assert.Equal(t, 3, s.CountOf(fragments.CategoryMonitors, "process-monitor"))
}

func TestAddInstanceRecordHoldsOnlySetValues(t *testing.T) {
	s := newSession(t)

	inst, err := s.AddInstance("process-monitor")
	require.NoError(t, err)
	assert.Empty(t, s.Record(inst.InstanceID), "field defaults are not explicit values")

	require.NoError(t, s.Set(FieldValue{FragmentKey: "process-monitor", InstanceID: inst.InstanceID, FieldID: "processName", Value: "w3wp.exe"}))
	assert.Equal(t, Record{"processName": "w3wp.exe"}, s.Record(inst.InstanceID))

	st := s.State()
	restored, err := FromState(fragments.Default(), st)
	require.NoError(t, err)
	assert.Equal(t, Record{"processName": "w3wp.exe"}, restored.Record(inst.InstanceID))
}

func TestAddInstanceRejectsBadKeys(t *testing.T) {
	s := newSession(t)

	_, err := s.AddInstance("no-such-fragment")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = s.AddInstance("registry-key")
	assert.Error(t, err, "discoveries are selected, not added")
}

func TestRemoveInstanceKeepsSiblingIDs(t *testing.T) {
	s := newSession(t)

	first, _ := s.AddInstance("process-monitor")
	second, _ := s.AddInstance("process-monitor")
	require.NoError(t, s.RemoveInstance(first.InstanceID))

	remaining := s.Instances(fragments.CategoryMonitors)
	require.Len(t, remaining, 1)
	assert.Equal(t, second.InstanceID, remaining[0].InstanceID)
	assert.Nil(t, s.Record(first.InstanceID))

	third, err := s.AddInstance("process-monitor")
	require.NoError(t, err)
	assert.Equal(t, "process-monitor-instance-3", third.InstanceID, "counters are never reused")
}

func TestCounterResetsAfterRemovingAll(t *testing.T) {
	s := newSession(t)

	a, _ := s.AddInstance("service-monitor")
	b, _ := s.AddInstance("service-monitor")
	require.NoError(t, s.RemoveInstance(a.InstanceID))
	require.NoError(t, s.RemoveInstance(b.InstanceID))

	c, err := s.AddInstance("service-monitor")
	require.NoError(t, err)
	assert.Equal(t, "service-monitor-instance-1", c.InstanceID)

	s.RemoveAllInstances("service-monitor")
	assert.Empty(t, s.Instances(fragments.CategoryMonitors))
	d, _ := s.AddInstance("service-monitor")
	assert.Equal(t, "service-monitor-instance-1", d.InstanceID)

	assert.Error(t, s.RemoveInstance("service-monitor-instance-9"))
}

func TestSetUsesExplicitTriple(t *testing.T) {
	s := newSession(t)
	inst, _ := s.AddInstance("service-monitor")

	require.NoError(t, s.Set(FieldValue{FragmentKey: "service-monitor", InstanceID: inst.InstanceID, FieldID: "serviceName", Value: "W3SVC"}))
	assert.Equal(t, "W3SVC", s.Record(inst.InstanceID)["serviceName"])

	err := s.Set(FieldValue{FragmentKey: "process-monitor", InstanceID: inst.InstanceID, FieldID: "processName", Value: "x"})
	assert.Error(t, err, "fragment key must match the instance")

	err = s.Set(FieldValue{FragmentKey: "service-monitor", InstanceID: "service-monitor-instance-7", FieldID: "serviceName", Value: "x"})
	assert.Error(t, err)

	err = s.Set(FieldValue{FragmentKey: "service-monitor", InstanceID: inst.InstanceID, Value: "x"})
	assert.Error(t, err)
}

func TestDiscoverySelection(t *testing.T) {
	s := newSession(t)
	assert.False(t, s.DiscoveryActive())
	assert.Nil(t, s.DiscoveryRecord())

	require.NoError(t, s.SelectDiscovery("registry-key"))
	require.NoError(t, s.Set(FieldValue{FragmentKey: "registry-key", FieldID: "uniqueId", Value: "Agent"}))
	assert.True(t, s.DiscoveryActive())
	assert.Equal(t, "Agent", s.DiscoveryRecord()["uniqueId"])
	assert.Equal(t, "Windows!Microsoft.Windows.Server.OperatingSystem", s.DiscoveryRecord()["targetClass"])

	s.SkipDiscovery("Windows!Microsoft.Windows.Computer")
	assert.False(t, s.DiscoveryActive())
	assert.Nil(t, s.DiscoveryRecord())
	assert.Equal(t, "Windows!Microsoft.Windows.Computer", s.SkipTarget())

	require.NoError(t, s.SelectDiscovery("registry-key"))
	assert.Equal(t, "Agent", s.DiscoveryRecord()["uniqueId"], "switching back restores the record")
	assert.Empty(t, s.SkipTarget())

	assert.Error(t, s.SelectDiscovery("service-monitor"))
	assert.Error(t, s.SelectDiscovery("nope"))

	require.NoError(t, s.Set(FieldValue{FragmentKey: SkipDiscovery, FieldID: "targetClass", Value: "X!Y"}))
	assert.Equal(t, SkipDiscovery, s.Discovery())
	assert.Equal(t, "X!Y", s.SkipTarget())
}

func TestSelectedKeysOrder(t *testing.T) {
	s := newSession(t)
	_, _ = s.AddInstance("event-alert-rule")
	_, _ = s.AddInstance("process-monitor")
	require.NoError(t, s.SelectDiscovery("wmi-query"))
	_, _ = s.AddInstance("service-monitor")

	assert.Equal(t, []string{"wmi-query", "process-monitor", "service-monitor", "event-alert-rule"}, s.SelectedKeys())
}

func TestStateRoundTrip(t *testing.T) {
	s := newSession(t)
	s.SetBasicInfo(BasicInfo{CompanyID: "acme", AppName: "Widget"})
	require.NoError(t, s.SelectDiscovery("service-discovery"))
	require.NoError(t, s.Set(FieldValue{FragmentKey: "service-discovery", FieldID: "serviceName", Value: "W3SVC"}))
	a, _ := s.AddInstance("process-monitor")
	b, _ := s.AddInstance("process-monitor")
	require.NoError(t, s.RemoveInstance(a.InstanceID))
	require.NoError(t, s.Set(FieldValue{FragmentKey: "process-monitor", InstanceID: b.InstanceID, FieldID: "processName", Value: "calc.exe"}))

	for _, name := range []string{"state.yaml", "state.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, SaveStateFile(path, s.State()))

			st, err := LoadStateFile(path)
			require.NoError(t, err)

			restored, err := FromState(fragments.Default(), st)
			require.NoError(t, err)

			assert.Equal(t, s.State(), restored.State())

			next, err := restored.AddInstance("process-monitor")
			require.NoError(t, err)
			assert.Equal(t, "process-monitor-instance-3", next.InstanceID)
		})
	}
}

func TestFromStateAssignsAndValidatesIDs(t *testing.T) {
	st := State{
		BasicInfo: BasicInfo{CompanyID: "ACME", AppName: "Widget"},
		Discovery: &DiscoveryState{Key: SkipDiscovery, Config: map[string]string{"targetClass": "Windows!Microsoft.Windows.Computer"}},
		Monitors: []InstanceState{
			{Key: "process-monitor"},
			{Key: "process-monitor", InstanceID: "process-monitor-instance-1"},
			{Key: "retired-monitor"},
		},
	}

	s, err := FromState(fragments.Default(), st)
	require.NoError(t, err)

	insts := s.Instances(fragments.CategoryMonitors)
	require.Len(t, insts, 3)
	assert.Equal(t, "process-monitor-instance-2", insts[0].InstanceID)
	assert.Equal(t, "process-monitor-instance-1", insts[1].InstanceID)
	assert.Equal(t, "retired-monitor-instance-1", insts[2].InstanceID)
	assert.Equal(t, "Windows!Microsoft.Windows.Computer", s.SkipTarget())

	st.Monitors = []InstanceState{{Key: "process-monitor", InstanceID: "service-monitor-instance-1"}}
	_, err = FromState(fragments.Default(), st)
	assert.Error(t, err)

	st.Monitors = []InstanceState{
		{Key: "process-monitor", InstanceID: "process-monitor-instance-1"},
		{Key: "process-monitor", InstanceID: "process-monitor-instance-1"},
	}
	_, err = FromState(fragments.Default(), st)
	assert.Error(t, err)
}

func TestLoadStateFileErrors(t *testing.T) {
	_, err := LoadStateFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestWizardScriptedRun(t *testing.T) {
	answers := strings.Join([]string{
		"acme",              // company
		"Widget",            // app name
		"",                  // version default
		"Demo pack",         // description
		"skip",              // discovery
		"Windows!Microsoft.Windows.Computer",
		"service-monitor",   // add monitor
		"",                  // uniqueId
		"W3SVC",             // serviceName
		"High",              // priority
		"",                  // severity default
		"done",              // monitors done
		"done",              // rules done
	}, "\n") + "\n"

	var out strings.Builder
	s, err := NewWizard(fragments.Default(), strings.NewReader(answers), &out).Run()
	require.NoError(t, err)

	assert.Equal(t, "ACME", s.BasicInfo().CompanyID)
	assert.Equal(t, "1.0.0.0", s.BasicInfo().Version)
	assert.Equal(t, "Windows!Microsoft.Windows.Computer", s.SkipTarget())

	monitors := s.Instances(fragments.CategoryMonitors)
	require.Len(t, monitors, 1)
	rec := s.Record(monitors[0].InstanceID)
	assert.Equal(t, "W3SVC", rec["serviceName"])
	assert.Equal(t, "High", rec["alertPriority"])
	_, severitySet := rec["alertSeverity"]
	assert.False(t, severitySet, "an accepted default is not stored")
	assert.Contains(t, out.String(), "Configuration completed.")
}

func TestWizardRequiresIdentity(t *testing.T) {
	_, err := NewWizard(fragments.Default(), strings.NewReader(""), &strings.Builder{}).Run()
	assert.Error(t, err)
}

func TestIdentityFollowsImportedPack(t *testing.T) {
	imported := &assembler.ImportedDocument{
		RootIdentifier: assembler.RootIdentifier{CompanyID: "Acme", AppName: "Widget"},
	}

	tests := []struct {
		name     string
		basic    BasicInfo
		want     BasicInfo
		mismatch bool
	}{
		{"blank takes the pack id", BasicInfo{}, BasicInfo{CompanyID: "Acme", AppName: "Widget"}, false},
		{"missing app name is filled", BasicInfo{CompanyID: "ACME"}, BasicInfo{CompanyID: "Acme", AppName: "Widget"}, false},
		{"case-insensitive match keeps the pack spelling", BasicInfo{CompanyID: "acme", AppName: "WIDGET"}, BasicInfo{CompanyID: "Acme", AppName: "Widget"}, false},
		{"other company", BasicInfo{CompanyID: "FOO", AppName: "Widget"}, BasicInfo{}, true},
		{"other app", BasicInfo{CompanyID: "ACME", AppName: "Gadget"}, BasicInfo{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t)
			s.SetBasicInfo(tt.basic)
			s.Imported = imported

			got, err := s.Identity()
			if tt.mismatch {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeIdentityMismatch, errors.CodeOf(err))

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.CompanyID, got.CompanyID)
			assert.Equal(t, tt.want.AppName, got.AppName)
		})
	}

	s := newSession(t)
	s.SetBasicInfo(BasicInfo{CompanyID: "FOO", AppName: "Bar"})
	got, err := s.Identity()
	require.NoError(t, err, "without an import the session identity stands")
	assert.Equal(t, "FOO", got.CompanyID)
}
