package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/mpwizard/internal/fragments"
	"github.com/conneroisu/mpwizard/internal/session"
)

var acme = session.BasicInfo{CompanyID: "ACME", AppName: "Widget"}

func TestResolveCoversEveryLibraryToken(t *testing.T) {
	values := Resolve(Input{FragmentKey: "service-monitor", Category: fragments.CategoryMonitors})

	for _, tok := range fragments.Default().Tokens() {
		_, ok := values[tok]
		assert.True(t, ok, "token %s has no value", tok)
	}
}

func TestResolveDefaults(t *testing.T) {
	values := Resolve(Input{FragmentKey: "process-monitor", Category: fragments.CategoryMonitors})

	assert.Equal(t, DefaultCompanyID, values["CompanyID"])
	assert.Equal(t, DefaultAppName, values["AppName"])
	assert.Equal(t, DefaultUniqueID, values["UniqueID"])
	assert.Equal(t, DefaultTargetClass, values["TargetClass"])
	assert.Equal(t, DefaultTargetClass, values["ClassID"])
	assert.Equal(t, "notepad.exe", values["ProcessName"])
	assert.Equal(t, "300", values["FrequencySeconds"])
	assert.Equal(t, `root\cimv2`, values["Namespace"])
	assert.Equal(t, "1", values["EventLevelCode"])
	assert.Equal(t, "1", values["AlertPriorityCode"])
	assert.Equal(t, "2", values["AlertSeverityCode"])
	assert.Equal(t, "", values["EventSource"])
}

func TestResolveKeyVariants(t *testing.T) {
	tests := []struct {
		name   string
		record session.Record
		token  string
		want   string
	}{
		{"camel case", session.Record{"serviceName": "W3SVC"}, "ServiceName", "W3SVC"},
		{"lower case", session.Record{"servicename": "Spooler"}, "ServiceName", "Spooler"},
		{"camel wins", session.Record{"serviceName": "A", "servicename": "B"}, "ServiceName", "A"},
		{"blank falls through", session.Record{"serviceName": "  ", "servicename": "B"}, "ServiceName", "B"},
		{"interval from frequency", session.Record{"frequencySeconds": "60"}, "IntervalSeconds", "60"},
		{"frequency from interval", session.Record{"intervalSeconds": "90"}, "FrequencySeconds", "90"},
		{"counter object alias", session.Record{"counterObject": "Memory"}, "ObjectName", "Memory"},
		{"instance alias", session.Record{"instance": "C:"}, "InstanceName", "C:"},
		{"warning threshold alias", session.Record{"warningThreshold": "70"}, "Threshold", "70"},
		{"event level code", session.Record{"eventLevel": "Warning"}, "EventLevelCode", "2"},
		{"unknown level uses default code", session.Record{"eventLevel": "Verbose"}, "EventLevelCode", "1"},
		{"priority code", session.Record{"alertPriority": "High"}, "AlertPriorityCode", "2"},
		{"severity code", session.Record{"alertSeverity": "Information"}, "AlertSeverityCode", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := Resolve(Input{Basic: acme, Record: tt.record, Category: fragments.CategoryMonitors})
			assert.Equal(t, tt.want, values[tt.token])
		})
	}
}

func TestUniqueIDFollowsDiscovery(t *testing.T) {
	in := Input{
		Basic:        acme,
		FragmentKey:  "service-monitor",
		InstanceID:   "service-monitor-instance-1",
		Category:     fragments.CategoryMonitors,
		Record:       session.Record{"uniqueId": "Own"},
		Discovery:    session.Record{"uniqueId": "Agent", "targetClass": "Windows!Microsoft.Windows.Computer"},
		SiblingCount: 1,
	}

	values := Resolve(in)
	assert.Equal(t, "Agent", values["UniqueID"])
	assert.Equal(t, "ACME.Widget.Agent.Class", values["ClassID"])
	assert.Equal(t, "Windows!Microsoft.Windows.Computer", values["TargetClass"])

	in.Discovery = nil
	values = Resolve(in)
	assert.Equal(t, "Own", values["UniqueID"])
	assert.Equal(t, DefaultTargetClass, values["ClassID"])
}

func TestDiscoveryWithoutUniqueIDUsesDefault(t *testing.T) {
	values := Resolve(Input{
		Basic:     acme,
		Category:  fragments.CategoryMonitors,
		Discovery: session.Record{"regKeyPath": `SOFTWARE\Acme`},
	})

	assert.Equal(t, "Application", values["UniqueID"])
	assert.Equal(t, "ACME.Widget.Application.Class", values["ClassID"])
}

func TestTargetClassChain(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{
			name: "instance value",
			in: Input{
				Record:     session.Record{"targetClass": "Mine!Class"},
				Discovery:  session.Record{"targetClass": "Disc!Class"},
				SkipTarget: "Skip!Class",
			},
			want: "Mine!Class",
		},
		{
			name: "lower case instance value",
			in:   Input{Record: session.Record{"targetclass": "Lower!Class"}},
			want: "Lower!Class",
		},
		{
			name: "discovery value",
			in:   Input{Discovery: session.Record{"targetClass": "Disc!Class"}, SkipTarget: "Skip!Class"},
			want: "Disc!Class",
		},
		{
			name: "skip target",
			in:   Input{SkipTarget: "Skip!Class"},
			want: "Skip!Class",
		},
		{
			name: "skip target beats the fragment default",
			in: Input{
				Defaults:   session.Record{"targetClass": "Windows!Microsoft.Windows.Server.OperatingSystem"},
				SkipTarget: "Windows!Microsoft.Windows.Computer",
			},
			want: "Windows!Microsoft.Windows.Computer",
		},
		{
			name: "fragment default",
			in:   Input{Defaults: session.Record{"targetClass": "Default!Class"}},
			want: "Default!Class",
		},
		{
			name: "fallback",
			in:   Input{},
			want: DefaultTargetClass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.in)["TargetClass"])
		})
	}
}

func TestInstanceSuffix(t *testing.T) {
	base := Input{Basic: acme, FragmentKey: "process-monitor", Category: fragments.CategoryMonitors}

	single := base
	single.InstanceID = "process-monitor-instance-4"
	single.SiblingCount = 1
	assert.Equal(t, "Application", Resolve(single)["UniqueID"])

	seen := make(map[string]bool)
	for _, id := range []string{"process-monitor-instance-1", "process-monitor-instance-2", "process-monitor-instance-3"} {
		in := base
		in.InstanceID = id
		in.SiblingCount = 3
		seen[Resolve(in)["UniqueID"]] = true
	}
	assert.Equal(t, map[string]bool{
		"Application.Instance1": true,
		"Application.Instance2": true,
		"Application.Instance3": true,
	}, seen)

	explicit := base
	explicit.InstanceID = "ignored"
	explicit.Ordinal = 7
	explicit.SiblingCount = 2
	assert.Equal(t, "Application.Instance7", Resolve(explicit)["UniqueID"])

	disc := base
	disc.Category = fragments.CategoryDiscovery
	disc.SiblingCount = 2
	disc.Ordinal = 1
	assert.Equal(t, "Application", Resolve(disc)["UniqueID"])
}

func TestResolveEscapesValues(t *testing.T) {
	values := Resolve(Input{
		Basic:    session.BasicInfo{CompanyID: "A&B", AppName: "App"},
		Category: fragments.CategoryMonitors,
		Record:   session.Record{"serviceName": `<svc "x" & 'y'>`},
	})

	assert.Equal(t, "&lt;svc &quot;x&quot; &amp; &apos;y&apos;&gt;", values["ServiceName"])
	assert.Equal(t, "A&amp;B", values["CompanyID"])
	assert.Equal(t, "A&amp;B.App.Application.Class", Resolve(Input{
		Basic:     session.BasicInfo{CompanyID: "A&B", AppName: "App"},
		Discovery: session.Record{},
	})["ClassID"])
}

func TestEscape(t *testing.T) {
	require.Equal(t, "plain", Escape("plain"))
	assert.Equal(t, "&amp;lt;", Escape("&lt;"), "ampersand is escaped once, first")
	assert.Equal(t, "&amp;&lt;&gt;&quot;&apos;", Escape(`&<>"'`))
}

func TestFragmentDefaultsFillUnsetFields(t *testing.T) {
	def, ok := fragments.Default().Get("process-monitor")
	require.True(t, ok)

	values := Resolve(Input{
		Basic:    acme,
		Category: fragments.CategoryMonitors,
		Record:   session.Record{"maxProcessCount": "4"},
		Defaults: session.Record(def.Defaults()),
	})

	assert.Equal(t, "60", values["FrequencySeconds"], "fragment default beats the table default")
	assert.Equal(t, "4", values["MaxProcessCount"], "set value beats the fragment default")
	assert.Equal(t, "notepad.exe", values["ProcessName"])
}

func TestForceSuffixOnLoneInstance(t *testing.T) {
	in := Input{
		Basic:        acme,
		FragmentKey:  "process-monitor",
		InstanceID:   "process-monitor-instance-1",
		Category:     fragments.CategoryMonitors,
		SiblingCount: 1,
		Ordinal:      2,
		ForceSuffix:  true,
	}
	assert.Equal(t, "Application.Instance2", Resolve(in)["UniqueID"])

	in.Category = fragments.CategoryDiscovery
	assert.Equal(t, "Application", Resolve(in)["UniqueID"], "discoveries never take a suffix")
}

func TestResolveFileAndNetworkTokens(t *testing.T) {
	values := Resolve(Input{Basic: acme, Category: fragments.CategoryMonitors})

	assert.Equal(t, `C:\Logs`, values["FolderPath"])
	assert.Equal(t, `\\server\share`, values["UNCPath"])
	assert.Equal(t, "161", values["Port"])
	assert.Equal(t, "Greater", values["ComparisonOperator"])

	values = Resolve(Input{Basic: acme, Category: fragments.CategoryMonitors, Record: session.Record{
		"comparisonType": "Less Than",
		"sqlQuery":       "SELECT * FROM t WHERE a < 3",
	}})
	assert.Equal(t, "Less", values["ComparisonOperator"])
	assert.Equal(t, "SELECT * FROM t WHERE a &lt; 3", values["SQLQuery"])
}
