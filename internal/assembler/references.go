package assembler

import (
	"slices"

	"github.com/beevik/etree"
)

// Reference is one management pack library the output depends on.
type Reference struct {
	Alias          string `json:"alias" yaml:"alias"`
	ID             string `json:"id" yaml:"id"`
	Version        string `json:"version" yaml:"version"`
	PublicKeyToken string `json:"publicKeyToken" yaml:"public_key_token"`
}

const microsoftKeyToken = "31bf3856ad364e35"

var baselineReferences = []Reference{
	{Alias: "System", ID: "System.Library", Version: "7.5.8501.0", PublicKeyToken: microsoftKeyToken},
	{Alias: "Windows", ID: "Microsoft.Windows.Library", Version: "7.5.8501.0", PublicKeyToken: microsoftKeyToken},
	{Alias: "Health", ID: "System.Health.Library", Version: "7.0.8437.0", PublicKeyToken: microsoftKeyToken},
}

// conditionalReferences are added only when one of the trigger fragment
// keys is selected. Keys are matched exactly.
var conditionalReferences = []struct {
	Reference
	triggers []string
}{
	{
		Reference: Reference{Alias: "PowerShellMonitoring", ID: "Community.PowerShellMonitoring", Version: "1.1.1.2", PublicKeyToken: "3aa540324b898d3c"},
		triggers:  []string{"powershell-script-monitor-3state"},
	},
	{
		Reference: Reference{Alias: "Performance", ID: "System.Performance.Library", Version: "7.0.8437.0", PublicKeyToken: microsoftKeyToken},
		triggers:  []string{"performance-monitor", "performance-monitor-multi-instance", "process-performance-monitor", "performance-collection-rule"},
	},
	{
		Reference: Reference{Alias: "SC", ID: "Microsoft.SystemCenter.Library", Version: "7.0.8437.0", PublicKeyToken: microsoftKeyToken},
		triggers:  []string{"performance-collection-rule"},
	},
	{
		Reference: Reference{Alias: "Snmp", ID: "System.Snmp.Library", Version: "7.0.8437.0", PublicKeyToken: microsoftKeyToken},
		triggers:  []string{"snmp-monitor"},
	},
}

// References returns the baseline references followed by those triggered
// by the selected fragment keys.
func References(selectedKeys []string) []Reference {
	out := slices.Clone(baselineReferences)
	for _, c := range conditionalReferences {
		for _, key := range selectedKeys {
			if slices.Contains(c.triggers, key) {
				out = append(out, c.Reference)

				break
			}
		}
	}

	return out
}

func (r Reference) element() *etree.Element {
	el := etree.NewElement("Reference")
	el.CreateAttr("Alias", r.Alias)
	el.CreateElement("ID").SetText(r.ID)
	el.CreateElement("Version").SetText(r.Version)
	el.CreateElement("PublicKeyToken").SetText(r.PublicKeyToken)

	return el
}
