// Package resolver builds the placeholder substitution map for one fragment
// instance from its configuration record, the active discovery and the pack
// identity.
package resolver

import (
	"strconv"
	"strings"

	"github.com/conneroisu/mpwizard/internal/fragments"
	"github.com/conneroisu/mpwizard/internal/session"
)

// Defaults used when neither the instance nor the discovery supplies a value.
const (
	DefaultCompanyID   = "COMPANY"
	DefaultAppName     = "MyApp"
	DefaultUniqueID    = "Application"
	DefaultTargetClass = "Windows!Microsoft.Windows.Server.OperatingSystem"
)

// Input is everything the resolver looks at for one instance.
type Input struct {
	Basic       session.BasicInfo
	FragmentKey string
	InstanceID  string
	Category    fragments.Category
	Record      session.Record
	// Defaults are the fragment's field defaults. They apply after Record
	// and, for the target class, after the discovery and skip target.
	Defaults session.Record

	// Discovery is the active discovery's record, nil when no discovery is
	// selected or discovery is skipped.
	Discovery session.Record
	// SkipTarget is the target class chosen when discovery is skipped.
	SkipTarget string

	// SiblingCount is the number of selected instances sharing FragmentKey.
	SiblingCount int
	// Ordinal is the instance counter. When zero it is read from the
	// trailing number of InstanceID.
	Ordinal int
	// ForceSuffix adds the .InstanceN suffix to a lone instance, so that a
	// new element can step past an identifier that is already taken.
	ForceSuffix bool
}

// DiscoveryActive reports whether monitors and rules hang off a discovered
// class.
func (in Input) DiscoveryActive() bool {
	return in.Discovery != nil
}

// field is one logical value with its ordered key variants.
type field struct {
	token string
	keys  []string
	def   string
}

var fields = []field{
	{"RegKeyPath", []string{"regKeyPath", "regkeypath"}, `SOFTWARE\MyCompany\MyApplication`},
	{"ServiceName", []string{"serviceName", "servicename"}, "YourService"},
	{"WMIQuery", []string{"wmiQuery", "wmiquery"}, `SELECT * FROM Win32_Service WHERE Name = "YourService"`},
	{"Namespace", []string{"namespace"}, `root\cimv2`},
	{"ScriptType", []string{"scriptType", "scripttype"}, "PowerShell"},
	{"ScriptBody", []string{"scriptBody", "scriptbody"}, "# Enter your script here"},
	{"SCRIPT_BODY", []string{"scriptBody", "scriptbody"}, fragments.DefaultStateScript},
	{"ValueName", []string{"valueName", "valuename"}, ""},
	{"AlertPriority", []string{"alertPriority", "alertpriority"}, "Normal"},
	{"AlertSeverity", []string{"alertSeverity", "alertseverity"}, "Error"},
	{"ObjectName", []string{"objectName", "counterObject", "counterobject"}, "Processor"},
	{"CounterName", []string{"counterName", "countername"}, "% Processor Time"},
	{"InstanceName", []string{"instanceName", "instance"}, "_Total"},
	{"FrequencySeconds", []string{"frequencySeconds", "intervalseconds", "intervalSeconds"}, "300"},
	{"IntervalSeconds", []string{"intervalSeconds", "frequencySeconds", "intervalseconds"}, "300"},
	{"EventID", []string{"eventId", "eventid"}, "1234"},
	{"Threshold", []string{"threshold", "warningThreshold", "warningthreshold"}, "80"},
	{"Samples", []string{"samples"}, "3"},
	{"ProcessName", []string{"processName", "processname"}, "notepad.exe"},
	{"MinProcessCount", []string{"minProcessCount", "minprocesscount"}, "1"},
	{"MaxProcessCount", []string{"maxProcessCount", "maxprocesscount"}, "10"},
	{"MatchCount", []string{"matchCount", "matchcount"}, "2"},
	{"LogName", []string{"logName", "logname"}, "Application"},
	{"EventSource", []string{"eventSource", "eventsource"}, ""},
	{"EventId", []string{"eventId", "eventid"}, ""},
	{"EventLevel", []string{"eventLevel", "eventlevel"}, "Error"},
	{"ExpectedValue", []string{"expectedValue", "expectedvalue"}, ""},
	{"CounterObject", []string{"counterObject", "counterobject"}, "Processor"},
	{"Instance", []string{"instanceName", "instance"}, "_Total"},
	{"WarningThreshold", []string{"warningThreshold", "warningthreshold"}, "80"},
	{"CriticalThreshold", []string{"criticalThreshold", "criticalthreshold"}, "95"},
	{"PortNumber", []string{"portNumber", "portnumber"}, "80"},
	{"Protocol", []string{"protocol"}, "TCP"},
	{"Timeout", []string{"timeout"}, "10"},
	{"FolderPath", []string{"folderPath", "folderpath"}, `C:\Logs`},
	{"FileExtensionFilter", []string{"fileExtensionFilter", "fileextensionfilter"}, "*.log"},
	{"FileNameFilter", []string{"fileNameFilter", "filenamefilter"}, "*.log"},
	{"FileAgeThresholdMinutes", []string{"fileAgeThresholdMinutes", "fileagethresholdminutes"}, "60"},
	{"FileSizeThresholdKB", []string{"fileSizeThresholdKB", "filesizethresholdkb"}, "1024"},
	{"FileCountThreshold", []string{"fileCountThreshold", "filecountthreshold"}, "1"},
	{"UNCPath", []string{"uncPath", "uncpath"}, `\\server\share`},
	{"WarningThresholdPercent", []string{"warningThresholdPercent", "warningthresholdpercent"}, "20"},
	{"CriticalThresholdPercent", []string{"criticalThresholdPercent", "criticalthresholdpercent"}, "10"},
	{"SQLServer", []string{"sqlServer", "sqlserver"}, "localhost"},
	{"SQLDBName", []string{"sqlDBName", "sqldbname"}, "master"},
	{"SQLQuery", []string{"sqlQuery", "sqlquery"}, "SELECT 1"},
	{"RowCountThreshold", []string{"rowCountThreshold", "rowcountthreshold"}, "1"},
	{"FilePath", []string{"filePath", "filepath"}, `C:\Logs\app.log`},
	{"SearchString", []string{"searchString", "searchstring"}, "ERROR"},
	{"MatchThreshold", []string{"matchThreshold", "matchthreshold"}, "1"},
	{"Param1", []string{"param1"}, ""},
	{"Param2", []string{"param2"}, ""},
	{"ThresholdMinutes", []string{"thresholdMinutes", "thresholdminutes"}, "60"},
	{"ComparisonType", []string{"comparisonType", "comparisontype"}, "Greater Than"},
	{"OID", []string{"oid"}, "1.3.6.1.2.1.1.3.0"},
	{"Community", []string{"community"}, "public"},
	{"Port", []string{"port"}, "161"},
	{"ShellCommand", []string{"shellCommand", "shellcommand"}, `echo "test"`},
}

// code maps a select value onto the numeric code the platform expects.
type code struct {
	token string
	keys  []string
	def   string
	table map[string]string
}

var codes = []code{
	{"EventLevelCode", []string{"eventLevel", "eventlevel"}, "Error", map[string]string{
		"Error": "1", "Warning": "2", "Information": "4",
	}},
	{"AlertPriorityCode", []string{"alertPriority", "alertpriority"}, "Normal", map[string]string{
		"Low": "0", "Normal": "1", "High": "2",
	}},
	{"AlertSeverityCode", []string{"alertSeverity", "alertseverity"}, "Error", map[string]string{
		"Information": "0", "Warning": "1", "Error": "2",
	}},
	{"ComparisonOperator", []string{"comparisonType", "comparisontype"}, "Greater Than", map[string]string{
		"Greater Than": "Greater", "Less Than": "Less",
	}},
}

// Resolve returns the escaped value of every token, keyed by name without
// the ## delimiters.
func Resolve(in Input) map[string]string {
	raw := resolveRaw(in)

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = Escape(v)
	}

	return out
}

func resolveRaw(in Input) map[string]string {
	out := make(map[string]string, len(fields)+len(codes)+6)

	for _, f := range fields {
		out[f.token] = in.value(f.keys, f.def)
	}
	for _, c := range codes {
		v := in.value(c.keys, c.def)
		n, ok := c.table[v]
		if !ok {
			n = c.table[c.def]
		}
		out[c.token] = n
	}

	company := nonBlank(in.Basic.CompanyID, DefaultCompanyID)
	app := nonBlank(in.Basic.AppName, DefaultAppName)
	out["CompanyID"] = company
	out["AppName"] = app
	out["TargetClass"] = targetClass(in)
	out["UniqueID"] = uniqueID(in)

	if in.DiscoveryActive() {
		id := lookup(in.Discovery, uniqueIDKeys, DefaultUniqueID)
		out["ClassID"] = company + "." + app + "." + id + ".Class"
	} else {
		out["ClassID"] = out["TargetClass"]
	}

	return out
}

var (
	uniqueIDKeys    = []string{"uniqueId", "uniqueid"}
	targetClassKeys = []string{"targetClass", "targetclass"}
)

// uniqueID picks the discovery's identifier when a discovery is active,
// since monitors and rules then belong to the discovered class. Repeated
// monitors and rules get an .InstanceN suffix.
func uniqueID(in Input) string {
	var id string
	if in.DiscoveryActive() {
		id = lookup(in.Discovery, uniqueIDKeys, DefaultUniqueID)
	} else {
		id = in.value(uniqueIDKeys, DefaultUniqueID)
	}

	if in.Category == fragments.CategoryDiscovery || (in.SiblingCount <= 1 && !in.ForceSuffix) {
		return id
	}
	if n := in.ordinal(); n > 0 {
		return id + ".Instance" + strconv.Itoa(n)
	}

	return id
}

// targetClass takes the instance's own value, then the discovery's, then
// the skip target, then the fragment default.
func targetClass(in Input) string {
	if v, ok := in.Record.Lookup(targetClassKeys...); ok {
		return v
	}
	if v, ok := in.Discovery.Lookup(targetClassKeys...); ok {
		return v
	}
	if strings.TrimSpace(in.SkipTarget) != "" {
		return in.SkipTarget
	}

	return lookup(in.Defaults, targetClassKeys, DefaultTargetClass)
}

// value looks keys up in the instance record, then in the fragment's field
// defaults.
func (in Input) value(keys []string, def string) string {
	if v, ok := in.Record.Lookup(keys...); ok {
		return v
	}

	return lookup(in.Defaults, keys, def)
}

func (in Input) ordinal() int {
	if in.Ordinal > 0 {
		return in.Ordinal
	}

	i := strings.LastIndex(in.InstanceID, "-")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(in.InstanceID[i+1:])
	if err != nil {
		return 0
	}

	return n
}

func lookup(r session.Record, keys []string, def string) string {
	if v, ok := r.Lookup(keys...); ok {
		return v
	}

	return def
}

func nonBlank(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}

	return v
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Escape replaces the five reserved XML characters with entity references.
func Escape(s string) string {
	return xmlEscaper.Replace(s)
}
