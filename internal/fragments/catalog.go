package fragments

const (
	classOS       = "Windows!Microsoft.Windows.Server.OperatingSystem"
	classComputer = "Windows!Microsoft.Windows.Computer"
)

var targetClassField = FieldSpec{
	ID:      "targetClass",
	Label:   "Target Class",
	Kind:    KindSelect,
	Default: classOS,
	Options: []string{classOS, classComputer},
}

func uniqueIDField(placeholder string, required bool) FieldSpec {
	return FieldSpec{
		ID:          "uniqueId",
		Label:       "Unique ID (no spaces)",
		Kind:        KindText,
		Required:    required,
		Placeholder: placeholder,
	}
}

func intervalField(id, def string) FieldSpec {
	return FieldSpec{
		ID:       id,
		Label:    "Check Interval (seconds)",
		Kind:     KindNumber,
		Required: true,
		Default:  def,
	}
}

// DefaultStateScript is the sample script a three-state script monitor is
// seeded with.
const DefaultStateScript = ` $status=if(Get-Process -Name notepad -ErrorAction SilentlyContinue) { 1 } else {0}

if($status -eq 0) {
  $PropertyBag.AddValue("State","Bad")
}
elseif($status -eq "Warning") {
  $PropertyBag.AddValue("State","Warning")
}
else
{
  $PropertyBag.AddValue("State","Ok")
}`

func catalog() []*Definition {
	return []*Definition{
		{
			Key:         "registry-key",
			DisplayName: "Registry Key Discovery",
			Category:    CategoryDiscovery,
			Template:    Template{Inline: inline("registry-key")},
			Fields: []FieldSpec{
				{ID: "regKeyPath", Label: "Registry Key Path", Kind: KindText, Required: true, Placeholder: `SOFTWARE\MyCompany\MyApplication`},
				uniqueIDField("Application", true),
				targetClassField,
			},
		},
		{
			Key:         "registry-value",
			DisplayName: "Registry Value Discovery",
			Category:    CategoryDiscovery,
			Template:    Template{Inline: inline("registry-value")},
			Fields: []FieldSpec{
				{ID: "regKeyPath", Label: "Registry Key Path", Kind: KindText, Required: true, Placeholder: `SOFTWARE\MyCompany\MyApplication`},
				{ID: "valueName", Label: "Value Name", Kind: KindText, Required: true, Placeholder: "Version"},
				uniqueIDField("Application", true),
				targetClassField,
			},
		},
		{
			Key:         "wmi-query",
			DisplayName: "WMI Query Discovery",
			Category:    CategoryDiscovery,
			Template:    Template{File: "Class.And.Discovery.WMI.Query.mpx"},
			Fields: []FieldSpec{
				{ID: "wmiQuery", Label: "WMI Query", Kind: KindTextarea, Required: true, Placeholder: `SELECT * FROM Win32_Service WHERE Name = "YourService"`},
				{ID: "namespace", Label: "WMI Namespace", Kind: KindText, Default: `root\cimv2`, Placeholder: `root\cimv2`},
				uniqueIDField("Application", false),
				targetClassField,
			},
		},
		{
			Key:         "service-discovery",
			DisplayName: "Service Discovery",
			Category:    CategoryDiscovery,
			Template:    Template{File: "Class.And.Discovery.Service.mpx"},
			Fields: []FieldSpec{
				{ID: "serviceName", Label: "Service Name", Kind: KindText, Required: true, Placeholder: "W3SVC"},
				uniqueIDField("Application", false),
				targetClassField,
			},
		},
		{
			Key:         "script-discovery",
			DisplayName: "Script Discovery",
			Category:    CategoryDiscovery,
			Template:    Template{File: "Class.And.Discovery.Script.mpx"},
			Fields: []FieldSpec{
				{ID: "scriptType", Label: "Script Type", Kind: KindSelect, Default: "PowerShell", Options: []string{"PowerShell", "VBScript"}},
				{ID: "scriptBody", Label: "Script Content", Kind: KindTextarea, Required: true, Placeholder: "Enter your discovery script here..."},
				uniqueIDField("Application", false),
				targetClassField,
			},
		},
		{
			Key:         "service-monitor",
			DisplayName: "Service Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.Service.WithAlert.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("W3SVC", false),
				{ID: "serviceName", Label: "Service Name", Kind: KindText, Required: true, Placeholder: "W3SVC"},
				{ID: "alertPriority", Label: "Alert Priority", Kind: KindSelect, Default: "Normal", Options: []string{"Low", "Normal", "High"}},
				{ID: "alertSeverity", Label: "Alert Severity", Kind: KindSelect, Default: "Error", Options: []string{"Information", "Warning", "Error"}},
			},
		},
		{
			Key:         "service-monitor-no-alert",
			DisplayName: "Service Monitor (No Alert)",
			Category:    CategoryMonitors,
			Template:    Template{Inline: inline("service-monitor-no-alert")},
			Fields: []FieldSpec{
				uniqueIDField("W3SVC", true),
				{ID: "serviceName", Label: "Service Name", Kind: KindText, Required: true, Placeholder: "W3SVC", Help: "Short name of the service as seen in the registry"},
			},
		},
		{
			Key:         "performance-monitor",
			DisplayName: "Performance Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.Performance.ConsecSamples.TwoState.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("CPU", false),
				{ID: "objectName", Label: "Performance Object", Kind: KindText, Required: true, Placeholder: "Processor"},
				{ID: "counterName", Label: "Counter Name", Kind: KindText, Required: true, Placeholder: "% Processor Time"},
				{ID: "instanceName", Label: "Instance", Kind: KindText, Placeholder: "_Total"},
				intervalField("frequencySeconds", "300"),
				{ID: "threshold", Label: "Threshold", Kind: KindNumber, Required: true, Placeholder: "80"},
				{ID: "samples", Label: "Consecutive Samples", Kind: KindNumber, Required: true, Default: "3"},
			},
		},
		{
			Key:         "process-monitor",
			DisplayName: "Process Monitor",
			Category:    CategoryMonitors,
			Template:    Template{Inline: inline("process-monitor")},
			Fields: []FieldSpec{
				uniqueIDField("WebServer", true),
				targetClassField,
				{ID: "processName", Label: "Process Name (lowercase)", Kind: KindText, Required: true, Placeholder: "notepad.exe"},
				intervalField("frequencySeconds", "60"),
				{ID: "minProcessCount", Label: "Minimum Process Count", Kind: KindNumber, Required: true, Default: "1"},
				{ID: "maxProcessCount", Label: "Maximum Process Count", Kind: KindNumber, Required: true, Default: "10"},
				{ID: "matchCount", Label: "Match Count (breaches before alert)", Kind: KindNumber, Required: true, Default: "2"},
			},
		},
		{
			Key:         "registry-key-monitor",
			DisplayName: "Registry Key Exists Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.RegistryKey.Exists.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("AppKey", false),
				{ID: "regKeyPath", Label: "Registry Key Path", Kind: KindText, Required: true, Placeholder: `SOFTWARE\MyCompany\MyApplication`},
				intervalField("intervalSeconds", "300"),
			},
		},
		{
			Key:         "powershell-script-monitor",
			DisplayName: "PowerShell Script Monitor",
			Category:    CategoryMonitors,
			Template:    Template{Inline: inline("powershell-script-monitor")},
			Fields: []FieldSpec{
				uniqueIDField("CheckWebSite", true),
				{ID: "intervalSeconds", Label: "Check Interval (seconds)", Kind: KindNumber, Required: true, Default: "3600", Placeholder: "3600"},
				{ID: "eventId", Label: "Event ID", Kind: KindNumber, Required: true, Default: "1234", Help: "Event ID for script logging in Operations Manager event log"},
				{
					ID:       "scriptBody",
					Label:    "PowerShell Script",
					Kind:     KindTextarea,
					Required: true,
					Help:     "Script must set $bag.AddValue('Result','GoodCondition') or $bag.AddValue('Result','BadCondition'). $bag is returned by the wrapper.",
				},
			},
		},
		{
			Key:         "powershell-script-monitor-3state",
			DisplayName: "PowerShell Script Monitor (3 States)",
			Category:    CategoryMonitors,
			Template:    Template{Inline: inline("powershell-script-monitor-3state")},
			Fields: []FieldSpec{
				uniqueIDField("CheckApplication", true),
				{ID: "intervalSeconds", Label: "Run Every (seconds)", Kind: KindNumber, Required: true, Default: "300", Help: "How often to run the PowerShell script (in seconds)"},
				{ID: "eventId", Label: "Event ID", Kind: KindNumber, Required: true, Default: "1234"},
				{
					ID:       "scriptBody",
					Label:    "PowerShell Script",
					Kind:     KindTextarea,
					Required: true,
					Default:  DefaultStateScript,
					Help:     `The script must call $PropertyBag.AddValue("State", "Ok|Warning|Bad").`,
				},
			},
		},
		{
			Key:         "performance-monitor-multi-instance",
			DisplayName: "Performance Monitor (Multi-Instance)",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.Performance.MultiInstance.ConsecSamples.TwoState.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("ProcessMemory", false),
				{ID: "objectName", Label: "Performance Object", Kind: KindText, Required: true, Placeholder: "Process"},
				{ID: "counterName", Label: "Counter Name", Kind: KindText, Required: true, Placeholder: "Working Set"},
				{ID: "instanceName", Label: "Instance Filter", Kind: KindText, Placeholder: "*"},
				intervalField("frequencySeconds", "300"),
				{ID: "threshold", Label: "Threshold", Kind: KindNumber, Required: true, Placeholder: "100000000"},
				{ID: "samples", Label: "Consecutive Samples", Kind: KindNumber, Required: true, Default: "3"},
			},
		},
		{
			Key:         "process-performance-monitor",
			DisplayName: "Process Performance Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.Process.Performance.ConsecSamples.TwoState.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("W3wpMemory", false),
				{ID: "processName", Label: "Process Name", Kind: KindText, Required: true, Placeholder: "w3wp", Help: "Performance instance name, without .exe"},
				{ID: "counterName", Label: "Counter Name", Kind: KindText, Required: true, Placeholder: "Working Set"},
				intervalField("frequencySeconds", "300"),
				{ID: "threshold", Label: "Threshold", Kind: KindNumber, Required: true, Placeholder: "100000000"},
				{ID: "samples", Label: "Consecutive Samples", Kind: KindNumber, Required: true, Default: "3"},
			},
		},
		{
			Key:         "port-monitor",
			DisplayName: "Port Check Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.PortCheck.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("Http", false),
				{ID: "portNumber", Label: "Port Number", Kind: KindNumber, Required: true, Placeholder: "80"},
				{ID: "timeout", Label: "Connect Timeout (seconds)", Kind: KindNumber, Default: "10"},
				intervalField("intervalSeconds", "300"),
			},
		},
		{
			Key:         "registry-value-monitor",
			DisplayName: "Registry Value Exists Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.RegistryValue.Exists.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("AppVersion", false),
				{ID: "regKeyPath", Label: "Registry Key Path", Kind: KindText, Required: true, Placeholder: `SOFTWARE\MyCompany\MyApplication`},
				{ID: "valueName", Label: "Value Name", Kind: KindText, Required: true, Placeholder: "Version"},
				intervalField("intervalSeconds", "300"),
			},
		},
		{
			Key:         "file-age-monitor",
			DisplayName: "File Age Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.TimedScript.PowerShell.FileAge.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("StaleLogs", false),
				intervalField("intervalSeconds", "300"),
				{ID: "folderPath", Label: "Folder Path", Kind: KindText, Required: true, Placeholder: `C:\Logs`},
				{ID: "fileExtensionFilter", Label: "File Extension Filter", Kind: KindText, Required: true, Placeholder: "*.log,*.txt"},
				{ID: "fileAgeThresholdMinutes", Label: "File Age Threshold (minutes)", Kind: KindNumber, Required: true, Default: "60"},
				{ID: "fileCountThreshold", Label: "File Count Threshold", Kind: KindNumber, Required: true, Default: "1"},
			},
		},
		{
			Key:         "file-size-monitor",
			DisplayName: "File Size Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.TimedScript.PowerShell.FileSize.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("LargeLogs", false),
				intervalField("intervalSeconds", "300"),
				{ID: "folderPath", Label: "Folder Path", Kind: KindText, Required: true, Placeholder: `C:\Logs`},
				{ID: "fileNameFilter", Label: "File Name Filter", Kind: KindText, Required: true, Placeholder: "*.log,*.txt"},
				{ID: "fileSizeThresholdKB", Label: "File Size Threshold (KB)", Kind: KindNumber, Required: true, Default: "1024"},
				{ID: "fileCountThreshold", Label: "File Count Threshold", Kind: KindNumber, Required: true, Default: "1"},
			},
		},
		{
			Key:         "file-count-monitor",
			DisplayName: "File Count Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.TimedScript.PowerShell.FileCountInFolderThreshold.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("QueueFolder", false),
				intervalField("intervalSeconds", "300"),
				{ID: "folderPath", Label: "Folder Path", Kind: KindText, Required: true, Placeholder: `C:\Logs`},
				{ID: "fileNameFilter", Label: "File Name Filter", Kind: KindText, Required: true, Placeholder: "*.log"},
				{ID: "fileCountThreshold", Label: "File Count Threshold", Kind: KindNumber, Required: true, Default: "100"},
				{ID: "comparisonType", Label: "Comparison Type", Kind: KindSelect, Default: "Greater Than", Options: []string{"Greater Than", "Less Than"}},
			},
		},
		{
			Key:         "folder-last-write-monitor",
			DisplayName: "Folder Last Write Time Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.TimedScript.PowerShell.FolderLastWriteTimeOlderThanThreshold.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("DropFolder", false),
				intervalField("intervalSeconds", "300"),
				{ID: "folderPath", Label: "Folder Path", Kind: KindText, Required: true, Placeholder: `C:\Logs`},
				{ID: "thresholdMinutes", Label: "Threshold (minutes)", Kind: KindNumber, Required: true, Default: "60"},
			},
		},
		{
			Key:         "unc-path-freespace-monitor",
			DisplayName: "UNC Path Free Space Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.TimedScript.PowerShell.UNCPathFreeSpace.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("ShareSpace", false),
				intervalField("intervalSeconds", "300"),
				{ID: "uncPath", Label: "UNC Path", Kind: KindText, Required: true, Placeholder: `\\server\share\folder`},
				{ID: "warningThresholdPercent", Label: "Warning Threshold (%)", Kind: KindNumber, Required: true, Default: "20"},
				{ID: "criticalThresholdPercent", Label: "Critical Threshold (%)", Kind: KindNumber, Required: true, Default: "10"},
			},
		},
		{
			Key:         "sql-query-monitor",
			DisplayName: "SQL Query Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.TimedScript.PowerShell.SQLQuery.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("FailedJobs", false),
				intervalField("intervalSeconds", "300"),
				{ID: "sqlServer", Label: "SQL Server", Kind: KindText, Required: true, Placeholder: "server.domain.com"},
				{ID: "sqlDBName", Label: "Database Name", Kind: KindText, Required: true, Placeholder: "MyDatabase"},
				{ID: "sqlQuery", Label: "SQL Query", Kind: KindTextarea, Required: true, Placeholder: `SELECT COUNT(*) FROM MyTable WHERE Status = 'Error'`},
				{ID: "rowCountThreshold", Label: "Row Count Threshold", Kind: KindNumber, Required: true, Default: "1"},
			},
		},
		{
			Key:         "text-file-parser-monitor",
			DisplayName: "Text File Parser Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.TimedScript.PowerShell.ParseTextFile.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("AppLogErrors", false),
				intervalField("intervalSeconds", "300"),
				{ID: "filePath", Label: "File Path", Kind: KindText, Required: true, Placeholder: `C:\Logs\application.log`},
				{ID: "searchString", Label: "Search String", Kind: KindText, Required: true, Placeholder: "ERROR"},
				{ID: "matchThreshold", Label: "Match Threshold", Kind: KindNumber, Required: true, Default: "1"},
			},
		},
		{
			Key:         "powershell-script-with-params-monitor",
			DisplayName: "PowerShell Script Monitor (With Parameters)",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.TimedScript.PowerShell.WithParams.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("CheckEndpoint", true),
				intervalField("intervalSeconds", "300"),
				{
					ID:          "scriptBody",
					Label:       "PowerShell Script",
					Kind:        KindTextarea,
					Required:    true,
					Placeholder: "param($Param1, $Param2)\n# Your script here",
					Help:        `Return a property bag with State set to "Healthy" or "Unhealthy" and an optional Message.`,
				},
				{ID: "param1", Label: "Parameter 1", Kind: KindText, Placeholder: "Value for $Param1"},
				{ID: "param2", Label: "Parameter 2", Kind: KindText, Placeholder: "Value for $Param2"},
			},
		},
		{
			Key:         "vbscript-monitor",
			DisplayName: "VBScript Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.TimedScript.VBScript.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("LegacyCheck", true),
				intervalField("intervalSeconds", "300"),
				{
					ID:          "scriptBody",
					Label:       "VBScript",
					Kind:        KindTextarea,
					Required:    true,
					Placeholder: "Enter your VBScript monitoring code here...",
					Help:        `Return a property bag with State set to "Healthy" or "Unhealthy" through MOM.ScriptAPI.`,
				},
			},
		},
		{
			Key:         "snmp-monitor",
			DisplayName: "SNMP OID Monitor",
			Category:    CategoryMonitors,
			Template:    Template{File: "Monitor.SNMP.Poll.OIDValue.Integer.Performance.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("Uptime", false),
				{ID: "oid", Label: "SNMP OID", Kind: KindText, Required: true, Placeholder: "1.3.6.1.2.1.1.3.0"},
				{ID: "community", Label: "SNMP Community", Kind: KindText, Required: true, Default: "public"},
				{ID: "port", Label: "SNMP Port", Kind: KindNumber, Required: true, Default: "161"},
				{ID: "threshold", Label: "Threshold", Kind: KindNumber, Required: true, Placeholder: "90"},
				intervalField("intervalSeconds", "300"),
			},
		},
		{
			Key:         "event-alert-rule",
			DisplayName: "Event Log Alert Rule",
			Category:    CategoryRules,
			Template:    Template{Inline: inline("event-alert-rule")},
			RaisesAlert: true,
			Fields: []FieldSpec{
				uniqueIDField("AppErrors", true),
				{ID: "logName", Label: "Event Log", Kind: KindSelect, Default: "Application", Options: []string{"Application", "System", "Operations Manager"}},
				{ID: "eventSource", Label: "Event Source", Kind: KindText, Required: true, Placeholder: "MyApplication"},
				{ID: "eventId", Label: "Event ID", Kind: KindNumber, Required: true, Placeholder: "1000"},
				{ID: "eventLevel", Label: "Event Level", Kind: KindSelect, Default: "Error", Options: []string{"Error", "Warning", "Information"}},
				{ID: "alertPriority", Label: "Alert Priority", Kind: KindSelect, Default: "Normal", Options: []string{"Low", "Normal", "High"}},
				{ID: "alertSeverity", Label: "Alert Severity", Kind: KindSelect, Default: "Error", Options: []string{"Information", "Warning", "Error"}},
			},
		},
		{
			Key:         "performance-collection-rule",
			DisplayName: "Performance Collection Rule",
			Category:    CategoryRules,
			Template:    Template{File: "Rule.Performance.Collection.mpx"},
			Fields: []FieldSpec{
				uniqueIDField("CPUCollection", false),
				{ID: "objectName", Label: "Performance Object", Kind: KindText, Required: true, Placeholder: "Processor"},
				{ID: "counterName", Label: "Counter Name", Kind: KindText, Required: true, Placeholder: "% Processor Time"},
				{ID: "instanceName", Label: "Instance", Kind: KindText, Placeholder: "_Total"},
				intervalField("frequencySeconds", "300"),
			},
		},
	}
}
