package fragments

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/mpwizard/internal/xmltree"
)

func TestDefaultLibraryKeysAreUnique(t *testing.T) {
	lib := Default()
	seen := make(map[string]bool)

	for _, d := range lib.All() {
		assert.False(t, seen[d.Key], "duplicate key %s", d.Key)
		seen[d.Key] = true

		got, ok := lib.Get(d.Key)
		require.True(t, ok)
		assert.Same(t, d, got)
	}

	_, ok := lib.Get("does-not-exist")
	assert.False(t, ok)
}

func TestEveryFileTemplateIsShipped(t *testing.T) {
	for _, d := range Default().All() {
		if !d.Template.IsFile() {
			continue
		}
		_, err := fs.Stat(FS(), d.Template.File)
		assert.NoError(t, err, "fragment %s", d.Key)
	}
}

func TestTemplatesAreWellFormedAfterBlanking(t *testing.T) {
	for _, d := range Default().All() {
		t.Run(d.Key, func(t *testing.T) {
			text := d.Template.Inline
			if d.Template.IsFile() {
				raw, err := fs.ReadFile(FS(), d.Template.File)
				require.NoError(t, err)
				text = string(raw)
			}

			blanked := TokenPattern().ReplaceAllString(text, "X")
			doc, err := xmltree.Parse(blanked)
			require.NoError(t, err)
			assert.Equal(t, "ManagementPackFragment", doc.Root().Tag)
		})
	}
}

func TestFieldsAreWellFormed(t *testing.T) {
	for _, d := range Default().All() {
		ids := make(map[string]bool)
		for _, f := range d.Fields {
			assert.NotEmpty(t, f.ID, d.Key)
			assert.False(t, ids[f.ID], "duplicate field %s in %s", f.ID, d.Key)
			ids[f.ID] = true

			if f.Kind == KindSelect {
				assert.NotEmpty(t, f.Options, "select %s.%s has no options", d.Key, f.ID)
				if f.Default != "" {
					assert.Contains(t, f.Options, f.Default)
				}
			}
		}
	}
}

func TestByCategory(t *testing.T) {
	lib := Default()

	discoveries := lib.ByCategory(CategoryDiscovery)
	require.NotEmpty(t, discoveries)
	assert.Equal(t, "registry-key", discoveries[0].Key)

	for _, d := range lib.ByCategory(CategoryRules) {
		assert.Equal(t, CategoryRules, d.Category)
	}
	assert.Empty(t, lib.ByCategory(CategoryViews))
}

func TestTokensCoverTemplates(t *testing.T) {
	tokens := Default().Tokens()

	assert.Contains(t, tokens, "CompanyID")
	assert.Contains(t, tokens, "SCRIPT_BODY")
	assert.Contains(t, tokens, "WMIQuery")
	assert.IsIncreasing(t, tokens)
}

func TestScanTokens(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, ScanTokens("##A####B## ##A## #C# ##"))
	assert.Empty(t, ScanTokens("no tokens here"))
}

func TestNewRejectsBadDefinitions(t *testing.T) {
	_, err := New([]*Definition{
		{Key: "x", Template: Template{Inline: "<a/>"}},
		{Key: "x", Template: Template{Inline: "<b/>"}},
	})
	assert.Error(t, err)

	_, err = New([]*Definition{{Key: "y"}})
	assert.Error(t, err)

	_, err = New([]*Definition{{Key: "z", Template: Template{File: "Missing.mpx"}}})
	assert.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("monitors")
	require.NoError(t, err)
	assert.Equal(t, CategoryMonitors, c)

	_, err = ParseCategory("widgets")
	assert.Error(t, err)
}

func TestMonitorCatalog(t *testing.T) {
	lib := Default()

	want := []string{
		"service-monitor", "service-monitor-no-alert", "performance-monitor",
		"performance-monitor-multi-instance", "process-monitor", "process-performance-monitor",
		"port-monitor", "registry-key-monitor", "registry-value-monitor",
		"file-age-monitor", "file-size-monitor", "file-count-monitor", "folder-last-write-monitor",
		"unc-path-freespace-monitor", "sql-query-monitor", "text-file-parser-monitor",
		"powershell-script-monitor", "powershell-script-monitor-3state",
		"powershell-script-with-params-monitor", "vbscript-monitor", "snmp-monitor",
	}

	var got []string
	for _, d := range lib.ByCategory(CategoryMonitors) {
		got = append(got, d.Key)
	}
	assert.ElementsMatch(t, want, got)

	snmp, ok := lib.Get("snmp-monitor")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"community": "public", "port": "161", "intervalSeconds": "300"}, snmp.Defaults())
}
