package combiner

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/mpwizard/internal/extractor"
	"github.com/conneroisu/mpwizard/internal/xmltree"
)

func childTags(t *testing.T, body string) []string {
	t.Helper()

	el, err := xmltree.ParseElement(body)
	require.NoError(t, err)

	var out []string
	for _, c := range el.ChildElements() {
		out = append(out, c.Tag)
	}

	return out
}

func TestCombineEmpty(t *testing.T) {
	s, err := Combine(extractor.Buckets{})
	require.NoError(t, err)

	assert.True(t, s.Empty())
	assert.Empty(t, s.StringResources)
}

func TestTypeDefinitionOrder(t *testing.T) {
	tests := []struct {
		name    string
		buckets extractor.Buckets
		want    []string
	}{
		{
			name:    "all three",
			buckets: extractor.Buckets{MonitorTypes: []string{`<UnitMonitorType ID="m"/>`}, ModuleTypes: []string{`<DataSourceModuleType ID="d"/>`}, ClassTypes: []string{`<ClassType ID="c"/>`}},
			want:    []string{"EntityTypes", "ModuleTypes", "MonitorTypes"},
		},
		{
			name:    "class and monitor types",
			buckets: extractor.Buckets{MonitorTypes: []string{`<UnitMonitorType ID="m"/>`}, ClassTypes: []string{`<ClassType ID="c"/>`}},
			want:    []string{"EntityTypes", "MonitorTypes"},
		},
		{
			name:    "module types only",
			buckets: extractor.Buckets{ModuleTypes: []string{`<ProbeActionModuleType ID="p"/>`}},
			want:    []string{"ModuleTypes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Combine(tt.buckets)
			require.NoError(t, err)
			assert.Equal(t, tt.want, childTags(t, s.TypeDefinitions))
			assert.Empty(t, s.Monitoring)
		})
	}
}

func TestMonitoringOrder(t *testing.T) {
	s, err := Combine(extractor.Buckets{
		Rules:       []string{`<Rule ID="r"/>`},
		Discoveries: []string{`<Discovery ID="d"/>`},
		Monitors:    []string{`<UnitMonitor ID="m1"/>`, `<!-- gap -->`, `<UnitMonitor ID="m2"/>`},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Discoveries", "Monitors", "Rules"}, childTags(t, s.Monitoring))

	el, err := xmltree.ParseElement(s.Monitoring)
	require.NoError(t, err)
	monitors := xmltree.Child(el, "Monitors")
	require.Len(t, monitors.Child, 3)
	_, isComment := monitors.Child[1].(*etree.Comment)
	assert.True(t, isComment, "the comment keeps its position")
	assert.Empty(t, s.TypeDefinitions)
	assert.Empty(t, s.Presentation)
}

func TestStringResourcesAreDerived(t *testing.T) {
	s, err := Combine(extractor.Buckets{
		Monitors: []string{
			`<UnitMonitor ID="m1"><AlertSettings AlertMessage="A.M1.AlertMessage"/></UnitMonitor>`,
			`<UnitMonitor ID="m2"><AlertSettings AlertMessage="A.M1.AlertMessage"/></UnitMonitor>`,
			`<UnitMonitor ID="m3"/>`,
			`<!-- FRAGMENT UNAVAILABLE: x -->`,
		},
		Rules: []string{
			`<Rule ID="r1"><WriteActions><WriteAction ID="Alert"><AlertMessageId>$MPElement[Name="A.R1.AlertMessage"]$</AlertMessageId></WriteAction></WriteActions></Rule>`,
			`<Rule ID="r2"><DataSources/></Rule>`,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A.M1.AlertMessage", "A.R1.AlertMessage"}, s.StringResources)

	el, err := xmltree.ParseElement(s.Presentation)
	require.NoError(t, err)
	var ids []string
	for _, sr := range xmltree.Find(el, "StringResources/StringResource") {
		ids = append(ids, sr.SelectAttrValue("ID", ""))
	}
	assert.Equal(t, s.StringResources, ids)
}

func TestPresentationWithDisplayStringsOnly(t *testing.T) {
	s, err := Combine(extractor.Buckets{
		DisplayStrings: []string{`<DisplayString ElementID="x"><Name>X</Name></DisplayString>`},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"StringResources"}, childTags(t, s.Presentation))

	lp, err := xmltree.ParseElement(s.LanguagePacks)
	require.NoError(t, err)
	packs := xmltree.Children(lp, "LanguagePack")
	require.Len(t, packs, 1)
	assert.Equal(t, DefaultLanguage, packs[0].SelectAttrValue("ID", ""))
	assert.Equal(t, "true", packs[0].SelectAttrValue("IsDefault", ""))
	assert.Len(t, xmltree.Find(lp, "LanguagePack/DisplayStrings/DisplayString"), 1)
}

func TestCombineRejectsBrokenNodes(t *testing.T) {
	_, err := Combine(extractor.Buckets{Rules: []string{`<Rule ID=>`}})
	assert.Error(t, err)
}
