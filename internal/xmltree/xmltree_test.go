package xmltree

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<Root>
  <TypeDefinitions>
    <ModuleTypes>
      <ProbeActionModuleType ID="B"/>
      <DataSourceModuleType ID="A"/>
      <Other ID="skip"/>
    </ModuleTypes>
  </TypeDefinitions>
  <Monitoring>
    <Monitors>
      <!-- marker -->
      <UnitMonitor ID="M1"/>
    </Monitors>
  </Monitoring>
</Root>`

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("<Root><Open x=></Open")
	assert.Error(t, err)

	_, err = Parse("   ")
	assert.Error(t, err)
}

func TestFindKeepsDocumentOrder(t *testing.T) {
	doc, err := Parse(sample)
	require.NoError(t, err)

	found := Find(doc.Root(), "TypeDefinitions/ModuleTypes/DataSourceModuleType|ProbeActionModuleType")
	require.Len(t, found, 2)
	assert.Equal(t, "B", found[0].SelectAttrValue("ID", ""))
	assert.Equal(t, "A", found[1].SelectAttrValue("ID", ""))

	assert.Empty(t, Find(doc.Root(), "Monitoring/Rules/Rule"))
}

func TestComments(t *testing.T) {
	doc, err := Parse(sample)
	require.NoError(t, err)

	monitors := Find(doc.Root(), "Monitoring/Monitors")
	require.Len(t, monitors, 1)
	assert.Equal(t, []string{" marker "}, Comments(monitors[0]))
}

func TestStringRoundTrip(t *testing.T) {
	doc, err := Parse(`<A><B x="1 &amp; 2">t &lt; u</B></A>`)
	require.NoError(t, err)

	s, err := String(Child(doc.Root(), "B"))
	require.NoError(t, err)

	el, err := ParseElement(s)
	require.NoError(t, err)
	assert.Equal(t, "1 & 2", el.SelectAttrValue("x", ""))
	assert.Equal(t, "t < u", el.Text())
	assert.Nil(t, el.Parent())
}

func TestEnsureChildOrdering(t *testing.T) {
	order := []string{"Discoveries", "Monitors", "Rules"}

	testCases := []struct {
		name     string
		existing []string
		add      []string
	}{
		{"empty", nil, []string{"Rules", "Discoveries", "Monitors"}},
		{"only rules", []string{"Rules"}, []string{"Monitors", "Discoveries"}},
		{"only discoveries", []string{"Discoveries"}, []string{"Rules", "Monitors"}},
		{"monitors with foreign sibling", []string{"Monitors", "Overrides"}, []string{"Rules", "Discoveries"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parent := etree.NewElement("Monitoring")
			for _, tag := range tc.existing {
				parent.CreateElement(tag)
			}
			for _, tag := range tc.add {
				EnsureChild(parent, tag, order)
			}

			var got []string
			for _, el := range parent.ChildElements() {
				if indexOf(order, el.Tag) >= 0 {
					got = append(got, el.Tag)
				}
			}
			assert.Equal(t, order, got)
		})
	}
}

func TestEnsureChildReturnsExisting(t *testing.T) {
	parent := etree.NewElement("Monitoring")
	existing := parent.CreateElement("Monitors")

	assert.Same(t, existing, EnsureChild(parent, "Monitors", []string{"Monitors"}))
	assert.Len(t, parent.ChildElements(), 1)
}

func TestSerializeIsStable(t *testing.T) {
	doc, err := Parse(sample)
	require.NoError(t, err)

	first, err := Serialize(doc)
	require.NoError(t, err)
	second, err := Serialize(doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.Contains(first, "\n  <TypeDefinitions>"))
}
