package checklist

import (
	"strings"
	"testing"

	"github.com/localnerve/permit-review/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEveryCategory(t *testing.T) {
	for _, category := range models.Categories {
		c, err := Render(category)
		require.NoError(t, err, category)
		assert.NotEmpty(t, c.Title, category)
		require.NotEmpty(t, c.Items, category)
		for _, it := range c.Items {
			assert.False(t, it.Checked, "%s/%s rendered checked", category, it.ID)
			assert.NotEmpty(t, it.ID)
		}
	}

	_, err := Render(models.Category("roof_plan"))
	assert.Error(t, err)
}

func TestRenderReturnsIndependentCopies(t *testing.T) {
	first, err := Render(models.CategoryFireProtection)
	require.NoError(t, err)
	first.Items[0].Checked = true

	second, err := Render(models.CategoryFireProtection)
	require.NoError(t, err)
	assert.False(t, second.Items[0].Checked)
}

func TestSerializeFormat(t *testing.T) {
	c := Checklist{
		Title: "Fire Protection Review Checklist",
		Items: []Item{
			{ID: "a", Label: "Sprinkler design criteria stated", Checked: true},
			{ID: "b", Label: "Hydraulic calculations provided"},
		},
	}

	assert.Equal(t,
		"Fire Protection Review Checklist\n[x] Sprinkler design criteria stated\n[ ] Hydraulic calculations provided",
		Serialize(c, ""))

	assert.Equal(t,
		"Looks close\n\nFire Protection Review Checklist\n[x] Sprinkler design criteria stated\n[ ] Hydraulic calculations provided",
		Serialize(c, "  Looks close \n"))
}

func TestParseRoundTrip(t *testing.T) {
	for _, category := range models.Categories {
		c, err := Render(category)
		require.NoError(t, err)
		for i := range c.Items {
			c.Items[i].Checked = i%2 == 0
		}

		for _, note := range []string{"", "Needs the stamped set"} {
			parsed := Parse(Serialize(c, note))
			require.NotNil(t, parsed, category)
			assert.Equal(t, Serialize(c, ""), Serialize(*parsed, ""))
			assert.Equal(t, c.Title, parsed.Title)
			require.Len(t, parsed.Items, len(c.Items))
			for i, it := range parsed.Items {
				assert.Equal(t, c.Items[i].Label, it.Label)
				assert.Equal(t, c.Items[i].Checked, it.Checked)
			}
		}
	}
}

func TestParseWithoutItems(t *testing.T) {
	assert.Nil(t, Parse(""))
	assert.Nil(t, Parse("missing signature"))
	assert.Nil(t, Parse("Title only\n\n[x]\n"))
}

func TestParseAcceptsUppercaseMarkerAndCRLF(t *testing.T) {
	parsed := Parse("Cover Letter Review Checklist\r\n[X] Signed by the applicant\r\n[ ] Scope of work defined")
	require.NotNil(t, parsed)
	assert.Equal(t, "Cover Letter Review Checklist", parsed.Title)
	require.Len(t, parsed.Items, 2)
	assert.True(t, parsed.Items[0].Checked)
	assert.False(t, parsed.Items[1].Checked)
}

func TestMerge(t *testing.T) {
	template, err := Render(models.CategoryCoverLetter)
	require.NoError(t, err)

	overlay := &Checklist{Items: []Item{
		{Label: "SIGNED BY THE APPLICANT", Checked: true},
		{ID: "scope_of_work", Checked: true},
		{Label: "Not part of the template", Checked: true},
	}}

	merged := Merge(template, overlay)
	require.Len(t, merged.Items, len(template.Items))

	states := map[string]bool{}
	for _, it := range merged.Items {
		states[it.ID] = it.Checked
	}
	assert.True(t, states["signature"])
	assert.True(t, states["scope_of_work"])
	assert.False(t, states["project_description"])
	assert.False(t, states["contact_information"])

	// the template is untouched
	for _, it := range template.Items {
		assert.False(t, it.Checked)
	}

	assert.Equal(t, template, Merge(template, nil))
}

func TestIsComplete(t *testing.T) {
	assert.False(t, IsComplete(Checklist{}))
	assert.False(t, IsComplete(Checklist{Items: []Item{{Label: "a", Checked: true}, {Label: "b"}}}))
	assert.True(t, IsComplete(Checklist{Items: []Item{{Label: "a", Checked: true}}}))

	checked, total := Checklist{Items: []Item{{Checked: true}, {}, {Checked: true}}}.Counts()
	assert.Equal(t, 2, checked)
	assert.Equal(t, 3, total)
}

func TestParseTemplatesValidation(t *testing.T) {
	_, err := ParseTemplates([]byte("  "))
	assert.Error(t, err)

	_, err = ParseTemplates([]byte("roof_plan:\n  title: Roof\n  items:\n    - id: a\n      label: A\n"))
	assert.ErrorContains(t, err, "unknown document category")

	_, err = ParseTemplates([]byte("site_plan:\n  title: Site\n  items:\n    - id: a\n      label: A\n"))
	assert.ErrorContains(t, err, "no template for category")

	var b strings.Builder
	for _, category := range models.Categories {
		b.WriteString(string(category) + ":\n  title: T\n  items:\n    - id: a\n      label: Same\n    - id: b\n      label: same\n")
	}
	_, err = ParseTemplates([]byte(b.String()))
	assert.ErrorContains(t, err, "duplicate item label")
}
