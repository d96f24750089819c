package extractor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-sidecar/internal/nlp"
	"cv-sidecar/internal/normalizer"
	"cv-sidecar/internal/types"
)

func TestWorkHistoryConfidenceLadder(t *testing.T) {
	e := New(nil)
	ctx := context.Background()

	cases := []struct {
		name       string
		text       string
		company    string
		position   string
		confidence float64
	}{
		{"公司职位和日期齐全", "Senior Engineer at Acme Ltd\nJan 2020 - Present\n• Built APIs\nLed migration", "Acme Ltd", "Senior Engineer", 0.9},
		{"公司和职位", "Acme Ltd - Software Engineer\nBuilt things", "Acme Ltd", "Software Engineer", 0.7},
		{"只有职位", "Freelance Developer\nVarious clients", "", "Freelance Developer", 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries := e.WorkHistory(ctx, tc.text)
			require.Len(t, entries, 1)
			assert.Equal(t, tc.company, entries[0].Company)
			assert.Equal(t, tc.position, entries[0].Position)
			assert.Equal(t, tc.confidence, entries[0].Confidence)
		})
	}

	assert.Equal(t, 0.3, workConfidence(types.WorkEntry{}))
}

func TestWorkHistoryEntryDetails(t *testing.T) {
	entries := New(nil).WorkHistory(context.Background(), "Senior Engineer at Acme Ltd\nJan 2020 - Present\n• Built APIs\nLed migration")
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "01/01/2020", entry.StartDate)
	assert.Equal(t, normalizer.Present, entry.EndDate)
	assert.Equal(t, []string{"Built APIs"}, entry.Highlights)
	assert.Equal(t, "Led migration", entry.Description, "标题行和日期行不进描述")
}

func TestWorkHistoryMultipleEntries(t *testing.T) {
	text := "Engineer at Foo Ltd\nJan 2018 - Dec 2019\nDid stuff\n\nManager at Bar Inc\n2020 - Present\nLed team"
	entries := New(nil).WorkHistory(context.Background(), text)
	require.Len(t, entries, 2)

	assert.Equal(t, "Foo Ltd", entries[0].Company)
	assert.Equal(t, "Engineer", entries[0].Position)
	assert.Equal(t, "01/12/2019", entries[0].EndDate)

	assert.Equal(t, "Bar Inc", entries[1].Company)
	assert.Equal(t, "Manager", entries[1].Position)
	assert.Equal(t, "01/01/2020", entries[1].StartDate)
}

func TestWorkHistoryUsesAnnotatorForCompany(t *testing.T) {
	e := New(nlp.NewRuleAnnotator())
	entries := e.WorkHistory(context.Background(), "Backend Developer\nGlobex Solutions\n2019 - 2021")
	require.Len(t, entries, 1)
	assert.Equal(t, "Globex Solutions", entries[0].Company)
	assert.Equal(t, "Backend Developer", entries[0].Position)
	assert.Equal(t, 0.9, entries[0].Confidence)
}

func TestWorkHistoryEmpty(t *testing.T) {
	entries := New(nil).WorkHistory(context.Background(), "  \n\n ")
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	entries = New(nil).WorkHistory(context.Background(), "lots of lowercase text without any structure")
	assert.Empty(t, entries, "公司和职位都为空的块被丢弃")
}

func TestWorkHistoryDescriptionIsCapped(t *testing.T) {
	lines := []string{"Analyst at Initech Ltd", "2015 - 2017"}
	for i := 0; i < 8; i++ {
		lines = append(lines, "did something")
	}
	entries := New(nil).WorkHistory(context.Background(), strings.Join(lines, "\n"))
	require.Len(t, entries, 1)
	assert.Equal(t, maxDescriptionLines, strings.Count(entries[0].Description, "did something"))
}
