package pattern

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleArticle = `Acme announced today that it raised $8 million in a seed round led by Foo Ventures and Bar Capital. The fintech startup plans to expand across Europe. The deal closed on March 5, 2025.`

func TestExtractEntities(t *testing.T) {
	extractor := NewEntityExtractor()
	result, err := extractor.ExtractEntities(context.Background(), sampleArticle)
	require.NoError(t, err)

	var companyNames []string
	for _, c := range result.Companies {
		companyNames = append(companyNames, c.Name)
	}
	assert.Contains(t, companyNames, "Acme")

	require.NotEmpty(t, result.Investors)
	assert.Equal(t, "Foo Ventures", result.Investors[0].Name)
	assert.True(t, result.Investors[0].Lead)

	var investorNames []string
	for _, inv := range result.Investors {
		investorNames = append(investorNames, inv.Name)
	}
	assert.Contains(t, investorNames, "Bar Capital")

	require.NotEmpty(t, result.Rounds)
	round := result.Rounds[0]
	assert.Equal(t, "$8 million", round.Amount)
	assert.Equal(t, "seed", round.RoundType)
	assert.Equal(t, "Acme", round.Company)
	assert.Equal(t, "2025-03-05", round.Date)

	assert.Contains(t, result.Sectors, "fintech")
}

func TestExtractEntitiesSeriesRound(t *testing.T) {
	extractor := NewEntityExtractor()
	text := `Globex secured $25 million in a Series B round backed by Initech Partners.`
	result, err := extractor.ExtractEntities(context.Background(), text)
	require.NoError(t, err)

	require.NotEmpty(t, result.Rounds)
	assert.Equal(t, "$25 million", result.Rounds[0].Amount)
	assert.Equal(t, "series b", result.Rounds[0].RoundType)
}

func TestExtractEntitiesNoFunding(t *testing.T) {
	extractor := NewEntityExtractor()
	result, err := extractor.ExtractEntities(context.Background(), "The conference drew record attendance this year.")
	require.NoError(t, err)

	assert.Empty(t, result.Rounds)
	assert.Empty(t, result.Investors)
}

func TestExtractEntitiesRejectsFragments(t *testing.T) {
	extractor := NewEntityExtractor()
	text := `The startup that had raised concerns was caught in a dispute, a spokesperson said.`
	result, err := extractor.ExtractEntities(context.Background(), text)
	require.NoError(t, err)

	for _, c := range result.Companies {
		assert.NotContains(t, c.Name, "that had raised")
		assert.NotContains(t, c.Name, "was caught in")
	}
}

func TestFindDateFormats(t *testing.T) {
	extractor := NewEntityExtractor()
	cases := map[string]string{
		"Announced on 2025-03-05 in Berlin.": "2025-03-05",
		"The round closed March 5, 2025.":    "2025-03-05",
		"Signed 5 March 2025 at the summit.": "2025-03-05",
		"No date here.":                      "",
	}
	for text, want := range cases {
		assert.Equal(t, want, nearestDate(extractor.findDates(text), 0), "findDates(%q)", text)
	}
}
