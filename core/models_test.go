package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	a := IDFromContent("https://example.com/acme-raises-8m")
	b := IDFromContent("https://example.com/acme-raises-8m")
	c := IDFromContent("https://example.com/other-article")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotZero(t, a)
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Acme, Inc.":     "acme inc",
		"  Foo Ventures": "foo ventures",
		"O'Brien & Co":   "obrien co",
		"ACME":           "acme",
		"a16z":           "a16z",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeName(in), "NormalizeName(%q)", in)
	}
}

func TestDocumentStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "processing", StatusProcessing.String())
	assert.Equal(t, "ready", StatusReady.String())
	assert.Equal(t, "error", StatusError.String())
}
