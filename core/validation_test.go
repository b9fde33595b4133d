package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() *Document {
	return &Document{
		Id:         1,
		FeedId:     2,
		Name:       "Acme raises $8M",
		RawContent: "Acme, a startup, raised $8 million led by Foo Ventures.",
		ArticleURL: "https://example.com/acme",
		Status:     StatusPending,
	}
}

func TestValidateDocument(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, ValidateDocument(validDocument()))
	})

	t.Run("nil", func(t *testing.T) {
		err := ValidateDocument(nil)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("empty content", func(t *testing.T) {
		doc := validDocument()
		doc.RawContent = ""
		err := ValidateDocument(doc)
		assert.ErrorIs(t, err, ErrInvalidDocument)
		assert.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("unknown status", func(t *testing.T) {
		doc := validDocument()
		doc.Status = DocumentStatus(99)
		err := ValidateDocument(doc)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("features on non-ready document", func(t *testing.T) {
		doc := validDocument()
		doc.Status = StatusPending
		doc.FeaturesExtracted = true
		err := ValidateDocument(doc)
		assert.ErrorIs(t, err, ErrExtractedInvariant)
	})

	t.Run("features on ready document", func(t *testing.T) {
		doc := validDocument()
		doc.Status = StatusReady
		doc.FeaturesExtracted = true
		require.NoError(t, ValidateDocument(doc))
	})
}

func TestValidateFeed(t *testing.T) {
	feed := &Feed{Id: 1, Name: "TechCrunch", URL: "https://techcrunch.com/feed/", Status: FeedActive}
	require.NoError(t, ValidateFeed(feed))

	feed.URL = ""
	assert.ErrorIs(t, ValidateFeed(feed), ErrEmptyFeedURL)

	assert.ErrorIs(t, ValidateFeed(nil), ErrInvalidFeed)
}

func TestValidateEntityName(t *testing.T) {
	accepted := []string{
		"Acme",
		"Foo Ventures",
		"Sequoia Capital",
		"OpenAI",
		"a16z",
	}
	for _, name := range accepted {
		if err := ValidateEntityName(name, nil); err != nil {
			t.Errorf("ValidateEntityName(%q) = %v, want nil", name, err)
		}
	}

	rejected := []string{
		"AI",                           // too short
		"The",                          // stopword
		"that had raised",              // denylist
		"was caught in a controversy",  // denylist
		"funding rounds fell sharply",  // denylist
		"a reporter at techcrunch who", // denylist and too many words
		"one two three four five",      // too many words
	}
	for _, name := range rejected {
		err := ValidateEntityName(name, nil)
		if !errors.Is(err, ErrEntityNameRejected) {
			t.Errorf("ValidateEntityName(%q) = %v, want ErrEntityNameRejected", name, err)
		}
	}
}

func TestValidateEntityNameCustomRules(t *testing.T) {
	rules := []NameRule{{
		Name:    "no-acme",
		Rejects: func(n string) bool { return n == "acme" },
	}}

	assert.NoError(t, ValidateEntityName("Foo Ventures", rules))
	assert.ErrorIs(t, ValidateEntityName("Acme", rules), ErrEntityNameRejected)
}
