// Copyright 2026 Xynenyx
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - RawContent must not be empty
//   - Status must be a known state
//   - FeaturesExtracted requires Status == StatusReady
//
// NOT validated (populated by workers):
//   - ChunkCount (0 until the processing worker runs)
//   - ErrorMessage (empty outside the error state)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.RawContent == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}

	if err := ValidateStatus(doc.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if doc.FeaturesExtracted && doc.Status != StatusReady {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrExtractedInvariant)
	}

	return nil
}

// ValidateFeed validates a Feed according to domain rules.
func ValidateFeed(feed *Feed) error {
	if feed == nil {
		return fmt.Errorf("%w: feed is nil", ErrInvalidFeed)
	}

	if feed.URL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFeed, ErrEmptyFeedURL)
	}

	return nil
}

// ValidateStatus validates that a DocumentStatus has a valid value.
func ValidateStatus(status DocumentStatus) error {
	switch status {
	case StatusPending, StatusProcessing, StatusReady, StatusError:
		return nil
	}
	return fmt.Errorf("%w: value %d", ErrInvalidStatus, status)
}

// NameRule is a single entity-name quality rule. Rules are kept in a table so
// the denylist can grow without touching the validation control flow.
type NameRule struct {
	// Name identifies the rule in rejection errors and reconciler reports.
	Name string

	// Rejects reports whether the (already normalized) name fails the rule.
	Rejects func(normalized string) bool
}

// denylistPhrases are sentence fragments the extraction pass has historically
// mistaken for company or investor names. Matched as substrings of the
// normalized name.
var denylistPhrases = []string{
	"was caught in",
	"funding rounds fell",
	"funding round",
	"startup funding",
	"venture capital",
	"that had raised",
	"continues to diversify",
	"said friday that",
	"must build",
	"to become",
	"last december",
	"conceded that",
	"could lose the",
	"has faced its",
	"comes waltzing into",
	"is also rumored",
	"that uses ai",
	"wrote in its",
	"that makes money",
	"said in",
	"will be searching",
	"reporter at techcrunch",
	"to fix it",
	"skipped that step",
	"with little success",
	"should pursue venture",
	"with some friends",
}

// stopwords are common words that cannot stand alone as an entity name.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "in": {},
	"on": {}, "at": {}, "for": {}, "with": {}, "to": {}, "that": {},
	"this": {}, "these": {}, "those": {}, "was": {}, "were": {}, "is": {},
	"are": {}, "has": {}, "had": {}, "will": {}, "would": {}, "could": {},
	"can": {}, "said": {}, "today": {}, "yesterday": {},
}

// maxNameWords is the word-count ceiling for entity names; longer strings are
// almost always clause fragments rather than names.
const maxNameWords = 3

// DefaultNameRules returns the standard entity-name quality rules, applied in
// order by ValidateEntityName.
func DefaultNameRules() []NameRule {
	return []NameRule{
		{
			Name: "too-short",
			Rejects: func(n string) bool {
				return len(n) < 3
			},
		},
		{
			Name: "too-many-words",
			Rejects: func(n string) bool {
				return len(strings.Fields(n)) > maxNameWords
			},
		},
		{
			Name: "stopwords-only",
			Rejects: func(n string) bool {
				words := strings.Fields(n)
				if len(words) == 0 {
					return true
				}
				for _, w := range words {
					if _, ok := stopwords[w]; !ok {
						return false
					}
				}
				return true
			},
		},
		{
			Name: "denylist",
			Rejects: func(n string) bool {
				for _, phrase := range denylistPhrases {
					if strings.Contains(n, phrase) {
						return true
					}
				}
				return false
			},
		},
	}
}

// ValidateEntityName checks an extracted company or investor name against the
// given rule table. The name is normalized before matching. A nil rule slice
// means DefaultNameRules.
//
// Returns nil when the name is acceptable, or ErrEntityNameRejected (wrapped
// with the failing rule's name) when any rule rejects it.
func ValidateEntityName(name string, rules []NameRule) error {
	if rules == nil {
		rules = DefaultNameRules()
	}

	normalized := NormalizeName(name)
	for _, rule := range rules {
		if rule.Rejects(normalized) {
			return fmt.Errorf("%w: rule %s: %q", ErrEntityNameRejected, rule.Name, name)
		}
	}
	return nil
}
