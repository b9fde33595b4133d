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


// Package pattern provides a rule-based ai.EntityExtractor that needs no
// model backend. It trades recall for zero cost and full determinism, which
// makes it the default for bulk backfills and for tests.
package pattern

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xynenyx/fundwire/ai"
	"github.com/xynenyx/fundwire/core"
)

// Window sizes, in characters, for pairing matches that belong together.
const (
	// roundWindow is how far from an amount a round mention may sit.
	roundWindow = 50

	// companyWindow is how far from an amount a company mention may sit to
	// be attributed as the raising company.
	companyWindow = 200

	// dateWindow is how far from an amount a date mention may sit to be
	// taken as the round date.
	dateWindow = 500
)

var fundingExprs = []*regexp.Regexp{
	regexp.MustCompile(`[$€£]\d+(?:\.\d+)?\s*(?:million|billion|[MBkK])`),
	regexp.MustCompile(`(?i)raised\s+(\$\d+(?:\.\d+)?\s*(?:million|billion|[MBkK])?)`),
	regexp.MustCompile(`(?i)funding\s+of\s+(\$\d+(?:\.\d+)?\s*(?:million|billion|[MBkK])?)`),
	regexp.MustCompile(`(?i)secured\s+(\$\d+(?:\.\d+)?\s*(?:million|billion|[MBkK])?)`),
	regexp.MustCompile(`(?i)closed\s+(?:a\s+)?(\$\d+(?:\.\d+)?\s*(?:million|billion|[MBkK])?)`),
}

var roundExprs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bseed\s+round\b`),
	regexp.MustCompile(`(?i)\bpre-seed\b`),
	regexp.MustCompile(`(?i)series\s+([A-Ea-e])\s+(?:round|funding)`),
}

var companyExprs = []*regexp.Regexp{
	// Name before an action verb
	regexp.MustCompile(`\b([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+){0,3})\s+(?:announced|raised|launched|secured|closed|revealed|said|reported)`),
	// "startup X", "firm X"
	regexp.MustCompile(`(?i)(?:company|startup|firm|business|enterprise)\s+([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+){0,2})`),
	// Corporate suffixes
	regexp.MustCompile(`\b([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+){0,2}\s?(?:Corp|Labs|Tech|AI|Systems|Solutions|Inc|LLC|LLP|Ltd|Limited))\b`),
	// "X, a fintech company"
	regexp.MustCompile(`\b([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+){0,2}),\s+(?:a|an|the)\s+`),
}

var investorExprs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)led\s+by\s+([A-Z][a-zA-Z\s&,]+)`),
	regexp.MustCompile(`(?i)investors\s+include\s+([A-Z][a-zA-Z\s&,]+)`),
	regexp.MustCompile(`(?i)backed\s+by\s+([A-Z][a-zA-Z\s&,]+)`),
	regexp.MustCompile(`(?i)invested\s+by\s+([A-Z][a-zA-Z\s&,]+)`),
}

var investorSplitExpr = regexp.MustCompile(`[,\s]+and\s+|\s*,\s*`)

var dateExprs = []struct {
	expr   *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02"},
	{regexp.MustCompile(`[A-Z][a-z]+\s+\d{1,2},\s+\d{4}`), "January 2, 2006"},
	{regexp.MustCompile(`\d{1,2}\s+[A-Z][a-z]+\s+\d{4}`), "2 January 2006"},
}

// Names that the company patterns match but never denote companies.
var knownFalsePositives = map[string]struct{}{
	"New York": {}, "San Francisco": {}, "Los Angeles": {}, "United States": {},
	"Funding Rounds": {}, "Funding Round": {}, "Startup Funding": {},
	"Venture Capital": {}, "Series A": {}, "Series B": {}, "Series C": {},
	"Seed Round": {},
	"Monday": {}, "Tuesday": {}, "Wednesday": {}, "Thursday": {},
	"Friday": {}, "Saturday": {}, "Sunday": {},
	"January": {}, "February": {}, "March": {}, "April": {}, "May": {},
	"June": {}, "July": {}, "August": {}, "September": {}, "October": {},
	"November": {}, "December": {},
}

// EntityExtractor implements ai.EntityExtractor with regular expressions.
type EntityExtractor struct {
	logger *slog.Logger
}

var _ ai.EntityExtractor = (*EntityExtractor)(nil)

// NewEntityExtractor creates a pattern-based entity extractor.
func NewEntityExtractor() *EntityExtractor {
	return &EntityExtractor{
		logger: slog.Default().With("component", "pattern-extractor"),
	}
}

type mention struct {
	text string
	pos  int
}

// ExtractEntities extracts funding entities from article text.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, text string) (*ai.ExtractedEntities, error) {
	companies := e.findCompanies(text)
	amounts := e.findAmounts(text)
	investors := e.findInvestors(text)
	dates := e.findDates(text)

	result := &ai.ExtractedEntities{
		Investors: investors,
		Sectors:   findSectors(text),
	}

	seen := make(map[string]struct{})
	for _, c := range companies {
		if _, ok := seen[c.text]; ok {
			continue
		}
		seen[c.text] = struct{}{}
		result.Companies = append(result.Companies, ai.ExtractedCompany{Name: c.text})
	}

	for _, amount := range amounts {
		round := ai.ExtractedRound{
			Amount:    amount.text,
			RoundType: e.findRoundNearby(text, amount.pos, amount.pos+len(amount.text)),
			Date:      nearestDate(dates, amount.pos),
		}
		company := closestCompany(companies, amount.pos)
		if company == "" && len(companies) > 0 {
			company = companies[0].text
		}
		round.Company = company
		result.Rounds = append(result.Rounds, round)
	}

	e.logger.Debug("extracted entities",
		"companies", len(result.Companies),
		"investors", len(result.Investors),
		"rounds", len(result.Rounds))

	return result, nil
}

func (e *EntityExtractor) findCompanies(text string) []mention {
	var mentions []mention
	for _, expr := range companyExprs {
		for _, m := range expr.FindAllStringSubmatchIndex(text, -1) {
			if m[2] < 0 {
				continue
			}
			name := strings.TrimSpace(text[m[2]:m[3]])
			if !acceptCompanyName(name) {
				continue
			}
			mentions = append(mentions, mention{text: name, pos: m[2]})
		}
	}
	return mentions
}

func acceptCompanyName(name string) bool {
	if _, ok := knownFalsePositives[name]; ok {
		return false
	}
	words := strings.Fields(name)
	if len(words) > 1 {
		// Multi-word names should have at least one substantial word
		allShort := true
		for _, w := range words {
			if len(w) > 3 {
				allShort = false
				break
			}
		}
		if allShort {
			return false
		}
	}
	return core.ValidateEntityName(name, nil) == nil
}

func (e *EntityExtractor) findAmounts(text string) []mention {
	var mentions []mention
	seen := make(map[string]struct{})
	for _, expr := range fundingExprs {
		for _, m := range expr.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			// Prefer the amount capture group when the pattern has one
			if len(m) > 2 && m[2] >= 0 {
				start, end = m[2], m[3]
			}
			raw := strings.TrimSpace(text[start:end])
			if raw == "" {
				continue
			}
			if _, ok := seen[raw]; ok {
				continue
			}
			seen[raw] = struct{}{}
			mentions = append(mentions, mention{text: raw, pos: start})
		}
	}
	return mentions
}

// findRoundNearby looks for a round stage mention within roundWindow
// characters of an amount match.
func (e *EntityExtractor) findRoundNearby(text string, start, end int) string {
	windowStart := max(0, start-roundWindow)
	windowEnd := min(len(text), end+roundWindow)
	window := text[windowStart:windowEnd]

	for _, expr := range roundExprs {
		m := expr.FindStringSubmatch(window)
		if m == nil {
			continue
		}
		lower := strings.ToLower(m[0])
		switch {
		case strings.Contains(lower, "pre-seed"):
			return "pre-seed"
		case strings.Contains(lower, "seed"):
			return "seed"
		case len(m) > 1 && m[1] != "":
			return "series " + strings.ToLower(m[1])
		}
	}
	return ""
}

func (e *EntityExtractor) findInvestors(text string) []ai.ExtractedInvestor {
	var investors []ai.ExtractedInvestor
	seen := make(map[string]struct{})
	for _, expr := range investorExprs {
		for _, m := range expr.FindAllStringSubmatch(text, -1) {
			isLead := strings.Contains(strings.ToLower(m[0]), "led by")
			for _, name := range investorSplitExpr.Split(m[1], -1) {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				if core.ValidateEntityName(name, nil) != nil {
					continue
				}
				if _, ok := seen[name]; ok {
					continue
				}
				seen[name] = struct{}{}
				investors = append(investors, ai.ExtractedInvestor{
					Name: name,
					Lead: isLead && len(investors) == 0,
				})
			}
		}
	}
	return investors
}

// findDates returns every parseable date in the text, in YYYY-MM-DD form,
// with the position of the original match.
func (e *EntityExtractor) findDates(text string) []mention {
	var mentions []mention
	for _, d := range dateExprs {
		for _, m := range d.expr.FindAllStringIndex(text, -1) {
			if t, err := time.Parse(d.layout, text[m[0]:m[1]]); err == nil {
				mentions = append(mentions, mention{text: t.Format("2006-01-02"), pos: m[0]})
			}
		}
	}
	return mentions
}

// nearestDate picks the date mention closest to pos within dateWindow
// characters, falling back to the first date found.
func nearestDate(dates []mention, pos int) string {
	best := ""
	bestDist := dateWindow + 1
	for _, d := range dates {
		dist := pos - d.pos
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			bestDist = dist
			best = d.text
		}
	}
	if best == "" && len(dates) > 0 {
		best = dates[0].text
	}
	return best
}

// closestCompany returns the company mention nearest to pos, if any sits
// within companyWindow characters.
func closestCompany(companies []mention, pos int) string {
	best := ""
	bestDist := companyWindow + 1
	for _, c := range companies {
		dist := pos - c.pos
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			bestDist = dist
			best = c.text
		}
	}
	return best
}

// sectorKeywords maps text keywords to canonical sector labels.
var sectorKeywords = map[string]string{
	"fintech":                 "fintech",
	"healthtech":              "healthtech",
	"health tech":             "healthtech",
	"biotech":                 "biotech",
	"cybersecurity":           "cybersecurity",
	"edtech":                  "edtech",
	"climate":                 "climate",
	"crypto":                  "crypto",
	"blockchain":              "crypto",
	"web3":                    "crypto",
	"gaming":                  "gaming",
	"e-commerce":              "ecommerce",
	"ecommerce":               "ecommerce",
	"insurtech":               "insurtech",
	"proptech":                "proptech",
	"real estate":             "proptech",
	"robotics":                "robotics",
	"logistics":               "logistics",
	"transportation":          "transportation",
	"artificial intelligence": "ai",
	"machine learning":        "ai",
}

func findSectors(text string) []string {
	lower := strings.ToLower(text)
	var sectors []string
	seen := make(map[string]struct{})
	for keyword, sector := range sectorKeywords {
		if !strings.Contains(lower, keyword) {
			continue
		}
		if _, ok := seen[sector]; ok {
			continue
		}
		seen[sector] = struct{}{}
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)
	return sectors
}
