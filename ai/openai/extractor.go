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


package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xynenyx/fundwire/ai"
)

// EntityExtractor implements ai.EntityExtractor using OpenAI-compatible chat APIs.
type EntityExtractor struct {
	client llms.Model
	logger *slog.Logger
}

// Internal types matching the structure expected from the LLM.
type company struct {
	Name string `json:"name"`
}

type investor struct {
	Name string `json:"name"`
	Lead bool   `json:"lead"`
}

type round struct {
	Company   string `json:"company"`
	Amount    string `json:"amount"`
	RoundType string `json:"round_type"`
	Date      string `json:"date"`
}

// analysis is the wrapper structure for the LLM's JSON response.
type analysis struct {
	Companies []company  `json:"companies"`
	Investors []investor `json:"investors"`
	Rounds    []round    `json:"rounds"`
	Sectors   []string   `json:"sectors"`
}

// newEntityExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEntityExtractor(config *ai.Config) (*EntityExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Create OpenAI client configured for chat/extraction
	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken("none"),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &EntityExtractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewEntityExtractor creates a new entity extractor using the provided configuration.
//
// Returns ai.EntityExtractor interface to enforce abstraction.
func NewEntityExtractor(config *ai.Config) (ai.EntityExtractor, error) {
	return newEntityExtractor(config)
}

// ExtractEntities extracts funding entities from article text using an LLM.
func (e *EntityExtractor) ExtractEntities(ctx context.Context, text string) (*ai.ExtractedEntities, error) {
	systemPrompt := buildSystemPrompt()
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(systemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result analysis
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return &ai.ExtractedEntities{}, nil
		}

		choice := response.Choices[0]

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(choice.Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		// Try to repair common JSON issues
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			e.logger.Warn("error parsing extractor response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
		return nil, lastErr
	}

	extracted := &ai.ExtractedEntities{}
	for _, c := range result.Companies {
		if c.Name == "" {
			continue
		}
		extracted.Companies = append(extracted.Companies, ai.ExtractedCompany{Name: c.Name})
	}
	for _, inv := range result.Investors {
		if inv.Name == "" {
			continue
		}
		extracted.Investors = append(extracted.Investors, ai.ExtractedInvestor{Name: inv.Name, Lead: inv.Lead})
	}
	for _, r := range result.Rounds {
		if r.Amount == "" {
			continue
		}
		extracted.Rounds = append(extracted.Rounds, ai.ExtractedRound{
			Company:   r.Company,
			Amount:    r.Amount,
			RoundType: strings.ToLower(r.RoundType),
			Date:      r.Date,
		})
	}
	for _, s := range result.Sectors {
		s = strings.ReplaceAll(strings.ToLower(s), " ", "_")
		if s != "" {
			extracted.Sectors = append(extracted.Sectors, s)
		}
	}

	e.logger.Debug("extracted entities",
		"companies", len(extracted.Companies),
		"investors", len(extracted.Investors),
		"rounds", len(extracted.Rounds))

	return extracted, nil
}
