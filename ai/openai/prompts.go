package openai

import (
	"fmt"
	"strings"

	"github.com/xynenyx/fundwire/ai"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "companies": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"}
        },
        "required": ["name"],
        "additionalProperties": false
      }
    },
    "investors": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "lead": {"type": "boolean"}
        },
        "required": ["name", "lead"],
        "additionalProperties": false
      }
    },
    "rounds": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "company": {"type": "string"},
          "amount": {"type": "string"},
          "round_type": {"type": "string"},
          "date": {"type": "string"}
        },
        "required": ["company", "amount"],
        "additionalProperties": false
      }
    },
    "sectors": {
      "type": "array",
      "items": {"type": "string"}
    }
  },
  "required": ["companies", "investors", "rounds", "sectors"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `Extract startup funding information from the given news article and return it as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- "companies" lists only companies that are raising or have raised money in this article. Use the name exactly as written, without legal suffixes like "Inc." or "Ltd.".
- "investors" lists venture funds, angels and other backers. Set "lead" to true only when the article says the investor led the round.
- "rounds" pairs each raising company with the amount. "amount" is the raw amount text from the article, e.g. "$8 million" or "€2.5M". Do not convert or reformat it.
- "round_type" must be one of: %s. Leave it empty when the stage is not stated.
- "date" is the round date in YYYY-MM-DD form, empty when not stated.
- "sectors" must use only values from: %s.
- Never list reporters, publications or sentence fragments as companies or investors.
- If the article describes no funding event, return empty arrays.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "Acme, a fintech startup, announced today that it raised $8 million in a Series A round led by Foo Ventures, with participation from Bar Capital."
Output:
{
  "companies": [{"name":"Acme"}],
  "investors": [
    {"name":"Foo Ventures","lead":true},
    {"name":"Bar Capital","lead":false}
  ],
  "rounds": [{"company":"Acme","amount":"$8 million","round_type":"series a","date":""}],
  "sectors": ["fintech"]
}

Example (no funding event):
Input: "The conference drew record attendance this year."
Output:
{
  "companies": [],
  "investors": [],
  "rounds": [],
  "sectors": []
}`

// buildSystemPrompt creates the system prompt with round and sector vocabularies embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(extractionPromptTemplate,
		extractionResponseSchema,
		strings.Join(ai.RoundTypes, ", "),
		strings.Join(ai.Sectors, ", "))
}
