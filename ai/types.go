package ai

// ExtractedEntities is the result of an extraction pass over article text.
type ExtractedEntities struct {
	Companies []ExtractedCompany
	Investors []ExtractedInvestor
	Rounds    []ExtractedRound
	Sectors   []string
}

// ExtractedCompany is a company mentioned as raising money.
type ExtractedCompany struct {
	// Name is the company name as it appears in the text.
	Name string
}

// ExtractedInvestor is an investor participating in a round.
type ExtractedInvestor struct {
	// Name is the investor name as it appears in the text.
	Name string

	// Lead is true when the text identifies this investor as leading the
	// round ("led by ...").
	Lead bool
}

// ExtractedRound is a funding round described in the text.
type ExtractedRound struct {
	// Company is the name of the company raising, empty if unattributed.
	Company string

	// Amount is the raw matched amount text, e.g. "$8 million".
	Amount string

	// RoundType is the stage if mentioned, e.g. "seed", "series a".
	RoundType string

	// Date is the round date in YYYY-MM-DD form if mentioned, else empty.
	Date string
}

// RoundTypes defines the funding stages extractors recognize.
var RoundTypes = []string{
	"pre-seed",
	"seed",
	"series a",
	"series b",
	"series c",
	"series d",
	"series e",
	"bridge",
	"growth",
	"debt",
	"grant",
}

// Sectors defines the valid sector labels for extracted companies.
var Sectors = []string{
	"ai",
	"biotech",
	"climate",
	"consumer",
	"crypto",
	"cybersecurity",
	"developer_tools",
	"ecommerce",
	"edtech",
	"enterprise",
	"fintech",
	"gaming",
	"hardware",
	"healthtech",
	"insurtech",
	"legaltech",
	"logistics",
	"media",
	"proptech",
	"robotics",
	"space",
	"transportation",
}
