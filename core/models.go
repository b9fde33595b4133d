package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"regexp"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs: documents hash
// their article URL, companies and investors hash their normalized name, so
// re-ingestion and re-extraction converge instead of duplicating rows.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

var (
	normalizeExpr = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceExpr     = regexp.MustCompile(`\s+`)
)

// NormalizeName canonicalizes an entity name for matching: lowercase,
// non-alphanumerics stripped, runs of whitespace collapsed to one space.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = normalizeExpr.ReplaceAllString(s, "")
	s = spaceExpr.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// DocumentStatus enumerates the document lifecycle states.
type DocumentStatus int

const (
	// StatusPending marks a freshly ingested document awaiting processing.
	StatusPending DocumentStatus = iota + 1
	// StatusProcessing marks a document claimed by a worker.
	StatusProcessing
	// StatusReady marks a document whose chunks and embeddings are persisted.
	StatusReady
	// StatusError marks a document that failed processing. Error documents
	// never transition again without operator or reconciler intervention.
	StatusError
)

// String returns the lowercase wire name of the status.
func (s DocumentStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Document is a unit of ingested content driving the worker state machine.
//
// Lifecycle: created pending by the feed ingestor, claimed
// pending->processing->{ready|error} by the processing worker, then claimed by
// the features worker which flips FeaturesExtracted. The reconciler may reset
// FeaturesExtracted to false to force re-extraction.
//
// Invariant: FeaturesExtracted implies Status == StatusReady.
type Document struct {
	Id                ID
	FeedId            ID
	Name              string // article title
	SourceKey         string // provenance key, e.g. "rss://<feed>/<item>"
	ContentType       string
	RawContent        string
	ArticleURL        string
	Status            DocumentStatus
	FeaturesExtracted bool
	ErrorMessage      string
	ChunkCount        int
	PublishedAt       time.Time // zero when the feed carried no publish date
	CreatedAt         time.Time
	UpdatedAt         time.Time // time of the last state transition
}

// FeedStatus enumerates ingestion-source states.
type FeedStatus int

const (
	// FeedActive feeds are picked up by the ingestion worker.
	FeedActive FeedStatus = iota + 1
	// FeedInactive feeds are skipped.
	FeedInactive
	// FeedError marks a feed whose last ingestion pass failed.
	FeedError
)

// String returns the lowercase wire name of the feed status.
func (s FeedStatus) String() string {
	switch s {
	case FeedActive:
		return "active"
	case FeedInactive:
		return "inactive"
	case FeedError:
		return "error"
	default:
		return "unknown"
	}
}

// Feed is an ingestion source. Owned by the ingestion worker; read-only to
// every other component.
type Feed struct {
	Id             ID
	Name           string
	URL            string
	Status         FeedStatus
	ErrorMessage   string
	ArticleCount   int
	LastIngestedAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Chunk is a slice of document text with its embedding vector.
// All chunks of a document are persisted before the document flips to ready.
type Chunk struct {
	DocumentId ID
	Index      int
	Content    string
	Vector     []float32 // normalized embedding (populated by the processing worker)
	TokenCount int
	CreatedAt  time.Time
}

// SearchResult is a chunk matched by a similarity query together with the
// document it came from.
type SearchResult struct {
	Chunk    *Chunk
	Document *Document
	Score    float32
}

// Company is a normalized named entity extracted from documents.
// Its ID is content-based: IDFromContent(NormalizedName).
type Company struct {
	Id             ID
	Name           string
	NormalizedName string
	Aliases        []string
	InsertedAt     time.Time
	UpdatedAt      time.Time
}

// Investor is a normalized named entity extracted from documents.
// Its ID is content-based: IDFromContent(NormalizedName).
type Investor struct {
	Id             ID
	Name           string
	NormalizedName string
	Aliases        []string
	InsertedAt     time.Time
	UpdatedAt      time.Time
}

// FundingRound links a company to an amount raised, as evidenced by a single
// source document. CompanyId may be zero after reconciliation: deleting a bad
// company orphans its rounds rather than destroying funding data.
type FundingRound struct {
	Id             ID
	DocumentId     ID
	CompanyId      ID     // 0 = orphaned
	AmountUSD      int64  // canonical unit: whole US dollars
	AmountOriginal string // raw matched text, e.g. "$8 million"; empty = unparseable provenance
	Currency       string
	RoundType      string // "Seed", "Series A", ...
	RoundDate      string // YYYY-MM-DD, empty when unknown
	LeadInvestorId ID
	InvestorIds    []ID
	InsertedAt     time.Time
	UpdatedAt      time.Time
}

// DocumentFeature joins a document to the validated entities extracted from
// it. One record per document, upserted on re-extraction. Created only after
// validation; rejected candidates never reach this record.
type DocumentFeature struct {
	DocumentId      ID
	CompanyIds      []ID
	InvestorIds     []ID
	FundingRoundIds []ID
	Sectors         []string
	InsertedAt      time.Time
	UpdatedAt       time.Time
}
