package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/xynenyx/fundwire/core"
)

// Key prefixes for different data types
const (
	feedPrefix         = "feedrec"
	documentPrefix     = "docrec"
	documentStatusIdx  = "docstat"
	chunkPrefix        = "chkrec"
	companyPrefix      = "correc"
	companyNameIdx     = "conaidx"
	investorPrefix     = "invrec"
	investorNameIdx    = "invnaidx"
	fundingRoundPrefix = "frrec"
	fundingRoundDocIdx = "frdocidx"
	fundingRoundCoIdx  = "frcoidx"
	fundingRoundIDSeq  = "frrecseq"
	documentFeaturePfx = "featrec"
)

// makeFeedKey generates a key for a feed by ID.
func makeFeedKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", feedPrefix, id))
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeDocumentStatusKey generates a composite key for the status index.
// Format: prefix:status:createdAt:id, with createdAt and id in BigEndian so
// lexicographic iteration yields oldest-first order within a status.
func makeDocumentStatusKey(status core.DocumentStatus, createdAt time.Time, id core.ID) []byte {
	prefix := fmt.Sprintf("%s:%d:", documentStatusIdx, status)
	prefixBytes := []byte(prefix)
	totalSize := len(prefixBytes) + 16 // 8 bytes for createdAt + 8 bytes for ID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeDocumentStatusPrefix generates the scan prefix for a status.
func makeDocumentStatusPrefix(status core.DocumentStatus) []byte {
	return []byte(fmt.Sprintf("%s:%d:", documentStatusIdx, status))
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:documentID:index, BigEndian so chunks iterate in order.
func makeChunkKey(documentID core.ID, index int) []byte {
	prefix := chunkPrefix + ":"
	prefixBytes := []byte(prefix)
	totalSize := len(prefixBytes) + 12 // 8 bytes for documentID + 4 bytes for index
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	offset += 8
	binary.BigEndian.PutUint32(buf[offset:], uint32(index))
	return buf
}

// makeChunkDocPrefix generates the scan prefix for a document's chunks.
func makeChunkDocPrefix(documentID core.ID) []byte {
	prefix := chunkPrefix + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	return buf
}

// makeCompanyKey generates a key for a company by ID.
func makeCompanyKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", companyPrefix, id))
}

// makeCompanyNameKey generates a key for company lookup by normalized name.
func makeCompanyNameKey(normalized string) []byte {
	return []byte(companyNameIdx + ":" + normalized)
}

// makeInvestorKey generates a key for an investor by ID.
func makeInvestorKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", investorPrefix, id))
}

// makeInvestorNameKey generates a key for investor lookup by normalized name.
func makeInvestorNameKey(normalized string) []byte {
	return []byte(investorNameIdx + ":" + normalized)
}

// makeFundingRoundKey generates a key for a funding round by ID.
func makeFundingRoundKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", fundingRoundPrefix, id))
}

// makeFundingRoundDocKey generates a composite key for the document index.
// Format: prefix:documentID:roundID
func makeFundingRoundDocKey(documentID, roundID core.ID) []byte {
	prefix := fundingRoundDocIdx + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+16)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(roundID))
	return buf
}

// makeFundingRoundDocPrefix generates the scan prefix for a document's rounds.
func makeFundingRoundDocPrefix(documentID core.ID) []byte {
	prefix := fundingRoundDocIdx + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	return buf
}

// makeFundingRoundCoKey generates a composite key for the company index.
// Format: prefix:companyID:roundID
func makeFundingRoundCoKey(companyID, roundID core.ID) []byte {
	prefix := fundingRoundCoIdx + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+16)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(companyID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(roundID))
	return buf
}

// makeFundingRoundCoPrefix generates the scan prefix for a company's rounds.
func makeFundingRoundCoPrefix(companyID core.ID) []byte {
	prefix := fundingRoundCoIdx + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(companyID))
	return buf
}

// makeDocumentFeatureKey generates a key for a document's feature record.
func makeDocumentFeatureKey(documentID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentFeaturePfx, documentID))
}
