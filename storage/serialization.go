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


package storage

import (
	"github.com/xynenyx/fundwire/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	var id core.ID
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalFeed serializes a Feed to bytes.
func MarshalFeed(feed *core.Feed) []byte {
	buf := make([]byte, core.FeedMUS.Size(*feed))
	core.FeedMUS.Marshal(*feed, buf)
	return buf
}

// UnmarshalFeed deserializes a Feed from bytes.
func UnmarshalFeed(data []byte) (*core.Feed, error) {
	feed, _, err := core.FeedMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, core.DocumentMUS.Size(*doc))
	core.DocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := core.DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, core.ChunkMUS.Size(*chunk))
	core.ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := core.ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// MarshalCompany serializes a Company to bytes.
func MarshalCompany(company *core.Company) []byte {
	buf := make([]byte, core.CompanyMUS.Size(*company))
	core.CompanyMUS.Marshal(*company, buf)
	return buf
}

// UnmarshalCompany deserializes a Company from bytes.
func UnmarshalCompany(data []byte) (*core.Company, error) {
	company, _, err := core.CompanyMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// MarshalInvestor serializes an Investor to bytes.
func MarshalInvestor(investor *core.Investor) []byte {
	buf := make([]byte, core.InvestorMUS.Size(*investor))
	core.InvestorMUS.Marshal(*investor, buf)
	return buf
}

// UnmarshalInvestor deserializes an Investor from bytes.
func UnmarshalInvestor(data []byte) (*core.Investor, error) {
	investor, _, err := core.InvestorMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &investor, nil
}

// MarshalFundingRound serializes a FundingRound to bytes.
func MarshalFundingRound(round *core.FundingRound) []byte {
	buf := make([]byte, core.FundingRoundMUS.Size(*round))
	core.FundingRoundMUS.Marshal(*round, buf)
	return buf
}

// UnmarshalFundingRound deserializes a FundingRound from bytes.
func UnmarshalFundingRound(data []byte) (*core.FundingRound, error) {
	round, _, err := core.FundingRoundMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// MarshalDocumentFeature serializes a DocumentFeature to bytes.
func MarshalDocumentFeature(feature *core.DocumentFeature) []byte {
	buf := make([]byte, core.DocumentFeatureMUS.Size(*feature))
	core.DocumentFeatureMUS.Marshal(*feature, buf)
	return buf
}

// UnmarshalDocumentFeature deserializes a DocumentFeature from bytes.
func UnmarshalDocumentFeature(data []byte) (*core.DocumentFeature, error) {
	feature, _, err := core.DocumentFeatureMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &feature, nil
}
