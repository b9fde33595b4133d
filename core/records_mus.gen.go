// Code generated by musgen-go. DO NOT EDIT.

package core

import (
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

var (
	sliceIIehd2teYiREFHnSmVaGJwΞΞ = ord.NewSliceSer[string](ord.String)
	sliceMuSytVVXJ2gcmKUWdVKIVgΞΞ = ord.NewSliceSer[float32](varint.Float32)
	sliceeuyIpgp9ovFOPf5B06JSkAΞΞ = ord.NewSliceSer[ID](IDMUS)
)

var IDMUS = iDMUS{}

type iDMUS struct{}

func (s iDMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s iDMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	tmp, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	v = ID(tmp)
	return
}

func (s iDMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

func (s iDMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

var DocumentStatusMUS = documentStatusMUS{}

type documentStatusMUS struct{}

func (s documentStatusMUS) Marshal(v DocumentStatus, bs []byte) (n int) {
	return varint.Int.Marshal(int(v), bs)
}

func (s documentStatusMUS) Unmarshal(bs []byte) (v DocumentStatus, n int, err error) {
	tmp, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	v = DocumentStatus(tmp)
	return
}

func (s documentStatusMUS) Size(v DocumentStatus) (size int) {
	return varint.Int.Size(int(v))
}

func (s documentStatusMUS) Skip(bs []byte) (n int, err error) {
	return varint.Int.Skip(bs)
}

var FeedStatusMUS = feedStatusMUS{}

type feedStatusMUS struct{}

func (s feedStatusMUS) Marshal(v FeedStatus, bs []byte) (n int) {
	return varint.Int.Marshal(int(v), bs)
}

func (s feedStatusMUS) Unmarshal(bs []byte) (v FeedStatus, n int, err error) {
	tmp, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	v = FeedStatus(tmp)
	return
}

func (s feedStatusMUS) Size(v FeedStatus) (size int) {
	return varint.Int.Size(int(v))
}

func (s feedStatusMUS) Skip(bs []byte) (n int, err error) {
	return varint.Int.Skip(bs)
}

var DocumentMUS = documentMUS{}

type documentMUS struct{}

func (s documentMUS) Marshal(v Document, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.FeedId, bs[n:])
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.SourceKey, bs[n:])
	n += ord.String.Marshal(v.ContentType, bs[n:])
	n += ord.String.Marshal(v.RawContent, bs[n:])
	n += ord.String.Marshal(v.ArticleURL, bs[n:])
	n += DocumentStatusMUS.Marshal(v.Status, bs[n:])
	n += ord.Bool.Marshal(v.FeaturesExtracted, bs[n:])
	n += ord.String.Marshal(v.ErrorMessage, bs[n:])
	n += varint.Int.Marshal(v.ChunkCount, bs[n:])
	n += raw.TimeUnixMicro.Marshal(v.PublishedAt, bs[n:])
	n += raw.TimeUnixMicro.Marshal(v.CreatedAt, bs[n:])
	return n + raw.TimeUnixMicro.Marshal(v.UpdatedAt, bs[n:])
}

func (s documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.FeedId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceKey, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ContentType, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.RawContent, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ArticleURL, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Status, n1, err = DocumentStatusMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.FeaturesExtracted, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ErrorMessage, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.PublishedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	return
}

func (s documentMUS) Size(v Document) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.FeedId)
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.SourceKey)
	size += ord.String.Size(v.ContentType)
	size += ord.String.Size(v.RawContent)
	size += ord.String.Size(v.ArticleURL)
	size += DocumentStatusMUS.Size(v.Status)
	size += ord.Bool.Size(v.FeaturesExtracted)
	size += ord.String.Size(v.ErrorMessage)
	size += varint.Int.Size(v.ChunkCount)
	size += raw.TimeUnixMicro.Size(v.PublishedAt)
	size += raw.TimeUnixMicro.Size(v.CreatedAt)
	return size + raw.TimeUnixMicro.Size(v.UpdatedAt)
}

func (s documentMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = IDMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = DocumentStatusMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.Bool.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	return
}

var FeedMUS = feedMUS{}

type feedMUS struct{}

func (s feedMUS) Marshal(v Feed, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.URL, bs[n:])
	n += FeedStatusMUS.Marshal(v.Status, bs[n:])
	n += ord.String.Marshal(v.ErrorMessage, bs[n:])
	n += varint.Int.Marshal(v.ArticleCount, bs[n:])
	n += raw.TimeUnixMicro.Marshal(v.LastIngestedAt, bs[n:])
	n += raw.TimeUnixMicro.Marshal(v.CreatedAt, bs[n:])
	return n + raw.TimeUnixMicro.Marshal(v.UpdatedAt, bs[n:])
}

func (s feedMUS) Unmarshal(bs []byte) (v Feed, n int, err error) {
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.URL, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Status, n1, err = FeedStatusMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ErrorMessage, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ArticleCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastIngestedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	return
}

func (s feedMUS) Size(v Feed) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.URL)
	size += FeedStatusMUS.Size(v.Status)
	size += ord.String.Size(v.ErrorMessage)
	size += varint.Int.Size(v.ArticleCount)
	size += raw.TimeUnixMicro.Size(v.LastIngestedAt)
	size += raw.TimeUnixMicro.Size(v.CreatedAt)
	return size + raw.TimeUnixMicro.Size(v.UpdatedAt)
}

func (s feedMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = FeedStatusMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	return
}

var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

func (s chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	n = IDMUS.Marshal(v.DocumentId, bs)
	n += varint.Int.Marshal(v.Index, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += sliceMuSytVVXJ2gcmKUWdVKIVgΞΞ.Marshal(v.Vector, bs[n:])
	n += varint.Int.Marshal(v.TokenCount, bs[n:])
	return n + raw.TimeUnixMicro.Marshal(v.CreatedAt, bs[n:])
}

func (s chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	v.DocumentId, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Index, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = sliceMuSytVVXJ2gcmKUWdVKIVgΞΞ.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.TokenCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	return
}

func (s chunkMUS) Size(v Chunk) (size int) {
	size = IDMUS.Size(v.DocumentId)
	size += varint.Int.Size(v.Index)
	size += ord.String.Size(v.Content)
	size += sliceMuSytVVXJ2gcmKUWdVKIVgΞΞ.Size(v.Vector)
	size += varint.Int.Size(v.TokenCount)
	return size + raw.TimeUnixMicro.Size(v.CreatedAt)
}

func (s chunkMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = sliceMuSytVVXJ2gcmKUWdVKIVgΞΞ.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	return
}

var CompanyMUS = companyMUS{}

type companyMUS struct{}

func (s companyMUS) Marshal(v Company, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.NormalizedName, bs[n:])
	n += sliceIIehd2teYiREFHnSmVaGJwΞΞ.Marshal(v.Aliases, bs[n:])
	n += raw.TimeUnixMicro.Marshal(v.InsertedAt, bs[n:])
	return n + raw.TimeUnixMicro.Marshal(v.UpdatedAt, bs[n:])
}

func (s companyMUS) Unmarshal(bs []byte) (v Company, n int, err error) {
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.NormalizedName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Aliases, n1, err = sliceIIehd2teYiREFHnSmVaGJwΞΞ.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	return
}

func (s companyMUS) Size(v Company) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.NormalizedName)
	size += sliceIIehd2teYiREFHnSmVaGJwΞΞ.Size(v.Aliases)
	size += raw.TimeUnixMicro.Size(v.InsertedAt)
	return size + raw.TimeUnixMicro.Size(v.UpdatedAt)
}

func (s companyMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = sliceIIehd2teYiREFHnSmVaGJwΞΞ.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	return
}

var InvestorMUS = investorMUS{}

type investorMUS struct{}

func (s investorMUS) Marshal(v Investor, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.NormalizedName, bs[n:])
	n += sliceIIehd2teYiREFHnSmVaGJwΞΞ.Marshal(v.Aliases, bs[n:])
	n += raw.TimeUnixMicro.Marshal(v.InsertedAt, bs[n:])
	return n + raw.TimeUnixMicro.Marshal(v.UpdatedAt, bs[n:])
}

func (s investorMUS) Unmarshal(bs []byte) (v Investor, n int, err error) {
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.NormalizedName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Aliases, n1, err = sliceIIehd2teYiREFHnSmVaGJwΞΞ.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	return
}

func (s investorMUS) Size(v Investor) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.NormalizedName)
	size += sliceIIehd2teYiREFHnSmVaGJwΞΞ.Size(v.Aliases)
	size += raw.TimeUnixMicro.Size(v.InsertedAt)
	return size + raw.TimeUnixMicro.Size(v.UpdatedAt)
}

func (s investorMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = sliceIIehd2teYiREFHnSmVaGJwΞΞ.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	return
}

var FundingRoundMUS = fundingRoundMUS{}

type fundingRoundMUS struct{}

func (s fundingRoundMUS) Marshal(v FundingRound, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += IDMUS.Marshal(v.DocumentId, bs[n:])
	n += IDMUS.Marshal(v.CompanyId, bs[n:])
	n += varint.Int64.Marshal(v.AmountUSD, bs[n:])
	n += ord.String.Marshal(v.AmountOriginal, bs[n:])
	n += ord.String.Marshal(v.Currency, bs[n:])
	n += ord.String.Marshal(v.RoundType, bs[n:])
	n += ord.String.Marshal(v.RoundDate, bs[n:])
	n += IDMUS.Marshal(v.LeadInvestorId, bs[n:])
	n += sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Marshal(v.InvestorIds, bs[n:])
	n += raw.TimeUnixMicro.Marshal(v.InsertedAt, bs[n:])
	return n + raw.TimeUnixMicro.Marshal(v.UpdatedAt, bs[n:])
}

func (s fundingRoundMUS) Unmarshal(bs []byte) (v FundingRound, n int, err error) {
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.DocumentId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CompanyId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.AmountUSD, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.AmountOriginal, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Currency, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.RoundType, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.RoundDate, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LeadInvestorId, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InvestorIds, n1, err = sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	return
}

func (s fundingRoundMUS) Size(v FundingRound) (size int) {
	size = IDMUS.Size(v.Id)
	size += IDMUS.Size(v.DocumentId)
	size += IDMUS.Size(v.CompanyId)
	size += varint.Int64.Size(v.AmountUSD)
	size += ord.String.Size(v.AmountOriginal)
	size += ord.String.Size(v.Currency)
	size += ord.String.Size(v.RoundType)
	size += ord.String.Size(v.RoundDate)
	size += IDMUS.Size(v.LeadInvestorId)
	size += sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Size(v.InvestorIds)
	size += raw.TimeUnixMicro.Size(v.InsertedAt)
	return size + raw.TimeUnixMicro.Size(v.UpdatedAt)
}

func (s fundingRoundMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = IDMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = IDMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = varint.Int64.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = IDMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	return
}

var DocumentFeatureMUS = documentFeatureMUS{}

type documentFeatureMUS struct{}

func (s documentFeatureMUS) Marshal(v DocumentFeature, bs []byte) (n int) {
	n = IDMUS.Marshal(v.DocumentId, bs)
	n += sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Marshal(v.CompanyIds, bs[n:])
	n += sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Marshal(v.InvestorIds, bs[n:])
	n += sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Marshal(v.FundingRoundIds, bs[n:])
	n += sliceIIehd2teYiREFHnSmVaGJwΞΞ.Marshal(v.Sectors, bs[n:])
	n += raw.TimeUnixMicro.Marshal(v.InsertedAt, bs[n:])
	return n + raw.TimeUnixMicro.Marshal(v.UpdatedAt, bs[n:])
}

func (s documentFeatureMUS) Unmarshal(bs []byte) (v DocumentFeature, n int, err error) {
	v.DocumentId, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.CompanyIds, n1, err = sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InvestorIds, n1, err = sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.FundingRoundIds, n1, err = sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Sectors, n1, err = sliceIIehd2teYiREFHnSmVaGJwΞΞ.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = raw.TimeUnixMicro.Unmarshal(bs[n:])
	n += n1
	return
}

func (s documentFeatureMUS) Size(v DocumentFeature) (size int) {
	size = IDMUS.Size(v.DocumentId)
	size += sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Size(v.CompanyIds)
	size += sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Size(v.InvestorIds)
	size += sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Size(v.FundingRoundIds)
	size += sliceIIehd2teYiREFHnSmVaGJwΞΞ.Size(v.Sectors)
	size += raw.TimeUnixMicro.Size(v.InsertedAt)
	return size + raw.TimeUnixMicro.Size(v.UpdatedAt)
}

func (s documentFeatureMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = sliceeuyIpgp9ovFOPf5B06JSkAΞΞ.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = sliceIIehd2teYiREFHnSmVaGJwΞΞ.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicro.Skip(bs[n:])
	n += n1
	return
}
