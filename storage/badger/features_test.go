package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/storage"
)

func TestGetOrCreateCompany(t *testing.T) {
	_, docRepo, featureRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { featureRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	first, err := featureRepo.GetOrCreateCompany(ctx, "Acme, Inc.")
	if err != nil {
		t.Fatalf("Failed to create company: %v", err)
	}
	if first.Id == 0 {
		t.Fatal("Expected non-zero ID")
	}
	if first.NormalizedName != "acme inc" {
		t.Fatalf("Unexpected normalized name: %s", first.NormalizedName)
	}

	// Differently spelled variants resolve to the same company
	second, err := featureRepo.GetOrCreateCompany(ctx, "ACME Inc")
	if err != nil {
		t.Fatalf("Failed to get company: %v", err)
	}
	if second.Id != first.Id {
		t.Fatalf("Expected same company, got %d and %d", first.Id, second.Id)
	}

	companies, err := featureRepo.ListCompanies(ctx)
	if err != nil {
		t.Fatalf("Failed to list companies: %v", err)
	}
	if len(companies) != 1 {
		t.Fatalf("Expected 1 company, got %d", len(companies))
	}
}

func TestFundingRoundLifecycle(t *testing.T) {
	_, docRepo, featureRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { featureRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	company, err := featureRepo.GetOrCreateCompany(ctx, "Acme")
	if err != nil {
		t.Fatalf("Failed to create company: %v", err)
	}
	investor, err := featureRepo.GetOrCreateInvestor(ctx, "Foo Ventures")
	if err != nil {
		t.Fatalf("Failed to create investor: %v", err)
	}

	round, err := featureRepo.AddFundingRound(ctx, &core.FundingRound{
		DocumentId:     7,
		CompanyId:      company.Id,
		AmountUSD:      8_000_000,
		AmountOriginal: "$8 million",
		Currency:       "USD",
		RoundType:      "series a",
		LeadInvestorId: investor.Id,
		InvestorIds:    []core.ID{investor.Id},
	})
	if err != nil {
		t.Fatalf("Failed to add round: %v", err)
	}
	if round.Id == 0 {
		t.Fatal("Expected non-zero round ID")
	}

	byDoc, err := featureRepo.ListFundingRoundsByDocument(ctx, 7)
	if err != nil {
		t.Fatalf("Failed to list by document: %v", err)
	}
	if len(byDoc) != 1 || byDoc[0].Id != round.Id {
		t.Fatalf("Unexpected rounds by document: %v", byDoc)
	}

	byCompany, err := featureRepo.ListFundingRoundsByCompany(ctx, company.Id)
	if err != nil {
		t.Fatalf("Failed to list by company: %v", err)
	}
	if len(byCompany) != 1 {
		t.Fatalf("Expected 1 round for company, got %d", len(byCompany))
	}

	round.AmountUSD = 9_000_000
	if _, err := featureRepo.UpdateFundingRound(ctx, round); err != nil {
		t.Fatalf("Failed to update round: %v", err)
	}
	got, err := featureRepo.GetFundingRound(ctx, round.Id)
	if err != nil {
		t.Fatalf("Failed to get round: %v", err)
	}
	if got.AmountUSD != 9_000_000 {
		t.Fatalf("Expected updated amount, got %d", got.AmountUSD)
	}

	if err := featureRepo.DeleteFundingRound(ctx, round.Id); err != nil {
		t.Fatalf("Failed to delete round: %v", err)
	}
	_, err = featureRepo.GetFundingRound(ctx, round.Id)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	byDoc, err = featureRepo.ListFundingRoundsByDocument(ctx, 7)
	if err != nil {
		t.Fatalf("Failed to list by document: %v", err)
	}
	if len(byDoc) != 0 {
		t.Fatalf("Expected no rounds after delete, got %d", len(byDoc))
	}
}

func TestDeleteCompanyOrphansRounds(t *testing.T) {
	_, docRepo, featureRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { featureRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	company, err := featureRepo.GetOrCreateCompany(ctx, "Badco")
	if err != nil {
		t.Fatalf("Failed to create company: %v", err)
	}
	round, err := featureRepo.AddFundingRound(ctx, &core.FundingRound{
		DocumentId: 1,
		CompanyId:  company.Id,
		AmountUSD:  5_000_000,
	})
	if err != nil {
		t.Fatalf("Failed to add round: %v", err)
	}

	if err := featureRepo.DeleteCompany(ctx, company.Id); err != nil {
		t.Fatalf("Failed to delete company: %v", err)
	}

	// The round survives with its attribution cleared
	got, err := featureRepo.GetFundingRound(ctx, round.Id)
	if err != nil {
		t.Fatalf("Failed to get round: %v", err)
	}
	if got.CompanyId != 0 {
		t.Fatalf("Expected orphaned round, got company %d", got.CompanyId)
	}

	_, err = featureRepo.GetCompany(ctx, company.Id)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	// The normalized name is free again
	recreated, err := featureRepo.GetOrCreateCompany(ctx, "Badco")
	if err != nil {
		t.Fatalf("Failed to recreate company: %v", err)
	}
	if recreated.Id == 0 {
		t.Fatal("Expected recreated company")
	}
}

func TestDeleteInvestorClearsReferences(t *testing.T) {
	_, docRepo, featureRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { featureRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	lead, err := featureRepo.GetOrCreateInvestor(ctx, "Lead Capital")
	if err != nil {
		t.Fatalf("Failed to create investor: %v", err)
	}
	other, err := featureRepo.GetOrCreateInvestor(ctx, "Other Fund")
	if err != nil {
		t.Fatalf("Failed to create investor: %v", err)
	}
	round, err := featureRepo.AddFundingRound(ctx, &core.FundingRound{
		DocumentId:     1,
		AmountUSD:      1_000_000,
		LeadInvestorId: lead.Id,
		InvestorIds:    []core.ID{lead.Id, other.Id},
	})
	if err != nil {
		t.Fatalf("Failed to add round: %v", err)
	}

	if err := featureRepo.DeleteInvestor(ctx, lead.Id); err != nil {
		t.Fatalf("Failed to delete investor: %v", err)
	}

	got, err := featureRepo.GetFundingRound(ctx, round.Id)
	if err != nil {
		t.Fatalf("Failed to get round: %v", err)
	}
	if got.LeadInvestorId != 0 {
		t.Fatalf("Expected cleared lead investor, got %d", got.LeadInvestorId)
	}
	if len(got.InvestorIds) != 1 || got.InvestorIds[0] != other.Id {
		t.Fatalf("Unexpected investor refs: %v", got.InvestorIds)
	}
}

func TestDocumentFeatures(t *testing.T) {
	_, docRepo, featureRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { featureRepo.Close(); docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	feature := &core.DocumentFeature{
		DocumentId:  7,
		CompanyIds:  []core.ID{1},
		InvestorIds: []core.ID{2, 3},
		Sectors:     []string{"fintech"},
	}
	if _, err := featureRepo.UpsertDocumentFeature(ctx, feature); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	got, err := featureRepo.GetDocumentFeature(ctx, 7)
	if err != nil {
		t.Fatalf("Failed to get feature: %v", err)
	}
	if len(got.InvestorIds) != 2 {
		t.Fatalf("Expected 2 investors, got %d", len(got.InvestorIds))
	}

	// Upsert replaces
	feature.InvestorIds = []core.ID{2}
	if _, err := featureRepo.UpsertDocumentFeature(ctx, feature); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	got, err = featureRepo.GetDocumentFeature(ctx, 7)
	if err != nil {
		t.Fatalf("Failed to get feature: %v", err)
	}
	if len(got.InvestorIds) != 1 {
		t.Fatalf("Expected 1 investor after upsert, got %d", len(got.InvestorIds))
	}

	if err := featureRepo.DeleteDocumentFeature(ctx, 7); err != nil {
		t.Fatalf("Failed to delete feature: %v", err)
	}
	_, err = featureRepo.GetDocumentFeature(ctx, 7)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
