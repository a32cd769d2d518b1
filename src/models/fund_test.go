package models

import "testing"

func TestRSABalanceTotalContributions(t *testing.T) {
	b := RSABalance{
		TotalEmployeeContributions:  MustAmount("500.00"),
		TotalEmployerContributions:  MustAmount("600.00"),
		TotalVoluntaryContributions: MustAmount("100.00"),
	}
	if got := b.TotalContributions(); got.String() != "1200" {
		t.Errorf("TotalContributions = %s, want 1200", got)
	}
}

func TestManagedFundBalanceTotalReturn(t *testing.T) {
	b := ManagedFundBalance{
		UnrealizedGainLoss:     MustAmount("150.00"),
		RealizedGainLoss:       MustAmount("-20.00"),
		TotalDividendsReceived: MustAmount("10.00"),
		TotalInvested:          MustAmount("1000.00"),
	}
	if got := b.TotalReturn(); got.String() != "140" {
		t.Errorf("TotalReturn = %s, want 140", got)
	}
	if got := b.TotalReturnPercentage(); got.String() != "14" {
		t.Errorf("TotalReturnPercentage = %s, want 14", got)
	}
}

func TestManagedFundBalanceTotalReturnPercentageZeroInvested(t *testing.T) {
	b := ManagedFundBalance{
		UnrealizedGainLoss: MustAmount("50.00"),
		TotalInvested:      ZeroAmount(),
	}
	if got := b.TotalReturnPercentage(); !got.IsZero() {
		t.Errorf("TotalReturnPercentage with zero invested = %s, want 0", got)
	}

	b.TotalInvested = MustAmount("-100")
	if got := b.TotalReturnPercentage(); !got.IsZero() {
		t.Errorf("TotalReturnPercentage with negative invested = %s, want 0", got)
	}
}

func TestManagedFundBalanceTotalReturnPercentageRounding(t *testing.T) {
	b := ManagedFundBalance{
		UnrealizedGainLoss: MustAmount("1.00"),
		TotalInvested:      MustAmount("3.00"),
	}
	// 1/3 * 100 rounded to 2 decimal places
	if got := b.TotalReturnPercentage(); got.String() != "33.33" {
		t.Errorf("TotalReturnPercentage = %s, want 33.33", got)
	}
}

func TestEnumValidators(t *testing.T) {
	if !IsValidContributionType("EMPLOYEE") {
		t.Error("EMPLOYEE should be a valid contribution type")
	}
	if IsValidContributionType("GIFT") {
		t.Error("GIFT should not be a valid contribution type")
	}
	if !IsValidTransactionType("PURCHASE") {
		t.Error("PURCHASE should be a valid transaction type")
	}
	if IsValidTransactionType("") {
		t.Error("empty transaction type should be invalid")
	}
	if !IsValidPerformancePeriod("MONTHLY") {
		t.Error("MONTHLY should be a valid period type")
	}
	if IsValidRiskLevel("EXTREME") {
		t.Error("EXTREME should not be a valid risk level")
	}
	if !IsValidFundKind(FundKindRSA) || !IsValidFundKind(FundKindManaged) {
		t.Error("RSA and MANAGED should be valid fund kinds")
	}
	if IsValidFundKind("PENSION") {
		t.Error("PENSION should not be a valid fund kind")
	}
}
