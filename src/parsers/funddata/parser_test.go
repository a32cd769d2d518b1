package funddata

import (
	"strings"
	"testing"

	"github.com/username/zynbudget/backend/src/models"
)

func TestParseRSAContributions(t *testing.T) {
	csvData := `contribution_date,contribution_type,amount,units_purchased,nav_per_unit,reference_number,notes
2026-01-31,EMPLOYEE,500.00,10.5,47.62,REF-001,January payroll
2026-01-31,EMPLOYER,600.00,,,,
2026-02-28,VOLUNTARY,100.00,2.1,47.80,REF-002,top up
`
	result, err := NewParser().Parse(models.UploadTypeRSAContributions, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.RowErrors) != 0 {
		t.Fatalf("unexpected row errors: %v", result.RowErrors)
	}
	if len(result.Contributions) != 3 {
		t.Fatalf("parsed %d contributions, want 3", len(result.Contributions))
	}

	first := result.Contributions[0]
	if first.ContributionDate != "2026-01-31" {
		t.Errorf("date = %s", first.ContributionDate)
	}
	if first.ContributionType != "EMPLOYEE" {
		t.Errorf("type = %s", first.ContributionType)
	}
	if first.Amount.String() != "500" {
		t.Errorf("amount = %s, want 500", first.Amount)
	}

	// Omitted optional columns default to zero.
	if !result.Contributions[1].UnitsPurchased.IsZero() {
		t.Errorf("blank units_purchased should be zero, got %s", result.Contributions[1].UnitsPurchased)
	}
}

func TestParseSanitizesNotes(t *testing.T) {
	csvData := "contribution_date,contribution_type,amount,notes\n" +
		"2026-01-31,EMPLOYEE,500.00,=SUM(A1:A9)\n" +
		"2026-02-28,EMPLOYEE,500.00,bad\x00note<b>bold</b>\n"
	result, err := NewParser().Parse(models.UploadTypeRSAContributions, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.RowErrors) != 0 {
		t.Fatalf("unexpected row errors: %v", result.RowErrors)
	}

	// Formula triggers are neutralized with a leading quote.
	if got := result.Contributions[0].Notes; got != "'=SUM(A1:A9)" {
		t.Errorf("formula note = %q, want leading quote", got)
	}
	// Control characters and HTML tags are stripped.
	if got := result.Contributions[1].Notes; got != "badnotebold" {
		t.Errorf("dirty note = %q, want badnotebold", got)
	}
}

func TestParseCollectsRowErrors(t *testing.T) {
	csvData := `contribution_date,contribution_type,amount
2026-01-31,EMPLOYEE,500.00
not-a-date,EMPLOYEE,500.00
2026-02-28,GIFT,100.00
2026-03-31,EMPLOYER,-10
2026-04-30,VOLUNTARY,250.00
`
	result, err := NewParser().Parse(models.UploadTypeRSAContributions, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Contributions) != 2 {
		t.Errorf("parsed %d rows, want 2", len(result.Contributions))
	}
	if len(result.RowErrors) != 3 {
		t.Fatalf("collected %d row errors, want 3: %v", len(result.RowErrors), result.RowErrors)
	}
	// Line numbers are spreadsheet-style, counting the header as line 1.
	if result.RowErrors[0].Line != 3 {
		t.Errorf("first error line = %d, want 3", result.RowErrors[0].Line)
	}
}

func TestParseMissingRequiredColumn(t *testing.T) {
	csvData := `contribution_date,amount
2026-01-31,500.00
`
	if _, err := NewParser().Parse(models.UploadTypeRSAContributions, strings.NewReader(csvData)); err == nil {
		t.Fatal("missing contribution_type column should fail the parse")
	}
}

func TestParseUnsupportedUploadType(t *testing.T) {
	if _, err := NewParser().Parse("BANK_STATEMENT", strings.NewReader("a,b\n")); err == nil {
		t.Fatal("unsupported upload type should fail")
	}
}

func TestParseManagedTransactionsNegativeAmounts(t *testing.T) {
	csvData := `transaction_date,transaction_type,amount,units,price_per_unit
2026-03-01,PURCHASE,1000.00,20,50.00
2026-03-15,REDEMPTION,-400.00,-8,50.00
`
	result, err := NewParser().Parse(models.UploadTypeManagedTransactions, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.RowErrors) != 0 {
		t.Fatalf("unexpected row errors: %v", result.RowErrors)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("parsed %d transactions, want 2", len(result.Transactions))
	}
	if result.Transactions[1].Amount.String() != "-400" {
		t.Errorf("redemption amount = %s, want -400", result.Transactions[1].Amount)
	}
}

func TestParsePerformancePeriodOrdering(t *testing.T) {
	csvData := `period_type,period_start_date,period_end_date,closing_nav
MONTHLY,2026-01-01,2026-01-31,52.10
MONTHLY,2026-02-28,2026-02-01,52.40
`
	result, err := NewParser().Parse(models.UploadTypeFundPerformance, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.Performance) != 1 {
		t.Errorf("parsed %d rows, want 1", len(result.Performance))
	}
	if len(result.RowErrors) != 1 {
		t.Fatalf("collected %d row errors, want 1", len(result.RowErrors))
	}
}

func TestParseSkipsBlankLines(t *testing.T) {
	csvData := "balance_date,market_value\n2026-01-31,1000.00\n,\n\n2026-02-28,1100.00\n"
	result, err := NewParser().Parse(models.UploadTypeRSABalances, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(result.RSABalances) != 2 {
		t.Errorf("parsed %d balances, want 2", len(result.RSABalances))
	}
	if len(result.RowErrors) != 0 {
		t.Errorf("blank lines should not produce errors: %v", result.RowErrors)
	}
}
