package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kamienica/internal/core"
)

func TestWaterReport(t *testing.T) {
	store, _ := ledgerFixture()
	r := fixedReports(store, core.NewDate(2025, time.June, 15))

	report, err := r.WaterReport(context.Background(), "5", 2024)
	if err != nil {
		t.Fatal(err)
	}

	if report.Unit.Code != "5" {
		t.Errorf("unit = %s, want 5", report.Unit.Code)
	}
	if report.Lease == nil {
		t.Fatal("expected the active lease on the report")
	}

	// Only the Jan-Feb period has a reading pair.
	if len(report.Periods) != 1 {
		t.Fatalf("periods = %d, want 1", len(report.Periods))
	}
	period := report.Periods[0]
	if period.Label != "styczeń-luty 2024" {
		t.Errorf("label = %q", period.Label)
	}
	if want := decimal.NewFromInt(10); !period.TotalConsumption.Equal(want) {
		t.Errorf("consumption = %s, want %s", period.TotalConsumption, want)
	}
	if period.Water.Source != SourceOverride {
		t.Errorf("source = %q, want %q", period.Water.Source, SourceOverride)
	}
	if want := decimal.RequireFromString("50.00"); !period.Water.Cost.Equal(want) {
		t.Errorf("cost = %s, want %s", period.Water.Cost, want)
	}
	if want := decimal.NewFromInt(80); !period.WasteCost.Equal(want) {
		t.Errorf("waste = %s, want %s", period.WasteCost, want)
	}
	if want := decimal.NewFromInt(40); !report.LatestBuildingConsumption.Equal(want) {
		t.Errorf("building consumption = %s, want %s", report.LatestBuildingConsumption, want)
	}
}

func TestWaterReportWithoutLease(t *testing.T) {
	store, _ := ledgerFixture()
	store.activeLeases = nil
	r := fixedReports(store, core.NewDate(2025, time.June, 15))

	report, err := r.WaterReport(context.Background(), "5", 2024)
	if err != nil {
		t.Fatal(err)
	}
	if report.Lease != nil {
		t.Fatal("expected no lease")
	}
	// Water is still allocated; only the per-person waste fee needs a lease.
	if !report.Periods[0].WasteCost.IsZero() {
		t.Errorf("waste = %s, want 0", report.Periods[0].WasteCost)
	}
	if want := decimal.RequireFromString("50.00"); !report.Periods[0].Water.Cost.Equal(want) {
		t.Errorf("cost = %s, want %s", report.Periods[0].Water.Cost, want)
	}
}

func TestWaterReportUnbilledPeriod(t *testing.T) {
	store, _ := ledgerFixture()
	store.overrides = nil
	r := fixedReports(store, core.NewDate(2025, time.June, 15))

	report, err := r.WaterReport(context.Background(), "5", 2024)
	if err != nil {
		t.Fatal(err)
	}
	period := report.Periods[0]
	if period.Water.Source != SourceNoData {
		t.Errorf("source = %q, want %q", period.Water.Source, SourceNoData)
	}
	if !period.Water.Cost.IsZero() {
		t.Errorf("cost = %s, want 0", period.Water.Cost)
	}
	if want := decimal.NewFromInt(10); !period.TotalConsumption.Equal(want) {
		t.Errorf("consumption = %s, want %s", period.TotalConsumption, want)
	}
}

func TestWaterReportFiltersYear(t *testing.T) {
	store, _ := ledgerFixture()
	r := fixedReports(store, core.NewDate(2025, time.June, 15))

	report, err := r.WaterReport(context.Background(), "5", 2023)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Periods) != 0 {
		t.Errorf("periods = %d, want 0", len(report.Periods))
	}
	if !report.LatestBuildingConsumption.IsZero() {
		t.Errorf("building consumption = %s, want 0", report.LatestBuildingConsumption)
	}
}
