package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kamienica/internal/core"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestAllocateWaterCost(t *testing.T) {
	period := core.NewDate(2024, time.January, 1)

	t.Run("no override means zero cost with annotation", func(t *testing.T) {
		got := AllocateWaterCost(decimal.NewFromInt(10), decimal.NewFromInt(40), nil)
		if got.Source != SourceNoData {
			t.Errorf("source = %q, want %q", got.Source, SourceNoData)
		}
		if !got.UnitPrice.IsZero() || !got.Cost.IsZero() {
			t.Errorf("price = %s cost = %s, want zero", got.UnitPrice, got.Cost)
		}
	})

	t.Run("override without billed amount behaves like no data", func(t *testing.T) {
		override := &core.WaterCostOverride{PeriodStart: period, TotalConsumption: decPtr("40")}
		got := AllocateWaterCost(decimal.NewFromInt(10), decimal.NewFromInt(40), override)
		if got.Source != SourceNoData {
			t.Errorf("source = %q, want %q", got.Source, SourceNoData)
		}
		if !got.Cost.IsZero() {
			t.Errorf("cost = %s, want zero", got.Cost)
		}
	})

	t.Run("zero building consumption yields zero price", func(t *testing.T) {
		override := &core.WaterCostOverride{PeriodStart: period, BilledAmount: decPtr("250")}
		got := AllocateWaterCost(decimal.NewFromInt(10), decimal.Zero, override)
		if got.Source != SourceOverride {
			t.Errorf("source = %q, want %q", got.Source, SourceOverride)
		}
		if !got.UnitPrice.IsZero() || !got.Cost.IsZero() {
			t.Errorf("price = %s cost = %s, want zero", got.UnitPrice, got.Cost)
		}
	})

	t.Run("proportional allocation", func(t *testing.T) {
		override := &core.WaterCostOverride{PeriodStart: period, BilledAmount: decPtr("250")}
		got := AllocateWaterCost(decimal.NewFromInt(30), decimal.NewFromInt(100), override)
		if want := decimal.RequireFromString("2.5"); !got.UnitPrice.Equal(want) {
			t.Errorf("unit price = %s, want %s", got.UnitPrice, want)
		}
		if want := decimal.RequireFromString("75.00"); !got.Cost.Equal(want) {
			t.Errorf("cost = %s, want %s", got.Cost, want)
		}
	})

	t.Run("override consumption never feeds the denominator", func(t *testing.T) {
		override := &core.WaterCostOverride{
			PeriodStart:      period,
			BilledAmount:     decPtr("100"),
			TotalConsumption: decPtr("999"),
		}
		got := AllocateWaterCost(decimal.NewFromInt(25), decimal.NewFromInt(50), override)
		if want := decimal.NewFromInt(2); !got.UnitPrice.Equal(want) {
			t.Errorf("unit price = %s, want %s", got.UnitPrice, want)
		}
		if got.ConsumptionSource != SourceMeterSum {
			t.Errorf("consumption source = %q, want %q", got.ConsumptionSource, SourceMeterSum)
		}
	})

	t.Run("only the final cost is rounded", func(t *testing.T) {
		// 100 / 3 is periodic; allocating all 3 m3 back must reproduce
		// the billed amount exactly after the final rounding.
		override := &core.WaterCostOverride{PeriodStart: period, BilledAmount: decPtr("100")}
		got := AllocateWaterCost(decimal.NewFromInt(3), decimal.NewFromInt(3), override)
		if want := decimal.RequireFromString("100.00"); !got.Cost.Equal(want) {
			t.Errorf("cost = %s, want %s", got.Cost, want)
		}
	})
}

func TestWasteCost(t *testing.T) {
	rules := []core.FeeRule{
		{ID: 1, Name: "Wywóz śmieci", Method: core.FeePerPerson, Amount: decimal.NewFromInt(25), EffectiveFrom: core.NewDate(2022, time.January, 1)},
		{ID: 2, Name: "Wywóz śmieci", Method: core.FeePerPerson, Amount: decimal.NewFromInt(30), EffectiveFrom: core.NewDate(2024, time.March, 1)},
		{ID: 3, Name: "Sprzątanie klatki", Method: core.FeePerPerson, Amount: decimal.NewFromInt(99), EffectiveFrom: core.NewDate(2022, time.January, 1)},
		{ID: 4, Name: "Wywóz śmieci ryczałt", Method: core.FeeFixed, Amount: decimal.NewFromInt(500), EffectiveFrom: core.NewDate(2022, time.January, 1)},
	}

	tests := []struct {
		name        string
		periodStart time.Time
		occupants   int
		want        string
	}{
		{"rule in force before the raise", core.NewDate(2024, time.January, 1), 2, "100"},
		{"raised rate from its effective period", core.NewDate(2024, time.March, 1), 2, "120"},
		{"effective date equal to period start applies", core.NewDate(2024, time.March, 1), 3, "180"},
		{"no rule in force yet", core.NewDate(2021, time.May, 1), 2, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WasteCost(rules, tt.periodStart, tt.occupants)
			if want := decimal.RequireFromString(tt.want); !got.Equal(want) {
				t.Errorf("WasteCost = %s, want %s", got, want)
			}
		})
	}
}

func TestWasteCostNoApplicableRule(t *testing.T) {
	rules := []core.FeeRule{
		{ID: 1, Name: "Sprzątanie", Method: core.FeePerPerson, Amount: decimal.NewFromInt(10), EffectiveFrom: core.NewDate(2022, time.January, 1)},
	}
	if got := WasteCost(rules, core.NewDate(2024, time.January, 1), 2); !got.IsZero() {
		t.Errorf("WasteCost = %s, want 0", got)
	}
}
