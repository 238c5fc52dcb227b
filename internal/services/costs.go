package services

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kamienica/internal/core"
)

// Source annotations carried on computed costs. Missing data degrades to
// a zero cost with an annotation, never to an error.
const (
	SourceNoData   = "Brak danych"
	SourceOverride = "Ręczne ustawienie (admin)"
	SourceMeterSum = "Suma liczników"
)

// WaterCostDetails explains how a unit's water cost for one period was
// derived: the billed amount (nil when no override exists), the
// building-wide consumption it was divided by, and the resulting unit
// price and allocated cost.
type WaterCostDetails struct {
	BilledAmount        *decimal.Decimal
	Source              string
	BuildingConsumption decimal.Decimal
	ConsumptionSource   string
	UnitPrice           decimal.Decimal
	Cost                decimal.Decimal // rounded to 2 decimals
}

// AllocateWaterCost computes a unit's share of the period's water bill.
// The billed amount comes exclusively from the override; the building
// consumption always comes from meter sums, never from the override.
// An unbilled period or zero building consumption yields a zero unit
// price. Only the final allocated cost is rounded.
func AllocateWaterCost(unitConsumption, buildingConsumption decimal.Decimal, override *core.WaterCostOverride) WaterCostDetails {
	details := WaterCostDetails{
		Source:              SourceNoData,
		BuildingConsumption: buildingConsumption,
		ConsumptionSource:   SourceMeterSum,
		UnitPrice:           decimal.Zero,
	}

	if override != nil && override.BilledAmount != nil {
		details.BilledAmount = override.BilledAmount
		details.Source = SourceOverride
	}

	if details.BilledAmount != nil && buildingConsumption.IsPositive() {
		details.UnitPrice = details.BilledAmount.Div(buildingConsumption)
	}

	details.Cost = unitConsumption.Mul(details.UnitPrice).Round(2)
	return details
}

// WasteCost charges the per-person waste fee for one bimonthly period:
// occupants x rule amount x 2 months. The applicable rule is the
// per-person rule whose name mentions waste disposal with the latest
// effective date not after the period start. No rule means zero.
func WasteCost(rules []core.FeeRule, periodStart time.Time, occupants int) decimal.Decimal {
	rule := wasteRuleFor(rules, periodStart)
	if rule == nil {
		return decimal.Zero
	}
	return rule.Amount.Mul(decimal.NewFromInt(int64(occupants))).Mul(decimal.NewFromInt(2))
}

func wasteRuleFor(rules []core.FeeRule, periodStart time.Time) *core.FeeRule {
	var best *core.FeeRule
	for i := range rules {
		r := &rules[i]
		if r.Method != core.FeePerPerson {
			continue
		}
		if !isWasteRule(r.Name) {
			continue
		}
		if r.EffectiveFrom.After(periodStart) {
			continue
		}
		if best == nil || r.EffectiveFrom.After(best.EffectiveFrom) {
			best = r
		}
	}
	return best
}

func isWasteRule(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "śmieci") || strings.Contains(lower, "smieci") || strings.Contains(lower, "waste")
}
