package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"kamienica/internal/core"
)

// Reports composes the engine's computations into the report contexts a
// rendering collaborator consumes. All storage reads happen up front;
// the calculations themselves are pure.
type Reports struct {
	store Store
	now   func() time.Time
}

func NewReports(store Store) *Reports {
	return &Reports{store: store, now: time.Now}
}

// WaterPeriod is one bimonthly row of the water report.
type WaterPeriod struct {
	Start            time.Time
	End              time.Time
	Label            string
	Meters           []MeterConsumption
	TotalConsumption decimal.Decimal
	Water            WaterCostDetails
	WasteCost        decimal.Decimal
}

// WaterReport is the bimonthly consumption and cost view of one unit.
type WaterReport struct {
	Unit    core.Unit
	Lease   *core.Lease
	Year    int
	Periods []WaterPeriod // newest first
	// LatestBuildingConsumption is the building-wide metered total of
	// the newest reported period, surfaced for the report header.
	LatestBuildingConsumption decimal.Decimal
}

// WaterReport builds the bimonthly water/waste view for a unit and year.
// Periods without any reading pair are omitted; periods without billing
// data are reported with zero cost and a "no data" source annotation.
func (r *Reports) WaterReport(ctx context.Context, unitCode string, year int) (*WaterReport, error) {
	unit, err := r.store.UnitByCode(ctx, unitCode)
	if err != nil {
		return nil, fmt.Errorf("look up unit %q: %w", unitCode, err)
	}

	lease, err := r.store.ActiveLeaseForUnit(ctx, unit.ID)
	if err != nil {
		return nil, fmt.Errorf("look up active lease: %w", err)
	}

	unitMeters, err := r.store.UnitWaterReadings(ctx, unit.ID)
	if err != nil {
		return nil, fmt.Errorf("load unit readings: %w", err)
	}
	buildingMeters, err := r.store.BuildingWaterReadings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load building readings: %w", err)
	}
	feeRules, err := r.store.FeeRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fee rules: %w", err)
	}

	unitConsumption := AggregateConsumption(unitMeters)
	buildingTotals := BuildingConsumption(buildingMeters)

	var starts []time.Time
	for start := range unitConsumption {
		if start.Year() == year {
			starts = append(starts, start)
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[j].Before(starts[i]) })

	report := &WaterReport{Unit: *unit, Lease: lease, Year: year}

	for _, start := range starts {
		pc := unitConsumption[start]

		override, err := r.store.WaterOverride(ctx, start)
		if err != nil {
			return nil, fmt.Errorf("load water override for %s: %w", start.Format("2006-01-02"), err)
		}

		period := WaterPeriod{
			Start:            start,
			End:              core.PeriodEnd(start),
			Label:            core.PeriodLabel(start),
			Meters:           pc.Meters,
			TotalConsumption: pc.Total,
			Water:            AllocateWaterCost(pc.Total, buildingTotals[start], override),
			WasteCost:        decimal.Zero,
		}
		if lease != nil {
			period.WasteCost = WasteCost(feeRules, start, lease.Occupants)
		}

		report.Periods = append(report.Periods, period)
	}

	if len(report.Periods) > 0 {
		report.LatestBuildingConsumption = report.Periods[0].Water.BuildingConsumption
	}

	slog.DebugContext(ctx, "Built water report",
		"unit", unit.Code,
		"year", year,
		"periods", len(report.Periods))

	return report, nil
}
