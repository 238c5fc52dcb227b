package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"kamienica/internal/core"
)

var monthNames = [12]string{
	"Styczeń", "Luty", "Marzec", "Kwiecień", "Maj", "Czerwiec",
	"Lipiec", "Sierpień", "Wrzesień", "Październik", "Listopad", "Grudzień",
}

type (
	// RentMonth is one row of the annual rent schedule.
	RentMonth struct {
		Month     time.Month
		MonthName string
		Rent      decimal.Decimal
	}

	// LedgerEntry is one payment row with its running total. The first
	// entry may be the balance carried over from the previous year.
	LedgerEntry struct {
		Date         time.Time
		Amount       decimal.Decimal
		RunningTotal decimal.Decimal
		Description  string
	}

	// BimonthlyCosts is one water/waste cost row of the annual report.
	BimonthlyCosts struct {
		Label            string
		Start            time.Time
		End              time.Time
		WasteCost        decimal.Decimal
		WaterConsumption decimal.Decimal
		WaterCost        decimal.Decimal
		Meters           []MeterConsumption
	}

	// AnnualReport is the settlement of one lease for one calendar year.
	// Its FinalBalance seeds the following year's ledger.
	AnnualReport struct {
		Lease          core.Lease
		Unit           core.Unit
		Year           int
		Title          string
		AvailableYears []int

		RentSchedule []RentMonth
		TotalRent    decimal.Decimal

		Payments      []LedgerEntry
		TotalPayments decimal.Decimal

		Bimonthly             []BimonthlyCosts
		TotalWasteCost        decimal.Decimal
		TotalWaterCost        decimal.Decimal
		TotalWaterConsumption decimal.Decimal

		TotalCosts   decimal.Decimal
		FinalBalance decimal.Decimal
	}
)

// AnnualReport settles a lease for one year. When the year follows the
// lease's first year, the ledger opens with the previous year's final
// balance, computed by recursing into year-1. The cache is scoped to one
// top-level call so shared prefix years are computed once; pass the same
// map when requesting several years in a session. Years before the lease
// start are the recursion base case and settle to zero.
func (r *Reports) AnnualReport(ctx context.Context, lease core.Lease, year int, cache map[int]*AnnualReport) (*AnnualReport, error) {
	if cache == nil {
		cache = make(map[int]*AnnualReport)
	}
	if cached, ok := cache[year]; ok {
		return cached, nil
	}

	if year < lease.StartDate.Year() {
		return &AnnualReport{
			Lease:         lease,
			Year:          year,
			TotalRent:     decimal.Zero,
			TotalPayments: decimal.Zero,
			TotalCosts:    decimal.Zero,
			FinalBalance:  decimal.Zero,
		}, nil
	}

	unit, err := r.store.UnitByID(ctx, lease.UnitID)
	if err != nil {
		return nil, fmt.Errorf("look up unit %d: %w", lease.UnitID, err)
	}

	now := r.now()
	report := &AnnualReport{
		Lease:          lease,
		Unit:           *unit,
		Year:           year,
		Title:          fmt.Sprintf("Raport roczny dla lokalu %s (%d)", unit.Code, year),
		AvailableYears: availableYears(now.Year(), lease.StartDate.Year()),
	}

	openingBalance := decimal.Zero
	if year > lease.StartDate.Year() {
		previous, err := r.AnnualReport(ctx, lease, year-1, cache)
		if err != nil {
			return nil, fmt.Errorf("settle year %d: %w", year-1, err)
		}
		openingBalance = previous.FinalBalance
	}

	if err := r.fillRentSchedule(ctx, report, now); err != nil {
		return nil, err
	}
	if err := r.fillPayments(ctx, report, openingBalance); err != nil {
		return nil, err
	}
	if err := r.fillBimonthlyCosts(ctx, report, now); err != nil {
		return nil, err
	}

	report.TotalCosts = report.TotalRent.Add(report.TotalWasteCost).Add(report.TotalWaterCost)
	report.FinalBalance = report.TotalPayments.Sub(report.TotalCosts)

	cache[year] = report

	slog.DebugContext(ctx, "Settled annual ledger",
		"unit", unit.Code,
		"year", year,
		"final_balance", report.FinalBalance.String())

	return report, nil
}

// fillRentSchedule resolves the monthly rent from the lease's rent
// history as of the 15th of each month. Months outside the lease term
// charge zero; the current year is truncated at the present month.
func (r *Reports) fillRentSchedule(ctx context.Context, report *AnnualReport, now time.Time) error {
	history, err := r.store.RentHistory(ctx, report.Lease.ID)
	if err != nil {
		return fmt.Errorf("load rent history: %w", err)
	}

	limitMonth := time.December
	if report.Year == now.Year() {
		limitMonth = now.Month()
	}

	report.TotalRent = decimal.Zero
	for m := time.January; m <= limitMonth; m++ {
		monthStart := core.NewDate(report.Year, m, 1)
		monthEnd := monthStart.AddDate(0, 1, -1)

		rent := decimal.Zero
		startedByMonthEnd := !report.Lease.StartDate.After(monthEnd)
		notEndedBeforeMonth := report.Lease.EndDate == nil || !report.Lease.EndDate.Before(monthStart)
		if startedByMonthEnd && notEndedBeforeMonth {
			rent = core.RentAsOf(history, report.Lease.RentAmount, core.NewDate(report.Year, m, 15))
		}

		report.RentSchedule = append(report.RentSchedule, RentMonth{
			Month:     m,
			MonthName: monthNames[m-1],
			Rent:      rent,
		})
		report.TotalRent = report.TotalRent.Add(rent)
	}
	return nil
}

// fillPayments lists the year's incoming payments with running totals,
// seeded by the carried-over balance when it is nonzero.
func (r *Reports) fillPayments(ctx context.Context, report *AnnualReport, openingBalance decimal.Decimal) error {
	yearStart := core.NewDate(report.Year, time.January, 1)
	yearEnd := core.NewDate(report.Year, time.December, 31)

	payments, err := r.store.PaymentsForUnit(ctx, report.Lease.UnitID, yearStart, yearEnd)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}

	running := openingBalance
	if !openingBalance.IsZero() {
		report.Payments = append(report.Payments, LedgerEntry{
			Date:         yearStart,
			Amount:       openingBalance,
			RunningTotal: running,
			Description:  fmt.Sprintf("Bilans z roku %d", report.Year-1),
		})
	}

	for _, p := range payments {
		running = running.Add(p.Amount)
		report.Payments = append(report.Payments, LedgerEntry{
			Date:         p.PostingDate,
			Amount:       p.Amount,
			RunningTotal: running,
			Description:  paymentDescription(p),
		})
	}

	report.TotalPayments = running
	return nil
}

// fillBimonthlyCosts builds the six water/waste rows. Future periods of
// the current year are omitted; a period with no billing data costs zero.
func (r *Reports) fillBimonthlyCosts(ctx context.Context, report *AnnualReport, now time.Time) error {
	unitMeters, err := r.store.UnitWaterReadings(ctx, report.Lease.UnitID)
	if err != nil {
		return fmt.Errorf("load unit readings: %w", err)
	}
	buildingMeters, err := r.store.BuildingWaterReadings(ctx)
	if err != nil {
		return fmt.Errorf("load building readings: %w", err)
	}
	feeRules, err := r.store.FeeRules(ctx)
	if err != nil {
		return fmt.Errorf("load fee rules: %w", err)
	}

	for _, start := range core.PeriodsOfYear(report.Year) {
		if report.Year == now.Year() && start.After(now) {
			break
		}
		report.Bimonthly = append(report.Bimonthly, BimonthlyCosts{
			Label:            core.PeriodLabel(start),
			Start:            start,
			End:              core.PeriodEnd(start),
			WasteCost:        decimal.Zero,
			WaterConsumption: decimal.Zero,
			WaterCost:        decimal.Zero,
		})
	}

	// Fold the unit's reading pairs into the rows. A pair counts when
	// its ending reading falls inside the year or early enough in the
	// next one to still close the Nov-Dec bucket.
	readingLimit := core.NewDate(report.Year, time.December, 31).AddDate(0, 2, 0)
	yearStart := core.NewDate(report.Year, time.January, 1)
	for _, mr := range unitMeters {
		for i := 1; i < len(mr.Readings); i++ {
			start, end := mr.Readings[i-1], mr.Readings[i]
			if end.Date.Before(yearStart) || !end.Date.Before(readingLimit) {
				continue
			}
			key := core.PeriodStartFor(end.Date)
			if key.Year() != report.Year {
				continue
			}
			for idx := range report.Bimonthly {
				if report.Bimonthly[idx].Start.Equal(key) {
					delta := end.Value.Sub(start.Value)
					report.Bimonthly[idx].WaterConsumption = report.Bimonthly[idx].WaterConsumption.Add(delta)
					report.Bimonthly[idx].Meters = append(report.Bimonthly[idx].Meters, MeterConsumption{
						Meter:       mr.Meter,
						Label:       meterLabel(mr.Meter),
						Consumption: delta,
						Start:       start,
						End:         end,
					})
					break
				}
			}
		}
	}

	buildingTotals := BuildingConsumption(buildingMeters)

	report.TotalWasteCost = decimal.Zero
	report.TotalWaterCost = decimal.Zero
	report.TotalWaterConsumption = decimal.Zero
	for idx := range report.Bimonthly {
		row := &report.Bimonthly[idx]

		row.WasteCost = WasteCost(feeRules, row.Start, report.Lease.Occupants)

		override, err := r.store.WaterOverride(ctx, row.Start)
		if err != nil {
			return fmt.Errorf("load water override for %s: %w", row.Start.Format("2006-01-02"), err)
		}
		row.WaterCost = AllocateWaterCost(row.WaterConsumption, buildingTotals[row.Start], override).Cost

		report.TotalWasteCost = report.TotalWasteCost.Add(row.WasteCost)
		report.TotalWaterCost = report.TotalWaterCost.Add(row.WaterCost)
		report.TotalWaterConsumption = report.TotalWaterConsumption.Add(row.WaterConsumption)
	}
	return nil
}

func availableYears(currentYear, startYear int) []int {
	var years []int
	for y := currentYear; y >= startYear; y-- {
		years = append(years, y)
	}
	return years
}

func paymentDescription(t core.Transaction) string {
	if t.Category != "" {
		return string(t.Category)
	}
	return t.Description
}
