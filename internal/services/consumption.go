package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kamienica/internal/core"
)

// MeterConsumption is the consumption of one meter within one bimonthly
// period, bounded by the first and last reading that fell into it.
type MeterConsumption struct {
	Meter       core.Meter
	Label       string // e.g. "Woda zimna (SN-123)"
	Consumption decimal.Decimal
	Start       core.Reading
	End         core.Reading
}

// PeriodConsumption aggregates all meters of a scope for one period.
type PeriodConsumption struct {
	Total  decimal.Decimal
	Meters []MeterConsumption
}

// AggregateConsumption walks consecutive reading pairs of each meter and
// buckets the deltas into bimonthly periods keyed by the ending reading's
// date (see core.PeriodStartFor). Deltas may be zero or negative when
// readings were corrected; they are not validated here.
func AggregateConsumption(meters []MeterWithReadings) map[time.Time]*PeriodConsumption {
	byPeriod := make(map[time.Time]*PeriodConsumption)

	for _, mr := range meters {
		for i := 1; i < len(mr.Readings); i++ {
			start, end := mr.Readings[i-1], mr.Readings[i]
			delta := end.Value.Sub(start.Value)
			key := core.PeriodStartFor(end.Date)

			pc := byPeriod[key]
			if pc == nil {
				pc = &PeriodConsumption{Total: decimal.Zero}
				byPeriod[key] = pc
			}
			pc.Total = pc.Total.Add(delta)
			pc.addMeterDelta(mr.Meter, delta, start, end)
		}
	}

	return byPeriod
}

// addMeterDelta folds a reading pair into the per-meter breakdown. Two
// pairs of the same meter landing in one period keep the earliest start
// and the latest end reading.
func (pc *PeriodConsumption) addMeterDelta(m core.Meter, delta decimal.Decimal, start, end core.Reading) {
	for i := range pc.Meters {
		if pc.Meters[i].Meter.ID == m.ID {
			pc.Meters[i].Consumption = pc.Meters[i].Consumption.Add(delta)
			if end.Date.After(pc.Meters[i].End.Date) {
				pc.Meters[i].End = end
			}
			if start.Date.Before(pc.Meters[i].Start.Date) {
				pc.Meters[i].Start = start
			}
			return
		}
	}
	pc.Meters = append(pc.Meters, MeterConsumption{
		Meter:       m,
		Label:       meterLabel(m),
		Consumption: delta,
		Start:       start,
		End:         end,
	})
}

// BuildingConsumption reduces the aggregation to a per-period total,
// which is all the unit-price computation needs.
func BuildingConsumption(meters []MeterWithReadings) map[time.Time]decimal.Decimal {
	totals := make(map[time.Time]decimal.Decimal)
	for key, pc := range AggregateConsumption(meters) {
		totals[key] = pc.Total
	}
	return totals
}

func meterLabel(m core.Meter) string {
	return fmt.Sprintf("%s (%s)", m.Medium.Label(), m.Serial)
}
