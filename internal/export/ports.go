// Package export defines the outbound port for publishing settlement
// reports, with a Google Sheets adapter underneath. The landlord shares
// the yearly settlements with tenants as spreadsheets.
package export

import (
	"context"

	"kamienica/internal/services"
)

type (
	// AnnualReportWriter publishes a yearly settlement.
	AnnualReportWriter interface {
		WriteAnnualReport(ctx context.Context, report *services.AnnualReport) error
	}

	// WaterReportWriter publishes a bimonthly water report.
	WaterReportWriter interface {
		WriteWaterReport(ctx context.Context, report *services.WaterReport) error
	}
)
