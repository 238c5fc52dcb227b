package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "kamienica/internal/export"
	"kamienica/internal/services"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Ensure interface conformance
var (
	_ ports.AnnualReportWriter = (*Client)(nil)
	_ ports.WaterReportWriter  = (*Client)(nil)
)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// WriteAnnualReport replaces the unit's settlement sheet for the year
// with the report's rent schedule, ledger and bimonthly cost rows.
func (c *Client) WriteAnnualReport(ctx context.Context, report *services.AnnualReport) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	sheetName := fmt.Sprintf("Lokal %s %d", report.Unit.Code, report.Year)
	if err := c.ensureSheet(ctx, sheetName); err != nil {
		return err
	}

	rows := [][]any{
		{report.Title},
		{},
		{"Czynsz"},
		{"Miesiąc", "Kwota"},
	}
	for _, m := range report.RentSchedule {
		rows = append(rows, []any{m.MonthName, m.Rent.StringFixed(2)})
	}
	rows = append(rows,
		[]any{"Suma czynszu", report.TotalRent.StringFixed(2)},
		[]any{},
		[]any{"Wpłaty"},
		[]any{"Data", "Kwota", "Saldo", "Opis"},
	)
	for _, p := range report.Payments {
		rows = append(rows, []any{
			p.Date.Format("2006-01-02"),
			p.Amount.StringFixed(2),
			p.RunningTotal.StringFixed(2),
			p.Description,
		})
	}
	rows = append(rows,
		[]any{"Suma wpłat", report.TotalPayments.StringFixed(2)},
		[]any{},
		[]any{"Koszty dwumiesięczne"},
		[]any{"Okres", "Śmieci", "Zużycie wody", "Koszt wody"},
	)
	for _, b := range report.Bimonthly {
		rows = append(rows, []any{
			b.Label,
			b.WasteCost.StringFixed(2),
			b.WaterConsumption.String(),
			b.WaterCost.StringFixed(2),
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"Koszty razem", report.TotalCosts.StringFixed(2)},
		[]any{"Bilans końcowy", report.FinalBalance.StringFixed(2)},
	)

	if err := c.replaceSheet(ctx, sheetName, rows); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Annual report exported",
		"unit", report.Unit.Code,
		"year", report.Year,
		"sheet", sheetName)
	return nil
}

// WriteWaterReport publishes the bimonthly water view of one unit.
func (c *Client) WriteWaterReport(ctx context.Context, report *services.WaterReport) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	sheetName := fmt.Sprintf("Woda %s %d", report.Unit.Code, report.Year)
	if err := c.ensureSheet(ctx, sheetName); err != nil {
		return err
	}

	rows := [][]any{
		{fmt.Sprintf("Raport wody dla lokalu %s (%d)", report.Unit.Code, report.Year)},
		{},
		{"Okres", "Zużycie", "Cena jedn.", "Koszt wody", "Śmieci", "Źródło"},
	}
	for _, p := range report.Periods {
		rows = append(rows, []any{
			p.Label,
			p.TotalConsumption.String(),
			p.Water.UnitPrice.StringFixed(4),
			p.Water.Cost.StringFixed(2),
			p.WasteCost.StringFixed(2),
			p.Water.Source,
		})
	}

	if err := c.replaceSheet(ctx, sheetName, rows); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Water report exported",
		"unit", report.Unit.Code,
		"year", report.Year,
		"sheet", sheetName)
	return nil
}

// ensureSheet adds the tab when the spreadsheet does not have it yet.
func (c *Client) ensureSheet(ctx context.Context, sheetName string) error {
	spreadsheet, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{
			{
				AddSheet: &gsheet.AddSheetRequest{
					Properties: &gsheet.SheetProperties{Title: sheetName},
				},
			},
		},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", sheetName, err)
	}
	return nil
}

func (c *Client) replaceSheet(ctx context.Context, sheetName string, rows [][]any) error {
	clearRange := fmt.Sprintf("%s!A:Z", sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %q: %w", sheetName, err)
	}

	vr := &gsheet.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, fmt.Sprintf("%s!A1", sheetName), vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write sheet %q: %w", sheetName, err)
	}
	return nil
}
