package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"kamienica/internal/config"
	"kamienica/internal/export"
	exportgoogle "kamienica/internal/export/google"
	"kamienica/internal/log"
	"kamienica/internal/review"
	"kamienica/internal/services"
	"kamienica/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	log.Setup(log.ComponentApp, log.LevelFromEnv())

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "import":
		err = runImport(ctx, cfg, repo, os.Args[2:])
	case "annual":
		err = runAnnual(ctx, repo, os.Args[2:])
	case "water":
		err = runWater(ctx, repo, os.Args[2:])
	case "review":
		err = runReview(ctx, repo)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: kamienica <command> [flags]

Commands:
  import <file>                 import a bank statement CSV
  annual -unit <code> -year <y> [-export]   annual settlement for a unit
  water  -unit <code> -year <y> [-export]   bimonthly water report for a unit
  review                        list transactions awaiting manual review`)
}

func runImport(ctx context.Context, cfg *config.Config, repo *storage.SQLiteRepository, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: kamienica import <file>")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open statement: %w", err)
	}
	defer f.Close()

	// The review queue is optional: without a broker the import still
	// runs, unresolved rows just stay queryable via "review".
	var publisher services.ReviewPublisher
	if cfg.AMQPURL != "" {
		client, err := review.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.WarnContext(ctx, "Review queue unavailable, continuing without it", "error", err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	importer := services.NewImporter(repo, publisher)
	result, err := importer.ImportStatement(ctx, f)
	if err != nil {
		return err
	}

	fmt.Printf("Zaimportowano %d transakcji.\n", result.Processed)
	if result.EncodingWarning {
		fmt.Println("Uwaga: plik zawierał nieczytelne znaki, sprawdź kwoty i opisy.")
	}
	for _, s := range result.Skipped {
		fmt.Printf("Pominięto wiersz %d: %s\n", s.Line, s.Reason)
	}
	if result.HasManualWork {
		fmt.Println("Część transakcji wymaga ręcznej weryfikacji (kamienica review).")
	}
	return nil
}

func runAnnual(ctx context.Context, repo *storage.SQLiteRepository, args []string) error {
	fs := flag.NewFlagSet("annual", flag.ExitOnError)
	unitCode := fs.String("unit", "", "unit code")
	year := fs.Int("year", 0, "settlement year")
	doExport := fs.Bool("export", false, "export the report to Google Sheets")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *unitCode == "" || *year == 0 {
		return fmt.Errorf("usage: kamienica annual -unit <code> -year <y> [-export]")
	}

	unit, err := repo.UnitByCode(ctx, *unitCode)
	if err != nil {
		return err
	}
	lease, err := repo.ActiveLeaseForUnit(ctx, unit.ID)
	if err != nil {
		return err
	}
	if lease == nil {
		return fmt.Errorf("lokal %s nie ma aktywnej umowy", *unitCode)
	}

	reports := services.NewReports(repo)
	report, err := reports.AnnualReport(ctx, *lease, *year, nil)
	if err != nil {
		return err
	}

	printAnnualReport(report)

	if *doExport {
		return exportAnnual(ctx, report)
	}
	return nil
}

func printAnnualReport(report *services.AnnualReport) {
	fmt.Println(report.Title)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "Miesiąc\tCzynsz")
	for _, m := range report.RentSchedule {
		fmt.Fprintf(w, "%s\t%s\n", m.MonthName, m.Rent.StringFixed(2))
	}
	fmt.Fprintf(w, "Suma\t%s\n\n", report.TotalRent.StringFixed(2))

	fmt.Fprintln(w, "Data\tWpłata\tSaldo\tOpis")
	for _, p := range report.Payments {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			p.Date.Format("2006-01-02"), p.Amount.StringFixed(2),
			p.RunningTotal.StringFixed(2), p.Description)
	}
	fmt.Fprintf(w, "Suma wpłat\t%s\n\n", report.TotalPayments.StringFixed(2))

	fmt.Fprintln(w, "Okres\tŚmieci\tZużycie wody\tKoszt wody")
	for _, b := range report.Bimonthly {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			b.Label, b.WasteCost.StringFixed(2),
			b.WaterConsumption.String(), b.WaterCost.StringFixed(2))
	}
	w.Flush()

	fmt.Println()
	fmt.Printf("Koszty razem: %s\n", report.TotalCosts.StringFixed(2))
	fmt.Printf("Bilans końcowy: %s\n", report.FinalBalance.StringFixed(2))
}

func runWater(ctx context.Context, repo *storage.SQLiteRepository, args []string) error {
	fs := flag.NewFlagSet("water", flag.ExitOnError)
	unitCode := fs.String("unit", "", "unit code")
	year := fs.Int("year", 0, "report year")
	doExport := fs.Bool("export", false, "export the report to Google Sheets")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *unitCode == "" || *year == 0 {
		return fmt.Errorf("usage: kamienica water -unit <code> -year <y> [-export]")
	}

	reports := services.NewReports(repo)
	report, err := reports.WaterReport(ctx, *unitCode, *year)
	if err != nil {
		return err
	}

	fmt.Printf("Raport wody dla lokalu %s (%d)\n\n", report.Unit.Code, report.Year)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Okres\tZużycie\tCena jedn.\tKoszt wody\tŚmieci\tŹródło")
	for _, p := range report.Periods {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Label, p.TotalConsumption.String(), p.Water.UnitPrice.StringFixed(4),
			p.Water.Cost.StringFixed(2), p.WasteCost.StringFixed(2), p.Water.Source)
	}
	w.Flush()

	if *doExport {
		client, err := exportgoogle.NewFromEnv(ctx)
		if err != nil {
			return fmt.Errorf("initialize sheets export: %w", err)
		}
		var writer export.WaterReportWriter = client
		return writer.WriteWaterReport(ctx, report)
	}
	return nil
}

func exportAnnual(ctx context.Context, report *services.AnnualReport) error {
	client, err := exportgoogle.NewFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("initialize sheets export: %w", err)
	}
	var writer export.AnnualReportWriter = client
	return writer.WriteAnnualReport(ctx, report)
}

func runReview(ctx context.Context, repo *storage.SQLiteRepository) error {
	pending, err := repo.TransactionsNeedingReview(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("Brak transakcji do weryfikacji.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Data\tKwota\tStatus\tNr transakcji\tOpis")
	for _, tx := range pending {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			tx.PostingDate.Format("2006-01-02"), tx.Amount.StringFixed(2),
			tx.Status, tx.ExternalID, tx.Description)
	}
	return w.Flush()
}
