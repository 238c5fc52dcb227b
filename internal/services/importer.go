package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"kamienica/internal/core"
)

const (
	statementHeaderMarker = "Data transakcji"
	statementFooterMarker = "Dokument ma charakter informacyjny"
	statementDateLayout   = "2006-01-02"
)

// Statement column positions in the bank's CSV export.
const (
	colDate       = 0
	colContractor = 2
	colDesc       = 3
	colExternalID = 7
	colAmount     = 8
)

// ErrHeaderNotFound aborts an import whose file lacks the expected
// statement header row. Nothing is committed in that case.
var ErrHeaderNotFound = errors.New(`nie znaleziono nagłówka "Data transakcji" w pliku CSV`)

type (
	// SkippedRow records a malformed statement row that was left out of
	// the import. The rest of the file still goes through.
	SkippedRow struct {
		Line   int
		Reason string
	}

	// ImportResult summarizes one statement import.
	ImportResult struct {
		Processed     int
		Skipped       []SkippedRow
		HasManualWork bool
		// EncodingWarning flags irreversible byte loss during decoding:
		// some characters were replaced and may hide corrupt numbers.
		EncodingWarning bool
	}
)

// Importer runs the bank statement import pipeline: decode, locate the
// header, classify and match each row, and upsert everything as one atomic
// unit of work. Conflicting and unmatched rows go to the manual-review
// queue after the import commits.
type Importer struct {
	store  Store
	review ReviewPublisher // optional
}

func NewImporter(store Store, review ReviewPublisher) *Importer {
	return &Importer{store: store, review: review}
}

// ImportStatement processes a whole statement file. Malformed rows are
// skipped and reported; any other failure rolls the entire import back,
// including rows already upserted within it.
func (imp *Importer) ImportStatement(ctx context.Context, r io.Reader) (*ImportResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read statement: %w", err)
	}

	text, encodingWarning := decodeStatement(raw)
	result := &ImportResult{EncodingWarning: encodingWarning}

	rows, err := statementRows(text)
	if err != nil {
		return result, err
	}

	ref, err := imp.store.ReferenceData(ctx)
	if err != nil {
		return result, fmt.Errorf("load reference data: %w", err)
	}

	var (
		transactions []core.Transaction
		reviewItems  []ReviewItem
	)

	line := 1
	for _, row := range rows {
		line++

		if len(row) > 0 && strings.HasPrefix(row[0], statementFooterMarker) {
			break
		}
		if len(row) <= colAmount {
			result.Skipped = append(result.Skipped, SkippedRow{Line: line, Reason: "Nieprawidłowa liczba kolumn"})
			continue
		}

		tx, reason := parseStatementRow(row)
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedRow{Line: line, Reason: reason})
			continue
		}

		classification := Classify(tx.Description, tx.Contractor, ref.CategorizationRules)
		match := MatchUnit(tx.Description, tx.Contractor, tx.Amount, tx.PostingDate, ref)

		tx.Category = classification.Category
		if match.Unit != nil {
			unitID := match.Unit.ID
			tx.UnitID = &unitID
		}
		tx.Status = combineStatuses(classification.Status, match.Status)

		if tx.Status != core.StatusProcessed {
			result.HasManualWork = true
			reviewItems = append(reviewItems, ReviewItem{
				ExternalID:     tx.ExternalID,
				PostingDate:    tx.PostingDate,
				Amount:         tx.Amount.StringFixed(2),
				Description:    tx.Description,
				CategoryStatus: classification.Status,
				UnitStatus:     match.Status,
				Trace:          fmt.Sprintf("Kategoryzacja Tytułu: %s | Przypisanie Lokalu: %s", classification.Trace, match.Trace),
			})
		}

		transactions = append(transactions, tx)
	}

	err = imp.store.InImportTx(ctx, func(txStore TxStore) error {
		for _, tx := range transactions {
			if err := txStore.UpsertTransaction(ctx, tx); err != nil {
				return fmt.Errorf("upsert transaction %s: %w", tx.ExternalID, err)
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("import transactions: %w", err)
	}
	result.Processed = len(transactions)

	imp.publishReviewItems(ctx, reviewItems)

	slog.InfoContext(ctx, "Statement import finished",
		"processed", result.Processed,
		"skipped", len(result.Skipped),
		"manual_review", len(reviewItems),
		"encoding_warning", result.EncodingWarning)

	return result, nil
}

// decodeStatement decodes the bank's Windows-1250 export. When the bytes
// do not survive that decoding cleanly the raw text is kept as UTF-8
// with replacement runes, and their presence is reported so the operator
// knows numbers or names may have been damaged.
func decodeStatement(raw []byte) (string, bool) {
	decoded, err := charmap.Windows1250.NewDecoder().Bytes(raw)
	if err == nil && !bytes.ContainsRune(decoded, '�') {
		return string(decoded), false
	}
	text := strings.ToValidUTF8(string(raw), "�")
	return text, strings.ContainsRune(text, '�')
}

// statementRows returns the data rows following the header marker.
func statementRows(text string) ([][]string, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headerFound := false
	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read statement row: %w", err)
		}
		if !headerFound {
			if len(row) > 0 && row[0] == statementHeaderMarker {
				headerFound = true
			}
			continue
		}
		rows = append(rows, row)
	}
	if !headerFound {
		return nil, ErrHeaderNotFound
	}
	return rows, nil
}

// parseStatementRow converts one data row. A non-empty reason means the
// row must be skipped.
func parseStatementRow(row []string) (core.Transaction, string) {
	postingDate, err := time.ParseInLocation(statementDateLayout, strings.TrimSpace(row[colDate]), time.UTC)
	if err != nil {
		return core.Transaction{}, err.Error()
	}

	amountStr := strings.TrimSpace(strings.ReplaceAll(row[colAmount], ",", "."))
	if amountStr == "" {
		return core.Transaction{}, "Pusta kwota"
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return core.Transaction{}, err.Error()
	}

	externalID := strings.TrimSpace(row[colExternalID])
	if externalID == "" {
		return core.Transaction{}, "Pusty numer transakcji"
	}

	return core.Transaction{
		PostingDate: postingDate,
		Amount:      amount,
		Description: strings.TrimSpace(row[colDesc]),
		Contractor:  strings.TrimSpace(row[colContractor]),
		ExternalID:  externalID,
	}, ""
}

// combineStatuses derives the row's final status: any conflict wins,
// then any unprocessed side, otherwise processed.
func combineStatuses(category, unit core.TransactionStatus) core.TransactionStatus {
	switch {
	case category == core.StatusConflict || unit == core.StatusConflict:
		return core.StatusConflict
	case category == core.StatusUnprocessed || unit == core.StatusUnprocessed:
		return core.StatusUnprocessed
	}
	return core.StatusProcessed
}

// publishReviewItems is best-effort: the import already committed, a
// queue outage must not undo it.
func (imp *Importer) publishReviewItems(ctx context.Context, items []ReviewItem) {
	if imp.review == nil || len(items) == 0 {
		return
	}
	for _, item := range items {
		if err := imp.review.PublishReviewItem(ctx, item); err != nil {
			slog.WarnContext(ctx, "Failed to publish review item",
				"external_id", item.ExternalID,
				"error", err)
		}
	}
}
