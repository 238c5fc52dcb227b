package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"kamienica/internal/core"
	"kamienica/internal/services"
)

// splitTolerance is how far child amounts may drift from the parent
// before a split is rejected.
var splitTolerance = decimal.RequireFromString("0.01")

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSplitAmountMismatch = errors.New("split amounts do not add up to the parent amount")
)

func (r *SQLiteRepository) PaymentsForUnit(ctx context.Context, unitID int64, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, unit_id, amount, posting_date, description,
		       contractor, external_id, category, status
		FROM transactions
		WHERE unit_id = ?
		  AND posting_date >= ? AND posting_date <= ?
		  AND CAST(amount AS REAL) > 0
		ORDER BY posting_date ASC, id ASC`,
		unitID, fmtDate(from), fmtDate(to))
	if err != nil {
		return nil, fmt.Errorf("query payments for unit %d: %w", unitID, err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// TransactionByExternalID looks a transaction up by its bank identifier.
func (r *SQLiteRepository) TransactionByExternalID(ctx context.Context, externalID string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, unit_id, amount, posting_date, description,
		       contractor, external_id, category, status
		FROM transactions WHERE external_id = ?`, externalID)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transaction %q: %w", externalID, err)
	}
	return tx, nil
}

// TransactionsNeedingReview lists rows an operator still has to resolve.
func (r *SQLiteRepository) TransactionsNeedingReview(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, unit_id, amount, posting_date, description,
		       contractor, external_id, category, status
		FROM transactions
		WHERE status IN (?, ?)
		ORDER BY posting_date DESC, id DESC`,
		string(core.StatusUnprocessed), string(core.StatusConflict))
	if err != nil {
		return nil, fmt.Errorf("query transactions needing review: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// InImportTx runs fn within one database transaction so a statement
// import commits all rows or none.
func (r *SQLiteRepository) InImportTx(ctx context.Context, fn func(services.TxStore) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&importTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import tx: %w", err)
	}
	return nil
}

type importTx struct {
	tx *sql.Tx
}

// UpsertTransaction keys on the bank's external id, so re-importing an
// overlapping statement updates rows instead of duplicating them.
func (t *importTx) UpsertTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (tenant_id, unit_id, amount, posting_date,
		                          description, contractor, external_id, category, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			tenant_id = excluded.tenant_id,
			unit_id = excluded.unit_id,
			amount = excluded.amount,
			posting_date = excluded.posting_date,
			description = excluded.description,
			contractor = excluded.contractor,
			category = excluded.category,
			status = excluded.status`,
		tx.TenantID, tx.UnitID, tx.Amount.String(), fmtDate(tx.PostingDate),
		tx.Description, tx.Contractor, tx.ExternalID, string(tx.Category), string(tx.Status))
	if err != nil {
		return fmt.Errorf("upsert transaction %q: %w", tx.ExternalID, err)
	}
	return nil
}

// SplitPart is one child of a transaction split.
type SplitPart struct {
	Amount      decimal.Decimal
	Description string
	Category    core.Category
	UnitID      *int64
}

// SplitTransaction breaks a transaction into parts, for payments that
// cover several units or categories at once. Part amounts must add up to
// the parent amount within a grosz. The parent and all children end up
// manually edited; everything happens in one database transaction.
func (r *SQLiteRepository) SplitTransaction(ctx context.Context, parentExternalID string, parts []SplitPart) error {
	if len(parts) < 2 {
		return errors.New("a split needs at least two parts")
	}

	parent, err := r.TransactionByExternalID(ctx, parentExternalID)
	if err != nil {
		return err
	}

	sum := decimal.Zero
	for _, p := range parts {
		sum = sum.Add(p.Amount)
	}
	if sum.Sub(parent.Amount).Abs().GreaterThan(splitTolerance) {
		return fmt.Errorf("%w: parts %s, parent %s", ErrSplitAmountMismatch, sum, parent.Amount)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin split tx: %w", err)
	}
	defer tx.Rollback()

	for i, p := range parts {
		childID, err := r.freeSplitID(ctx, core.SplitID(parent.ExternalID), i)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (tenant_id, unit_id, amount, posting_date,
			                          description, contractor, external_id, category, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			parent.TenantID, p.UnitID, p.Amount.String(), fmtDate(parent.PostingDate),
			p.Description, parent.Contractor, childID, string(p.Category), string(core.StatusManual))
		if err != nil {
			return fmt.Errorf("insert split part %q: %w", childID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ?`,
		string(core.StatusManual), parent.ID)
	if err != nil {
		return fmt.Errorf("mark parent %q: %w", parent.ExternalID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit split tx: %w", err)
	}

	slog.InfoContext(ctx, "Transaction split",
		"external_id", parent.ExternalID,
		"parts", len(parts))
	return nil
}

// freeSplitID finds an unused external id for a split child. The base id
// carries the split suffix; collisions from repeated splits of the same
// parent get a timestamp appended.
func (r *SQLiteRepository) freeSplitID(ctx context.Context, base string, part int) (string, error) {
	candidate := fmt.Sprintf("%s_%d", base, part+1)
	for {
		var exists int
		err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM transactions WHERE external_id = ?`, candidate).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("check split id %q: %w", candidate, err)
		}
		if exists == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d_%d", base, part+1, time.Now().Unix())
	}
}

// RecategorizeTransaction applies an operator's manual category and unit
// decision. With a keyword it also stores a categorization rule so the
// next import handles similar rows on its own.
func (r *SQLiteRepository) RecategorizeTransaction(ctx context.Context, externalID string, category core.Category, unitID *int64, ruleKeyword string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET category = ?, unit_id = ?, status = ?
		WHERE external_id = ?`,
		string(category), unitID, string(core.StatusManual), externalID)
	if err != nil {
		return fmt.Errorf("recategorize transaction %q: %w", externalID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recategorize transaction %q: %w", externalID, err)
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}

	if ruleKeyword != "" {
		created, err := r.SaveCategorizationRule(ctx, ruleKeyword, category)
		if err != nil {
			return err
		}
		if created {
			slog.InfoContext(ctx, "Categorization rule saved",
				"keywords", ruleKeyword,
				"category", string(category))
		}
	}
	return nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

func scanTransaction(s scanner) (*core.Transaction, error) {
	var (
		tx          core.Transaction
		tenantID    sql.NullInt64
		unitID      sql.NullInt64
		amount      string
		postingDate string
		category    string
		status      string
	)
	if err := s.Scan(&tx.ID, &tenantID, &unitID, &amount, &postingDate,
		&tx.Description, &tx.Contractor, &tx.ExternalID, &category, &status); err != nil {
		return nil, err
	}

	var err error
	if tx.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if tx.PostingDate, err = parseDate(postingDate); err != nil {
		return nil, err
	}
	if tenantID.Valid {
		tx.TenantID = &tenantID.Int64
	}
	if unitID.Valid {
		tx.UnitID = &unitID.Int64
	}
	tx.Category = core.Category(category)
	tx.Status = core.TransactionStatus(status)
	return &tx, nil
}
