// Package storage is the SQLite persistence layer behind the billing
// engine. Money and meter values are stored as decimal strings, dates as
// ISO day strings.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kamienica/internal/core"
	"kamienica/internal/services"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) UnitByCode(ctx context.Context, code string) (*core.Unit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, code, area_sqm, active FROM units WHERE code = ?`, code)
	unit, err := scanUnit(row)
	if err != nil {
		return nil, fmt.Errorf("unit by code %q: %w", code, err)
	}
	return unit, nil
}

func (r *SQLiteRepository) UnitByID(ctx context.Context, id int64) (*core.Unit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, code, area_sqm, active FROM units WHERE id = ?`, id)
	unit, err := scanUnit(row)
	if err != nil {
		return nil, fmt.Errorf("unit by id %d: %w", id, err)
	}
	return unit, nil
}

// ActiveLeaseForUnit returns nil without error when the unit is vacant.
func (r *SQLiteRepository) ActiveLeaseForUnit(ctx context.Context, unitID int64) (*core.Lease, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, unit_id, signing_date, start_date, end_date,
		       rent_amount, deposit_amount, occupants, kind, prior_lease_id, active
		FROM leases
		WHERE unit_id = ? AND active = 1
		ORDER BY start_date DESC
		LIMIT 1`, unitID)

	lease, err := scanLease(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active lease for unit %d: %w", unitID, err)
	}
	return lease, nil
}

func (r *SQLiteRepository) RentHistory(ctx context.Context, leaseID int64) ([]core.RentChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT lease_id, changed_at, rent
		FROM lease_rent_history
		WHERE lease_id = ?
		ORDER BY changed_at ASC, id ASC`, leaseID)
	if err != nil {
		return nil, fmt.Errorf("rent history for lease %d: %w", leaseID, err)
	}
	defer rows.Close()

	var changes []core.RentChange
	for rows.Next() {
		var (
			c         core.RentChange
			changedAt string
			rent      string
		)
		if err := rows.Scan(&c.LeaseID, &changedAt, &rent); err != nil {
			return nil, fmt.Errorf("scan rent change: %w", err)
		}
		if c.ChangedAt, err = parseDate(changedAt); err != nil {
			return nil, err
		}
		if c.Rent, err = parseDecimal(rent); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func (r *SQLiteRepository) UnitWaterReadings(ctx context.Context, unitID int64) ([]services.MeterWithReadings, error) {
	return r.waterReadings(ctx, `
		SELECT m.id, m.serial, m.medium, m.unit_id, m.status
		FROM meters m
		WHERE m.unit_id = ? AND m.status = ? AND m.medium IN (?, ?)
		ORDER BY m.id`,
		unitID, string(core.MeterActive),
		string(core.MediumColdWater), string(core.MediumHotWater))
}

// BuildingWaterReadings covers every active unit except the shared
// building account, whose meters would double-count the total.
func (r *SQLiteRepository) BuildingWaterReadings(ctx context.Context) ([]services.MeterWithReadings, error) {
	return r.waterReadings(ctx, `
		SELECT m.id, m.serial, m.medium, m.unit_id, m.status
		FROM meters m
		JOIN units u ON u.id = m.unit_id
		WHERE u.active = 1 AND u.code != ? AND m.status = ? AND m.medium IN (?, ?)
		ORDER BY m.id`,
		core.BuildingUnitCode, string(core.MeterActive),
		string(core.MediumColdWater), string(core.MediumHotWater))
}

func (r *SQLiteRepository) waterReadings(ctx context.Context, query string, args ...any) ([]services.MeterWithReadings, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query meters: %w", err)
	}
	defer rows.Close()

	var meters []core.Meter
	for rows.Next() {
		m, err := scanMeter(rows)
		if err != nil {
			return nil, err
		}
		meters = append(meters, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]services.MeterWithReadings, 0, len(meters))
	for _, m := range meters {
		readings, err := r.readingsForMeter(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, services.MeterWithReadings{Meter: m, Readings: readings})
	}
	return result, nil
}

func (r *SQLiteRepository) readingsForMeter(ctx context.Context, meterID int64) ([]core.Reading, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, meter_id, reading_date, value
		FROM meter_readings
		WHERE meter_id = ?
		ORDER BY reading_date ASC, id ASC`, meterID)
	if err != nil {
		return nil, fmt.Errorf("readings for meter %d: %w", meterID, err)
	}
	defer rows.Close()

	var readings []core.Reading
	for rows.Next() {
		var (
			rd    core.Reading
			date  string
			value string
		)
		if err := rows.Scan(&rd.ID, &rd.MeterID, &date, &value); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		if rd.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		if rd.Value, err = parseDecimal(value); err != nil {
			return nil, err
		}
		readings = append(readings, rd)
	}
	return readings, rows.Err()
}

func (r *SQLiteRepository) FeeRules(ctx context.Context) ([]core.FeeRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, method, amount, medium, effective_from
		FROM fee_rules
		ORDER BY effective_from ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query fee rules: %w", err)
	}
	defer rows.Close()

	var rules []core.FeeRule
	for rows.Next() {
		var (
			rule          core.FeeRule
			method        string
			amount        string
			medium        string
			effectiveFrom string
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &method, &amount, &medium, &effectiveFrom); err != nil {
			return nil, fmt.Errorf("scan fee rule: %w", err)
		}
		rule.Method = core.FeeMethod(method)
		rule.Medium = core.Medium(medium)
		if rule.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		if rule.EffectiveFrom, err = parseDate(effectiveFrom); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// WaterOverride returns nil without error when the period has no manual
// invoice entry.
func (r *SQLiteRepository) WaterOverride(ctx context.Context, periodStart time.Time) (*core.WaterCostOverride, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT period_start, billed_amount, total_consumption
		FROM water_cost_overrides
		WHERE period_start = ?`, fmtDate(periodStart))

	var (
		o           core.WaterCostOverride
		start       string
		billed      sql.NullString
		consumption sql.NullString
	)
	err := row.Scan(&start, &billed, &consumption)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("water override for %s: %w", fmtDate(periodStart), err)
	}
	if o.PeriodStart, err = parseDate(start); err != nil {
		return nil, err
	}
	if o.BilledAmount, err = parseNullDecimal(billed); err != nil {
		return nil, err
	}
	if o.TotalConsumption, err = parseNullDecimal(consumption); err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveWaterOverride upserts the manual water invoice for one period.
func (r *SQLiteRepository) SaveWaterOverride(ctx context.Context, o core.WaterCostOverride) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO water_cost_overrides (period_start, billed_amount, total_consumption)
		VALUES (?, ?, ?)
		ON CONFLICT(period_start) DO UPDATE SET
			billed_amount = excluded.billed_amount,
			total_consumption = excluded.total_consumption`,
		fmtDate(o.PeriodStart), nullDecimal(o.BilledAmount), nullDecimal(o.TotalConsumption))
	if err != nil {
		return fmt.Errorf("save water override: %w", err)
	}
	return nil
}

// SaveLease inserts or updates a lease and appends a rent snapshot to the
// history, so RentAsOf can reconstruct past schedules after raises.
func (r *SQLiteRepository) SaveLease(ctx context.Context, lease *core.Lease) error {
	if err := lease.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lease tx: %w", err)
	}
	defer tx.Rollback()

	if lease.ID == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO leases (tenant_id, unit_id, signing_date, start_date, end_date,
			                    rent_amount, deposit_amount, occupants, kind, prior_lease_id, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			lease.TenantID, lease.UnitID, fmtDate(lease.SigningDate), fmtDate(lease.StartDate),
			nullDate(lease.EndDate), lease.RentAmount.String(), lease.DepositAmount.String(),
			lease.Occupants, string(lease.Kind), lease.PriorLeaseID, lease.Active)
		if err != nil {
			return fmt.Errorf("insert lease: %w", err)
		}
		if lease.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("lease id: %w", err)
		}
	} else {
		_, err := tx.ExecContext(ctx, `
			UPDATE leases SET tenant_id = ?, unit_id = ?, signing_date = ?, start_date = ?,
			       end_date = ?, rent_amount = ?, deposit_amount = ?, occupants = ?,
			       kind = ?, prior_lease_id = ?, active = ?
			WHERE id = ?`,
			lease.TenantID, lease.UnitID, fmtDate(lease.SigningDate), fmtDate(lease.StartDate),
			nullDate(lease.EndDate), lease.RentAmount.String(), lease.DepositAmount.String(),
			lease.Occupants, string(lease.Kind), lease.PriorLeaseID, lease.Active, lease.ID)
		if err != nil {
			return fmt.Errorf("update lease: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lease_rent_history (lease_id, changed_at, rent)
		VALUES (?, ?, ?)`,
		lease.ID, fmtDate(time.Now().UTC()), lease.RentAmount.String())
	if err != nil {
		return fmt.Errorf("append rent history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lease tx: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ReferenceData(ctx context.Context) (*services.ReferenceData, error) {
	ref := &services.ReferenceData{
		UnitsByID:      make(map[int64]core.Unit),
		UnitsByCode:    make(map[string]core.Unit),
		LeasesByTenant: make(map[int64][]core.Lease),
	}

	catRows, err := r.db.QueryContext(ctx,
		`SELECT id, keywords, category FROM categorization_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query categorization rules: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var (
			rule     core.CategorizationRule
			category string
		)
		if err := catRows.Scan(&rule.ID, &rule.Keywords, &category); err != nil {
			return nil, fmt.Errorf("scan categorization rule: %w", err)
		}
		rule.Category = core.Category(category)
		ref.CategorizationRules = append(ref.CategorizationRules, rule)
	}
	if err := catRows.Err(); err != nil {
		return nil, err
	}

	assignRows, err := r.db.QueryContext(ctx,
		`SELECT id, keyword, unit_id FROM unit_assignment_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query assignment rules: %w", err)
	}
	defer assignRows.Close()
	for assignRows.Next() {
		var rule core.UnitAssignmentRule
		if err := assignRows.Scan(&rule.ID, &rule.Keyword, &rule.UnitID); err != nil {
			return nil, fmt.Errorf("scan assignment rule: %w", err)
		}
		ref.AssignmentRules = append(ref.AssignmentRules, rule)
	}
	if err := assignRows.Err(); err != nil {
		return nil, err
	}

	unitRows, err := r.db.QueryContext(ctx,
		`SELECT id, code, area_sqm, active FROM units ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer unitRows.Close()
	for unitRows.Next() {
		unit, err := scanUnit(unitRows)
		if err != nil {
			return nil, err
		}
		ref.UnitsByID[unit.ID] = *unit
		ref.UnitsByCode[strings.ToLower(unit.Code)] = *unit
	}
	if err := unitRows.Err(); err != nil {
		return nil, err
	}

	tenantRows, err := r.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, email, phone, role, active
		FROM tenants WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer tenantRows.Close()
	for tenantRows.Next() {
		var (
			t    core.Tenant
			role string
		)
		if err := tenantRows.Scan(&t.ID, &t.FirstName, &t.LastName, &t.Email, &t.Phone, &role, &t.Active); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		t.Role = core.Role(role)
		ref.ActiveTenants = append(ref.ActiveTenants, t)
	}
	if err := tenantRows.Err(); err != nil {
		return nil, err
	}

	leaseRows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, unit_id, signing_date, start_date, end_date,
		       rent_amount, deposit_amount, occupants, kind, prior_lease_id, active
		FROM leases WHERE active = 1 ORDER BY start_date`)
	if err != nil {
		return nil, fmt.Errorf("query leases: %w", err)
	}
	defer leaseRows.Close()
	for leaseRows.Next() {
		lease, err := scanLease(leaseRows)
		if err != nil {
			return nil, err
		}
		ref.LeasesByTenant[lease.TenantID] = append(ref.LeasesByTenant[lease.TenantID], *lease)
	}
	if err := leaseRows.Err(); err != nil {
		return nil, err
	}

	return ref, nil
}

// SaveCategorizationRule stores a keyword rule unless an identical one
// already exists, and returns whether a new rule was created.
func (r *SQLiteRepository) SaveCategorizationRule(ctx context.Context, keywords string, category core.Category) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM categorization_rules WHERE keywords = ? AND category = ?`,
		keywords, string(category)).Scan(&id)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("look up categorization rule: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO categorization_rules (keywords, category) VALUES (?, ?)`,
		keywords, string(category))
	if err != nil {
		return false, fmt.Errorf("insert categorization rule: %w", err)
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(s scanner) (*core.Unit, error) {
	var (
		u    core.Unit
		area string
	)
	if err := s.Scan(&u.ID, &u.Code, &area, &u.Active); err != nil {
		return nil, err
	}
	var err error
	if u.AreaSqm, err = parseDecimal(area); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanLease(s scanner) (*core.Lease, error) {
	var (
		l          core.Lease
		signing    string
		start      string
		end        sql.NullString
		rent       string
		deposit    string
		kind       string
		priorLease sql.NullInt64
	)
	if err := s.Scan(&l.ID, &l.TenantID, &l.UnitID, &signing, &start, &end,
		&rent, &deposit, &l.Occupants, &kind, &priorLease, &l.Active); err != nil {
		return nil, err
	}

	var err error
	if l.SigningDate, err = parseDate(signing); err != nil {
		return nil, err
	}
	if l.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if end.Valid {
		endDate, err := parseDate(end.String)
		if err != nil {
			return nil, err
		}
		l.EndDate = &endDate
	}
	if l.RentAmount, err = parseDecimal(rent); err != nil {
		return nil, err
	}
	if l.DepositAmount, err = parseDecimal(deposit); err != nil {
		return nil, err
	}
	l.Kind = core.LeaseKind(kind)
	if priorLease.Valid {
		l.PriorLeaseID = &priorLease.Int64
	}
	return &l, nil
}

func scanMeter(s scanner) (*core.Meter, error) {
	var (
		m      core.Meter
		medium string
		unitID sql.NullInt64
		status string
	)
	if err := s.Scan(&m.ID, &m.Serial, &medium, &unitID, &status); err != nil {
		return nil, err
	}
	m.Medium = core.Medium(medium)
	m.Status = core.MeterStatus(status)
	if unitID.Valid {
		m.UnitID = &unitID.Int64
	}
	return &m, nil
}

func fmtDate(t time.Time) string { return t.Format(dateLayout) }

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := parseDecimal(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtDate(*t)
}
