package storage

import (
	"context"
	"fmt"

	"kamienica/internal/core"
)

// Administrative writes. The building's master data changes rarely; it
// is maintained through these methods rather than a dedicated UI.

func (r *SQLiteRepository) SaveUnit(ctx context.Context, unit *core.Unit) error {
	if unit.ID == 0 {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO units (code, area_sqm, active) VALUES (?, ?, ?)`,
			unit.Code, unit.AreaSqm.String(), unit.Active)
		if err != nil {
			return fmt.Errorf("insert unit %q: %w", unit.Code, err)
		}
		unit.ID, err = res.LastInsertId()
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE units SET code = ?, area_sqm = ?, active = ? WHERE id = ?`,
		unit.Code, unit.AreaSqm.String(), unit.Active, unit.ID)
	if err != nil {
		return fmt.Errorf("update unit %d: %w", unit.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) SaveTenant(ctx context.Context, tenant *core.Tenant) error {
	if tenant.ID == 0 {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO tenants (first_name, last_name, email, phone, role, active)
			VALUES (?, ?, ?, ?, ?, ?)`,
			tenant.FirstName, tenant.LastName, tenant.Email, tenant.Phone,
			string(tenant.Role), tenant.Active)
		if err != nil {
			return fmt.Errorf("insert tenant: %w", err)
		}
		tenant.ID, err = res.LastInsertId()
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE tenants SET first_name = ?, last_name = ?, email = ?, phone = ?,
		       role = ?, active = ?
		WHERE id = ?`,
		tenant.FirstName, tenant.LastName, tenant.Email, tenant.Phone,
		string(tenant.Role), tenant.Active, tenant.ID)
	if err != nil {
		return fmt.Errorf("update tenant %d: %w", tenant.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) SaveMeter(ctx context.Context, meter *core.Meter) error {
	if meter.ID == 0 {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO meters (serial, medium, unit_id, status) VALUES (?, ?, ?, ?)`,
			meter.Serial, string(meter.Medium), meter.UnitID, string(meter.Status))
		if err != nil {
			return fmt.Errorf("insert meter %q: %w", meter.Serial, err)
		}
		meter.ID, err = res.LastInsertId()
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE meters SET serial = ?, medium = ?, unit_id = ?, status = ? WHERE id = ?`,
		meter.Serial, string(meter.Medium), meter.UnitID, string(meter.Status), meter.ID)
	if err != nil {
		return fmt.Errorf("update meter %d: %w", meter.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) SaveReading(ctx context.Context, reading *core.Reading) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO meter_readings (meter_id, reading_date, value) VALUES (?, ?, ?)`,
		reading.MeterID, fmtDate(reading.Date), reading.Value.String())
	if err != nil {
		return fmt.Errorf("insert reading for meter %d: %w", reading.MeterID, err)
	}
	reading.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) SaveFeeRule(ctx context.Context, rule *core.FeeRule) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO fee_rules (name, method, amount, medium, effective_from)
		VALUES (?, ?, ?, ?, ?)`,
		rule.Name, string(rule.Method), rule.Amount.String(),
		string(rule.Medium), fmtDate(rule.EffectiveFrom))
	if err != nil {
		return fmt.Errorf("insert fee rule %q: %w", rule.Name, err)
	}
	rule.ID, err = res.LastInsertId()
	return err
}

func (r *SQLiteRepository) SaveAssignmentRule(ctx context.Context, rule *core.UnitAssignmentRule) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO unit_assignment_rules (keyword, unit_id) VALUES (?, ?)`,
		rule.Keyword, rule.UnitID)
	if err != nil {
		return fmt.Errorf("insert assignment rule %q: %w", rule.Keyword, err)
	}
	rule.ID, err = res.LastInsertId()
	return err
}
