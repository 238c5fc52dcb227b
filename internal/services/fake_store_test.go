package services

import (
	"context"
	"fmt"
	"time"

	"kamienica/internal/core"
)

// fakeStore is an in-memory Store used across the service tests.
type fakeStore struct {
	units            []core.Unit
	activeLeases     []core.Lease
	rentHistory      map[int64][]core.RentChange
	unitReadings     map[int64][]MeterWithReadings
	buildingReadings []MeterWithReadings
	feeRules         []core.FeeRule
	overrides        map[string]*core.WaterCostOverride // keyed by period start date
	payments         []core.Transaction
	ref              *ReferenceData

	upserted    []core.Transaction
	failUpserts int // fail the n-th upsert when > 0
}

func overrideKey(t time.Time) string { return t.Format("2006-01-02") }

func (f *fakeStore) UnitByCode(_ context.Context, code string) (*core.Unit, error) {
	for _, u := range f.units {
		if u.Code == code {
			unit := u
			return &unit, nil
		}
	}
	return nil, fmt.Errorf("unit %q not found", code)
}

func (f *fakeStore) UnitByID(_ context.Context, id int64) (*core.Unit, error) {
	for _, u := range f.units {
		if u.ID == id {
			unit := u
			return &unit, nil
		}
	}
	return nil, fmt.Errorf("unit %d not found", id)
}

func (f *fakeStore) ActiveLeaseForUnit(_ context.Context, unitID int64) (*core.Lease, error) {
	for _, l := range f.activeLeases {
		if l.UnitID == unitID && l.Active {
			lease := l
			return &lease, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) RentHistory(_ context.Context, leaseID int64) ([]core.RentChange, error) {
	return f.rentHistory[leaseID], nil
}

func (f *fakeStore) UnitWaterReadings(_ context.Context, unitID int64) ([]MeterWithReadings, error) {
	return f.unitReadings[unitID], nil
}

func (f *fakeStore) BuildingWaterReadings(_ context.Context) ([]MeterWithReadings, error) {
	return f.buildingReadings, nil
}

func (f *fakeStore) FeeRules(_ context.Context) ([]core.FeeRule, error) {
	return f.feeRules, nil
}

func (f *fakeStore) WaterOverride(_ context.Context, periodStart time.Time) (*core.WaterCostOverride, error) {
	return f.overrides[overrideKey(periodStart)], nil
}

func (f *fakeStore) PaymentsForUnit(_ context.Context, unitID int64, from, to time.Time) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range f.payments {
		if t.UnitID == nil || *t.UnitID != unitID {
			continue
		}
		if !t.Amount.IsPositive() {
			continue
		}
		if t.PostingDate.Before(from) || t.PostingDate.After(to) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) ReferenceData(_ context.Context) (*ReferenceData, error) {
	if f.ref != nil {
		return f.ref, nil
	}
	return &ReferenceData{
		UnitsByID:      map[int64]core.Unit{},
		UnitsByCode:    map[string]core.Unit{},
		LeasesByTenant: map[int64][]core.Lease{},
	}, nil
}

func (f *fakeStore) InImportTx(ctx context.Context, fn func(TxStore) error) error {
	staging := &fakeTxStore{store: f}
	if err := fn(staging); err != nil {
		return err // staged rows are discarded
	}
	f.upserted = append(f.upserted, staging.rows...)
	return nil
}

type fakeTxStore struct {
	store *fakeStore
	rows  []core.Transaction
}

func (s *fakeTxStore) UpsertTransaction(_ context.Context, tx core.Transaction) error {
	if s.store.failUpserts > 0 && len(s.rows)+1 == s.store.failUpserts {
		return fmt.Errorf("simulated storage failure")
	}
	s.rows = append(s.rows, tx)
	return nil
}

type fakePublisher struct {
	items []ReviewItem
}

func (p *fakePublisher) PublishReviewItem(_ context.Context, item ReviewItem) error {
	p.items = append(p.items, item)
	return nil
}
