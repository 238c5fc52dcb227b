// Package services implements the billing reconciliation engine: meter
// consumption aggregation, bimonthly cost allocation, the annual ledger
// with balance carry-forward, transaction classification and the bank
// statement import pipeline.
package services

import (
	"context"
	"time"

	"kamienica/internal/core"
)

// MeterWithReadings pairs a meter with its readings ordered by date.
type MeterWithReadings struct {
	Meter    core.Meter
	Readings []core.Reading
}

// ReferenceData is the snapshot of lookup tables fetched once per batch
// operation, so classification and matching stay O(rows x rules) without
// per-row storage round-trips.
type ReferenceData struct {
	CategorizationRules []core.CategorizationRule
	AssignmentRules     []core.UnitAssignmentRule
	UnitsByID           map[int64]core.Unit
	UnitsByCode         map[string]core.Unit // lowercased code -> unit, all units
	ActiveTenants       []core.Tenant
	LeasesByTenant      map[int64][]core.Lease // active leases per tenant
}

// Store is the read/write collaborator behind the engine. Implementations
// return ordered collections where stated.
type Store interface {
	UnitByCode(ctx context.Context, code string) (*core.Unit, error)
	UnitByID(ctx context.Context, id int64) (*core.Unit, error)
	ActiveLeaseForUnit(ctx context.Context, unitID int64) (*core.Lease, error)
	RentHistory(ctx context.Context, leaseID int64) ([]core.RentChange, error)

	// UnitWaterReadings returns the unit's active water meters with
	// readings ordered by date ascending.
	UnitWaterReadings(ctx context.Context, unitID int64) ([]MeterWithReadings, error)
	// BuildingWaterReadings covers active water meters of all active
	// units except the shared building account.
	BuildingWaterReadings(ctx context.Context) ([]MeterWithReadings, error)

	FeeRules(ctx context.Context) ([]core.FeeRule, error)
	WaterOverride(ctx context.Context, periodStart time.Time) (*core.WaterCostOverride, error)

	// PaymentsForUnit returns positive-amount transactions for the unit
	// within [from, to], ordered by posting date ascending.
	PaymentsForUnit(ctx context.Context, unitID int64, from, to time.Time) ([]core.Transaction, error)

	ReferenceData(ctx context.Context) (*ReferenceData, error)

	// InImportTx runs fn inside one storage transaction. Either every
	// upsert performed through it commits or none do.
	InImportTx(ctx context.Context, fn func(TxStore) error) error
}

// TxStore is the write surface available inside an import transaction.
type TxStore interface {
	UpsertTransaction(ctx context.Context, tx core.Transaction) error
}

// ReviewItem describes an imported row that needs manual resolution.
type ReviewItem struct {
	ExternalID     string
	PostingDate    time.Time
	Amount         string
	Description    string
	CategoryStatus core.TransactionStatus
	UnitStatus     core.TransactionStatus
	Trace          string
}

// ReviewPublisher forwards review items to the manual-review queue.
type ReviewPublisher interface {
	PublishReviewItem(ctx context.Context, item ReviewItem) error
}
