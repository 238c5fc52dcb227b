// Package core holds the domain model of the building: units, tenants,
// leases with a time-versioned rent history, meters and their readings,
// fee rules and imported bank transactions.
package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BuildingUnitCode is the reserved unit code that represents the shared
// building account. Expenses without a better match land here.
const BuildingUnitCode = "kamienica"

const (
	RoleOwner        Role = "wlasciciel"
	RoleTenant       Role = "lokator"
	RoleFormerTenant Role = "byly_lokator"
	RoleBuilding     Role = "budynek"
)

const (
	LeaseContract  LeaseKind = "umowa"
	LeaseAmendment LeaseKind = "aneks"
)

const (
	MediumColdWater   Medium = "cold_water"
	MediumHotWater    Medium = "hot_water"
	MediumElectricity Medium = "electricity"
	MediumGas         Medium = "gas"
	MediumHeat        Medium = "heat"
)

const (
	MeterActive   MeterStatus = "aktywny"
	MeterInactive MeterStatus = "nieaktywny"
)

const (
	FeePerPerson FeeMethod = "per_person"
	FeeFixed     FeeMethod = "fixed_amount"
	FeePerUnit   FeeMethod = "per_unit"
)

const (
	StatusProcessed   TransactionStatus = "PROCESSED"
	StatusUnprocessed TransactionStatus = "UNPROCESSED"
	StatusConflict    TransactionStatus = "CONFLICT"
	StatusManual      TransactionStatus = "MANUALLY_EDITED"
)

type (
	Role              string
	LeaseKind         string
	Medium            string
	MeterStatus       string
	FeeMethod         string
	TransactionStatus string
	Category          string

	// Unit is a rentable premises. One row per apartment plus the
	// reserved building account (BuildingUnitCode).
	Unit struct {
		ID      int64
		Code    string // e.g. "5", "3a"
		AreaSqm decimal.Decimal
		Active  bool
	}

	Tenant struct {
		ID        int64
		FirstName string
		LastName  string
		Email     string
		Phone     string
		Role      Role
		Active    bool
	}

	// Lease is a tenancy contract. Amendments form a chain through
	// PriorLeaseID. EndDate nil means open-ended.
	Lease struct {
		ID            int64
		TenantID      int64
		UnitID        int64
		SigningDate   time.Time
		StartDate     time.Time
		EndDate       *time.Time
		RentAmount    decimal.Decimal
		DepositAmount decimal.Decimal
		Occupants     int
		Kind          LeaseKind
		PriorLeaseID  *int64
		Active        bool
	}

	// RentChange is one entry of a lease's append-only rent history.
	// A snapshot is written every time the lease is saved.
	RentChange struct {
		LeaseID   int64
		ChangedAt time.Time
		Rent      decimal.Decimal
	}

	Meter struct {
		ID     int64
		Serial string
		Medium Medium
		UnitID *int64
		Status MeterStatus
	}

	// Reading is a cumulative meter value. Values are non-decreasing by
	// convention but corrections are not rejected.
	Reading struct {
		ID      int64
		MeterID int64
		Date    time.Time
		Value   decimal.Decimal
	}

	// FeeRule describes how a recurring fee is charged. The rule in force
	// on a given date is the one with the latest EffectiveFrom <= date.
	FeeRule struct {
		ID            int64
		Name          string
		Method        FeeMethod
		Amount        decimal.Decimal
		Medium        Medium // set for FeePerUnit rules
		EffectiveFrom time.Time
	}

	// WaterCostOverride carries the manually entered water invoice for a
	// bimonthly period. A nil BilledAmount means the invoice is unknown.
	WaterCostOverride struct {
		PeriodStart      time.Time
		BilledAmount     *decimal.Decimal
		TotalConsumption *decimal.Decimal
	}

	// Transaction is an imported bank statement row. Positive amounts are
	// income, negative amounts are expenses.
	Transaction struct {
		ID          int64
		TenantID    *int64
		UnitID      *int64
		Amount      decimal.Decimal
		PostingDate time.Time
		Description string
		Contractor  string
		ExternalID  string
		Category    Category
		Status      TransactionStatus
	}

	// CategorizationRule maps comma-separated keyword phrases to a
	// transaction category.
	CategorizationRule struct {
		ID       int64
		Keywords string
		Category Category
	}

	// UnitAssignmentRule maps a keyword or account fragment to a unit.
	UnitAssignmentRule struct {
		ID      int64
		Keyword string
		UnitID  int64
	}
)

// Transaction categories. The set mirrors the landlord's bookkeeping.
const (
	CategoryRent          Category = "czynsz"
	CategoryFees          Category = "oplaty"
	CategoryBankFee       Category = "oplata_bankowa"
	CategoryStairwell     Category = "energia_klatka"
	CategoryEnergyM8      Category = "energia_m8"
	CategoryBuildingNeeds Category = "na_potrzeby_kamienicy"
	CategoryRepairs       Category = "naprawy_remonty"
	CategoryWater         Category = "oplata_za_wode"
	CategoryWaste         Category = "wywoz_smieci"
	CategoryCleaning      Category = "sprzatanie"
	CategoryGardener      Category = "ogrodnik"
	CategoryInsurance     Category = "ubezpieczenie"
	CategoryInternet      Category = "internet_telefon"
	CategoryElectrician   Category = "elektryk"
	CategoryChimneySweep  Category = "kominiarz"
	CategoryFurnaces      Category = "piece_co"
	CategoryTax           Category = "podatek"
	CategoryNonCost       Category = "oplata_nie_stanowiaca_kosztu"
)

var (
	ErrEndBeforeStart = errors.New("lease end date before start date")
	ErrNoOccupants    = errors.New("lease occupant count must be positive")
)

// NewDate builds a midnight-UTC date. All domain dates are day-precision.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// WaterMediums lists the media that participate in water billing.
var WaterMediums = []Medium{MediumColdWater, MediumHotWater}

// Label returns the display name of a medium.
func (m Medium) Label() string {
	switch m {
	case MediumColdWater:
		return "Woda zimna"
	case MediumHotWater:
		return "Woda ciepła"
	case MediumElectricity:
		return "Energia elektryczna"
	case MediumGas:
		return "Gaz"
	case MediumHeat:
		return "Energia cieplna"
	}
	return string(m)
}

func (l Lease) Validate() error {
	if l.EndDate != nil && l.EndDate.Before(l.StartDate) {
		return ErrEndBeforeStart
	}
	if l.Occupants <= 0 {
		return ErrNoOccupants
	}
	return nil
}

// ActiveOn reports whether the lease covers the given date.
func (l Lease) ActiveOn(d time.Time) bool {
	if d.Before(l.StartDate) {
		return false
	}
	return l.EndDate == nil || !d.After(*l.EndDate)
}

// RentAsOf resolves the rent in force at a given date from the lease's
// rent history. Changes must be ordered by ChangedAt ascending. When no
// change precedes the date the earliest snapshot applies; with no history
// at all the lease's current value is used.
func RentAsOf(changes []RentChange, current decimal.Decimal, at time.Time) decimal.Decimal {
	for i := len(changes) - 1; i >= 0; i-- {
		if !changes[i].ChangedAt.After(at) {
			return changes[i].Rent
		}
	}
	if len(changes) > 0 {
		return changes[0].Rent
	}
	return current
}

// FullName returns "FirstName LastName" for display and matching.
func (t Tenant) FullName() string {
	return t.FirstName + " " + t.LastName
}

const splitSuffix = "_split"

// IsSplit reports whether the transaction was split off from another one.
func (t Transaction) IsSplit() bool {
	return strings.Contains(t.ExternalID, splitSuffix)
}

// SplitID derives the external id for a transaction split off from the
// given parent id.
func SplitID(parentID string) string {
	return parentID + splitSuffix
}
