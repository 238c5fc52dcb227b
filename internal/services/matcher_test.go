package services

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kamienica/internal/core"
)

func matcherRefData() *ReferenceData {
	building := core.Unit{ID: 1, Code: core.BuildingUnitCode, Active: true}
	unit5 := core.Unit{ID: 2, Code: "5", Active: true}
	unit7 := core.Unit{ID: 3, Code: "7", Active: true}
	unit3a := core.Unit{ID: 4, Code: "3a", Active: true}

	kowalski := core.Tenant{ID: 10, FirstName: "Jan", LastName: "Kowalski", Role: core.RoleTenant, Active: true}

	return &ReferenceData{
		AssignmentRules: []core.UnitAssignmentRule{
			{ID: 1, Keyword: "sklep spożywczy", UnitID: unit7.ID},
		},
		UnitsByID: map[int64]core.Unit{
			building.ID: building,
			unit5.ID:    unit5,
			unit7.ID:    unit7,
			unit3a.ID:   unit3a,
		},
		UnitsByCode: map[string]core.Unit{
			core.BuildingUnitCode: building,
			"5":                   unit5,
			"7":                   unit7,
			"3a":                  unit3a,
		},
		ActiveTenants: []core.Tenant{kowalski},
		LeasesByTenant: map[int64][]core.Lease{
			kowalski.ID: {
				{
					ID:         100,
					TenantID:   kowalski.ID,
					UnitID:     unit5.ID,
					StartDate:  core.NewDate(2022, time.June, 1),
					RentAmount: decimal.NewFromInt(1000),
					Occupants:  2,
					Active:     true,
				},
			},
		},
	}
}

func TestMatchUnit(t *testing.T) {
	ref := matcherRefData()
	postingDate := core.NewDate(2024, time.March, 10)

	tests := []struct {
		name        string
		description string
		contractor  string
		amount      decimal.Decimal
		wantCode    string
		wantStatus  core.TransactionStatus
	}{
		{
			name:        "expense goes to the building account",
			description: "faktura za energię",
			amount:      decimal.NewFromInt(-200),
			wantCode:    core.BuildingUnitCode,
			wantStatus:  core.StatusProcessed,
		},
		{
			name:        "tenant name and unit token agree after dedup",
			description: "przelew od Jan Kowalski, lok. 5",
			amount:      decimal.NewFromInt(1000),
			wantCode:    "5",
			wantStatus:  core.StatusProcessed,
		},
		{
			name:        "assignment rule keyword",
			description: "czynsz sklep spożywczy",
			amount:      decimal.NewFromInt(1500),
			wantCode:    "7",
			wantStatus:  core.StatusProcessed,
		},
		{
			name:        "mieszkanie token with letter suffix",
			description: "czynsz mieszkanie 3a",
			amount:      decimal.NewFromInt(900),
			wantCode:    "3a",
			wantStatus:  core.StatusProcessed,
		},
		{
			name:        "bare m token",
			description: "oplata m5",
			amount:      decimal.NewFromInt(900),
			wantCode:    "5",
			wantStatus:  core.StatusProcessed,
		},
		{
			name:        "street address does not look like a unit token",
			description: "przelew mickiewicza 5",
			amount:      decimal.NewFromInt(900),
			wantStatus:  core.StatusUnprocessed,
		},
		{
			name:        "distinct units conflict",
			description: "Jan Kowalski sklep spożywczy",
			amount:      decimal.NewFromInt(700),
			wantStatus:  core.StatusConflict,
		},
		{
			name:        "nothing matches",
			description: "przelew własny",
			amount:      decimal.NewFromInt(50),
			wantStatus:  core.StatusUnprocessed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchUnit(tt.description, tt.contractor, tt.amount, postingDate, ref)
			if got.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s (trace: %s)", got.Status, tt.wantStatus, got.Trace)
			}
			if tt.wantCode == "" {
				if got.Unit != nil {
					t.Fatalf("unexpected unit %s", got.Unit.Code)
				}
				return
			}
			if got.Unit == nil {
				t.Fatalf("expected unit %s, got none (trace: %s)", tt.wantCode, got.Trace)
			}
			if got.Unit.Code != tt.wantCode {
				t.Errorf("unit = %s, want %s", got.Unit.Code, tt.wantCode)
			}
		})
	}
}

func TestMatchUnitExpenseWithoutBuildingAccount(t *testing.T) {
	ref := matcherRefData()
	delete(ref.UnitsByCode, core.BuildingUnitCode)

	// The other sources still get their chance.
	got := MatchUnit("faktura lok. 7", "", decimal.NewFromInt(-300), core.NewDate(2024, time.March, 10), ref)
	if got.Status != core.StatusProcessed {
		t.Fatalf("status = %s, want %s (trace: %s)", got.Status, core.StatusProcessed, got.Trace)
	}
	if got.Unit == nil || got.Unit.Code != "7" {
		t.Fatalf("expected unit 7, got %+v", got.Unit)
	}
	if !strings.Contains(got.Trace, core.BuildingUnitCode) {
		t.Errorf("trace should mention the missing building account, got %q", got.Trace)
	}
}

func TestMatchUnitTenantLeaseMustCoverPostingDate(t *testing.T) {
	ref := matcherRefData()
	end := core.NewDate(2023, time.December, 31)
	leases := ref.LeasesByTenant[10]
	leases[0].EndDate = &end
	ref.LeasesByTenant[10] = leases

	got := MatchUnit("przelew od Jan Kowalski", "", decimal.NewFromInt(1000), core.NewDate(2024, time.March, 10), ref)
	if got.Status != core.StatusUnprocessed {
		t.Fatalf("status = %s, want %s (trace: %s)", got.Status, core.StatusUnprocessed, got.Trace)
	}
}
