package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func datePtr(t time.Time) *time.Time { return &t }

func TestLeaseValidate(t *testing.T) {
	base := Lease{
		StartDate: NewDate(2024, time.March, 1),
		Occupants: 2,
	}

	tests := []struct {
		name    string
		mutate  func(*Lease)
		wantErr error
	}{
		{"open ended lease is valid", func(*Lease) {}, nil},
		{
			"end after start is valid",
			func(l *Lease) { l.EndDate = datePtr(NewDate(2025, time.March, 1)) },
			nil,
		},
		{
			"end equal to start is valid",
			func(l *Lease) { l.EndDate = datePtr(NewDate(2024, time.March, 1)) },
			nil,
		},
		{
			"end before start is rejected",
			func(l *Lease) { l.EndDate = datePtr(NewDate(2024, time.February, 1)) },
			ErrEndBeforeStart,
		},
		{
			"zero occupants rejected",
			func(l *Lease) { l.Occupants = 0 },
			ErrNoOccupants,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := base
			tt.mutate(&l)
			if err := l.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLeaseActiveOn(t *testing.T) {
	l := Lease{
		StartDate: NewDate(2024, time.March, 1),
		EndDate:   datePtr(NewDate(2024, time.December, 31)),
	}

	if l.ActiveOn(NewDate(2024, time.February, 29)) {
		t.Error("lease active before start date")
	}
	if !l.ActiveOn(NewDate(2024, time.March, 1)) {
		t.Error("lease inactive on start date")
	}
	if !l.ActiveOn(NewDate(2024, time.December, 31)) {
		t.Error("lease inactive on end date")
	}
	if l.ActiveOn(NewDate(2025, time.January, 1)) {
		t.Error("lease active after end date")
	}

	open := Lease{StartDate: NewDate(2024, time.March, 1)}
	if !open.ActiveOn(NewDate(2030, time.June, 15)) {
		t.Error("open-ended lease inactive far in the future")
	}
}

func TestRentAsOf(t *testing.T) {
	changes := []RentChange{
		{ChangedAt: NewDate(2023, time.January, 10), Rent: decimal.NewFromInt(1000)},
		{ChangedAt: NewDate(2024, time.June, 1), Rent: decimal.NewFromInt(1200)},
		{ChangedAt: NewDate(2025, time.February, 20), Rent: decimal.NewFromInt(1350)},
	}
	current := decimal.NewFromInt(1350)

	tests := []struct {
		name string
		at   time.Time
		want int64
	}{
		{"between first and second change", NewDate(2024, time.January, 15), 1000},
		{"exactly on a change date", NewDate(2024, time.June, 1), 1200},
		{"after last change", NewDate(2025, time.July, 15), 1350},
		{"before any change falls back to earliest", NewDate(2022, time.May, 15), 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RentAsOf(changes, current, tt.at)
			if !got.Equal(decimal.NewFromInt(tt.want)) {
				t.Errorf("RentAsOf(%v) = %s, want %d", tt.at, got, tt.want)
			}
		})
	}

	t.Run("no history uses current value", func(t *testing.T) {
		got := RentAsOf(nil, decimal.NewFromInt(900), NewDate(2024, time.June, 15))
		if !got.Equal(decimal.NewFromInt(900)) {
			t.Errorf("RentAsOf with no history = %s, want 900", got)
		}
	})
}

func TestSplitID(t *testing.T) {
	id := SplitID("TRX-123")
	if id != "TRX-123_split" {
		t.Errorf("SplitID = %q", id)
	}
	tx := Transaction{ExternalID: id}
	if !tx.IsSplit() {
		t.Error("IsSplit() = false for split id")
	}
	if (Transaction{ExternalID: "TRX-123"}).IsSplit() {
		t.Error("IsSplit() = true for plain id")
	}
}
