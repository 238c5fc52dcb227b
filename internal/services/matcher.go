package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kamienica/internal/core"
)

// UnitMatch is the outcome of assigning a unit to one transaction.
type UnitMatch struct {
	Unit   *core.Unit
	Status core.TransactionStatus
	Trace  string
}

// unitTokenPattern finds explicit unit references in statement text:
// "lok. 5", "mieszkanie 12a", "nr 3" or "m5". The bare "m" form needs
// its own word boundary so it is not mistaken for street addresses
// ("mickiewicza 5"). Text is lowercased before matching.
var unitTokenPattern = regexp.MustCompile(`\b(lok|mieszkanie|nr)\.?\s*(\d+[a-z]?)|\bm\s*(\d+[a-z]?)`)

// MatchUnit assigns a unit to a transaction. Expenses (negative amounts)
// go to the shared building account when it exists. Otherwise candidates
// come from three sources: assignment rules (whole-word keyword match),
// explicit unit-reference tokens in the text, and active tenants whose
// full name appears in the text and who hold a lease covering the
// posting date. Candidates are deduplicated; zero is unprocessed, one
// processes, several distinct units conflict.
func MatchUnit(description, contractor string, amount decimal.Decimal, postingDate time.Time, ref *ReferenceData) UnitMatch {
	var trace []string

	if amount.IsNegative() {
		if building, ok := ref.UnitsByCode[core.BuildingUnitCode]; ok {
			return UnitMatch{
				Unit:   &building,
				Status: core.StatusProcessed,
				Trace:  fmt.Sprintf("Automatycznie przypisano do '%s' (transakcja kosztowa).", core.BuildingUnitCode),
			}
		}
		// No building account: fall through, another source may match.
		trace = append(trace, fmt.Sprintf("Nie znaleziono lokalu '%s' dla transakcji kosztowej.", core.BuildingUnitCode))
	}

	searchText := strings.ToLower(description + " " + contractor)
	var found []core.Unit

	for _, rule := range ref.AssignmentRules {
		keyword := strings.ToLower(rule.Keyword)
		if keyword == "" || !wholePhrasePattern(keyword).MatchString(searchText) {
			continue
		}
		if unit, ok := ref.UnitsByID[rule.UnitID]; ok {
			found = append(found, unit)
			trace = append(trace, fmt.Sprintf("Dopasowano regułę przypisania lokalu: '%s' -> Lokal %s.", rule.Keyword, unit.Code))
		}
	}

	for _, m := range unitTokenPattern.FindAllStringSubmatch(searchText, -1) {
		code := m[2]
		if code == "" {
			code = m[3]
		}
		if code == "" {
			continue
		}
		if unit, ok := ref.UnitsByCode[code]; ok {
			found = append(found, unit)
			trace = append(trace, fmt.Sprintf("Dopasowano numer lokalu w tekście: '%s' -> Lokal %s.", strings.TrimSpace(m[0]), unit.Code))
		}
	}

	for _, tenant := range ref.ActiveTenants {
		if tenant.FirstName == "" || tenant.LastName == "" {
			continue
		}
		if !strings.Contains(searchText, strings.ToLower(tenant.LastName)) ||
			!strings.Contains(searchText, strings.ToLower(tenant.FirstName)) {
			continue
		}
		lease := leaseActiveOn(ref.LeasesByTenant[tenant.ID], postingDate)
		if lease == nil {
			continue
		}
		if unit, ok := ref.UnitsByID[lease.UnitID]; ok {
			found = append(found, unit)
			trace = append(trace, fmt.Sprintf("Dopasowano najemcę: '%s' -> Lokal %s.", tenant.FullName(), unit.Code))
		}
	}

	unique := dedupeUnits(found)

	switch {
	case len(unique) == 1:
		return UnitMatch{
			Unit:   &unique[0],
			Status: core.StatusProcessed,
			Trace:  strings.Join(trace, " "),
		}
	case len(unique) > 1:
		return UnitMatch{
			Status: core.StatusConflict,
			Trace:  "Konflikt: Znaleziono wiele pasujących lokali. " + strings.Join(trace, " "),
		}
	}
	return UnitMatch{
		Status: core.StatusUnprocessed,
		Trace:  "Nie znaleziono pasującego lokalu.",
	}
}

func leaseActiveOn(leases []core.Lease, d time.Time) *core.Lease {
	for i := range leases {
		if leases[i].ActiveOn(d) {
			return &leases[i]
		}
	}
	return nil
}

func dedupeUnits(units []core.Unit) []core.Unit {
	seen := make(map[int64]struct{}, len(units))
	var unique []core.Unit
	for _, u := range units {
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		unique = append(unique, u)
	}
	return unique
}
