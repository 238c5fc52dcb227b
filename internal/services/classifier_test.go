package services

import (
	"strings"
	"testing"

	"kamienica/internal/core"
)

func TestClassify(t *testing.T) {
	rules := []core.CategorizationRule{
		{ID: 1, Keywords: "czynsz,rent", Category: core.CategoryRent},
		{ID: 2, Keywords: "woda", Category: core.CategoryWater},
		{ID: 3, Keywords: "naprawa dachu", Category: core.CategoryRepairs},
	}

	tests := []struct {
		name         string
		description  string
		contractor   string
		wantCategory core.Category
		wantStatus   core.TransactionStatus
	}{
		{
			name:         "single rule match",
			description:  "Przelew czynsz za marzec",
			wantCategory: core.CategoryRent,
			wantStatus:   core.StatusProcessed,
		},
		{
			name:         "rule matches contractor text too",
			description:  "przelew przychodzacy",
			contractor:   "Jan Nowak rent",
			wantCategory: core.CategoryRent,
			wantStatus:   core.StatusProcessed,
		},
		{
			name:        "two categories match gives conflict",
			description: "czynsz za woda",
			wantStatus:  core.StatusConflict,
		},
		{
			name:         "multi-word phrase matches as a whole",
			description:  "faktura naprawa dachu kwiecien",
			wantCategory: core.CategoryRepairs,
			wantStatus:   core.StatusProcessed,
		},
		{
			name:         "keyword inside longer word does not match",
			description:  "wodamax sp. z o.o.",
			wantCategory: "",
			wantStatus:   core.StatusUnprocessed,
		},
		{
			name:         "no rule falls back to built-in map",
			description:  "Opłata za prowadzenie rachunku 03/2024",
			wantCategory: core.CategoryBankFee,
			wantStatus:   core.StatusProcessed,
		},
		{
			name:         "fallback order prefers earlier entry",
			description:  "opłata za wywóz śmieci i czynsz",
			wantCategory: core.CategoryWaste,
			wantStatus:   core.StatusProcessed,
		},
		{
			name:       "nothing matches",
			description: "przelew własny",
			wantStatus: core.StatusUnprocessed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.description, tt.contractor, rules)
			if got.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s (trace: %s)", got.Status, tt.wantStatus, got.Trace)
			}
			if got.Category != tt.wantCategory {
				t.Errorf("category = %s, want %s", got.Category, tt.wantCategory)
			}
			if got.Trace == "" {
				t.Error("expected a non-empty trace")
			}
		})
	}
}

func TestClassifySameCategoryTwiceIsNotAConflict(t *testing.T) {
	rules := []core.CategorizationRule{
		{ID: 1, Keywords: "czynsz", Category: core.CategoryRent},
		{ID: 2, Keywords: "najem", Category: core.CategoryRent},
	}

	got := Classify("czynsz najem za maj", "", rules)
	if got.Status != core.StatusProcessed {
		t.Fatalf("status = %s, want %s", got.Status, core.StatusProcessed)
	}
	if got.Category != core.CategoryRent {
		t.Errorf("category = %s, want %s", got.Category, core.CategoryRent)
	}
	if !strings.Contains(got.Trace, "'czynsz'") || !strings.Contains(got.Trace, "'najem'") {
		t.Errorf("trace should name both rules, got %q", got.Trace)
	}
}

func TestClassifyFallbackIgnoresContractor(t *testing.T) {
	// Built-in keywords only look at the description.
	got := Classify("przelew", "PZU SA", nil)
	if got.Status != core.StatusUnprocessed {
		t.Fatalf("status = %s, want %s", got.Status, core.StatusUnprocessed)
	}

	got = Classify("składka pzu", "", nil)
	if got.Category != core.CategoryInsurance {
		t.Fatalf("category = %s, want %s", got.Category, core.CategoryInsurance)
	}
}

func TestWholePhrasePattern(t *testing.T) {
	tests := []struct {
		phrase string
		text   string
		want   bool
	}{
		{"lok", "przelew lok 5", true},
		{"lok", "przelew blok 5", false},
		{"lok", "lok. 5", true},
		{"lok", "(lok)", true},
		{"czynsz", "zapłata czynszu", false},
		{"śmieci", "wywóz śmieci", true},
	}

	for _, tt := range tests {
		if got := wholePhrasePattern(tt.phrase).MatchString(tt.text); got != tt.want {
			t.Errorf("wholePhrasePattern(%q).MatchString(%q) = %v, want %v", tt.phrase, tt.text, got, tt.want)
		}
	}
}
