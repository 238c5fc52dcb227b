package services

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"kamienica/internal/core"
)

// Classification is the outcome of categorizing one transaction. Trace
// records which rules fired; it is meant for audit, not control flow.
type Classification struct {
	Category core.Category
	Status   core.TransactionStatus
	Trace    string
}

// fallbackRules is the built-in keyword map consulted when no stored
// rule matches. Order matters: the first hit wins. Unlike stored rules
// these match as plain substrings of the description only.
var fallbackRules = []struct {
	Keyword  string
	Category core.Category
}{
	{"opłata za prowadzenie rachunku", core.CategoryBankFee},
	{"opłata mies. karta", core.CategoryBankFee},
	{"opłata za wywóz śmieci", core.CategoryWaste},
	{"pzu", core.CategoryInsurance},
	{"aqua", core.CategoryWater},
	{"czynsz", core.CategoryRent},
	{"tauron", core.CategoryStairwell},
	{"podatek", core.CategoryTax},
	{"pit", core.CategoryTax},
}

// Classify assigns a category to a transaction from its description and
// counterparty. Each rule's keyword field is a comma-separated list of
// phrases; a rule matches when any phrase occurs as a whole phrase in
// the lowercased search text. One distinct matched category processes
// the transaction, several conflict, none falls back to the built-in
// keyword map.
func Classify(description, contractor string, rules []core.CategorizationRule) Classification {
	searchText := strings.ToLower(description + " " + contractor)

	var matchedRules []string
	distinct := make(map[core.Category]struct{})
	var first core.Category

	for _, rule := range rules {
		for _, phrase := range splitPhrases(rule.Keywords) {
			if wholePhrasePattern(phrase).MatchString(searchText) {
				if _, seen := distinct[rule.Category]; !seen && len(distinct) == 0 {
					first = rule.Category
				}
				distinct[rule.Category] = struct{}{}
				matchedRules = append(matchedRules, fmt.Sprintf("'%s'", rule.Keywords))
				break // one phrase hit is enough for this rule
			}
		}
	}

	switch {
	case len(distinct) == 1:
		return Classification{
			Category: first,
			Status:   core.StatusProcessed,
			Trace:    fmt.Sprintf("Dopasowano regułę: %s.", strings.Join(matchedRules, ", ")),
		}
	case len(distinct) > 1:
		return Classification{
			Status: core.StatusConflict,
			Trace:  fmt.Sprintf("Konflikt, dopasowano reguły: %s.", strings.Join(matchedRules, ", ")),
		}
	}

	descriptionLower := strings.ToLower(description)
	for _, fb := range fallbackRules {
		if strings.Contains(descriptionLower, fb.Keyword) {
			return Classification{
				Category: fb.Category,
				Status:   core.StatusProcessed,
				Trace:    fmt.Sprintf("Dopasowano regułę wbudowaną dla '%s'.", fb.Keyword),
			}
		}
	}

	return Classification{
		Status: core.StatusUnprocessed,
		Trace:  "Nie znaleziono pasującej reguły.",
	}
}

func splitPhrases(keywords string) []string {
	var phrases []string
	for _, p := range strings.Split(keywords, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	return phrases
}

var (
	phraseCacheMu sync.RWMutex
	phraseCache   = make(map[string]*regexp.Regexp)
)

// wholePhrasePattern matches the phrase bounded by non-word characters,
// so "lok" never matches inside "blok". RE2 has no lookarounds; bounding
// character classes give the same acceptance since only existence of a
// match is tested.
func wholePhrasePattern(phrase string) *regexp.Regexp {
	phraseCacheMu.RLock()
	re, ok := phraseCache[phrase]
	phraseCacheMu.RUnlock()
	if ok {
		return re
	}

	re = regexp.MustCompile(`(^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(phrase) + `($|[^\p{L}\p{N}_])`)

	phraseCacheMu.Lock()
	phraseCache[phrase] = re
	phraseCacheMu.Unlock()
	return re
}
