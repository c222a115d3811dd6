package domain

import (
	"slices"
	"strings"
	"time"
)

// EarliestDate is the first day any vaccination program reported.
var EarliestDate = time.Date(2020, time.December, 1, 0, 0, 0, 0, time.UTC)

// Vaccines is the brand vocabulary accepted in the vaccine column, in
// canonical output order.
var Vaccines = []string{
	"CanSino",
	"Covaxin",
	"EpiVacCorona",
	"Johnson&Johnson",
	"Moderna",
	"Oxford/AstraZeneca",
	"Pfizer/BioNTech",
	"Sinopharm/Beijing",
	"Sinopharm/Wuhan",
	"Sinovac",
	"Sputnik V",
}

// IsKnownVaccine reports whether name belongs to the vocabulary.
func IsKnownVaccine(name string) bool {
	return slices.Contains(Vaccines, name)
}

// SplitVaccines splits a comma-joined vaccine field into trimmed, non-empty tokens.
func SplitVaccines(field string) []string {
	var out []string
	for _, tok := range strings.Split(field, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// JoinVaccines returns the distinct names sorted in vocabulary order (unknown
// names last, alphabetically) and joined with ", ".
func JoinVaccines(names []string) string {
	seen := make(map[string]bool, len(names))
	uniq := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		uniq = append(uniq, n)
	}
	slices.SortFunc(uniq, func(a, b string) int {
		ia, ib := slices.Index(Vaccines, a), slices.Index(Vaccines, b)
		switch {
		case ia >= 0 && ib >= 0:
			return ia - ib
		case ia >= 0:
			return -1
		case ib >= 0:
			return 1
		default:
			return strings.Compare(a, b)
		}
	})
	return strings.Join(uniq, ", ")
}
