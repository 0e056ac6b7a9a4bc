package types

import (
	"regexp"
	"strconv"
)

// PrescriptionItem is one prescription line captured at stage 4 of the
// visit workflow. Dosage and frequency are free text; the numeric factors
// used for quantity derivation are extracted from them. This mirrors the
// observed clinic behavior; a structured dosage format would be safer but
// changes visible behavior, so the free-text contract is kept.
type PrescriptionItem struct {
	Medicine     string `json:"medicine"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	DurationDays int    `json:"duration_days"`
	Instructions string `json:"instructions"`
}

var leadingNumber = regexp.MustCompile(`\d+`)

// extractNumber pulls the first integer out of a free-text dosage or
// frequency string, e.g. "2 viên" -> 2, "3 lần/ngày" -> 3. Returns 0 when
// no number is present.
func extractNumber(s string) int {
	match := leadingNumber.FindString(s)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// QuantityPerDay derives units per day as dosage factor times frequency
// factor. Not stored; recomputed on demand.
func (p PrescriptionItem) QuantityPerDay() int {
	return extractNumber(p.Dosage) * extractNumber(p.Frequency)
}

// TotalQuantity derives the dispensed total as quantity per day times the
// duration in days. A duration of zero is treated as one day.
func (p PrescriptionItem) TotalQuantity() int {
	days := p.DurationDays
	if days <= 0 {
		days = 1
	}
	return p.QuantityPerDay() * days
}

// Validate checks the locally-required prescription fields
func (p PrescriptionItem) Validate() error {
	var missing []string
	if p.Medicine == "" {
		missing = append(missing, "medicine")
	}
	if p.Dosage == "" {
		missing = append(missing, "dosage")
	}
	if p.Frequency == "" {
		missing = append(missing, "frequency")
	}
	if len(missing) > 0 {
		return NewMissingFieldsError("PRESCRIPTION_INCOMPLETE", missing)
	}
	return nil
}
