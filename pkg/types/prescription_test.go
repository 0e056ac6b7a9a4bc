package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrescriptionDerivedQuantities(t *testing.T) {
	item := PrescriptionItem{
		Medicine:     "Amoxicillin",
		Dosage:       "2 viên",
		Frequency:    "3 lần/ngày",
		DurationDays: 5,
	}

	assert.Equal(t, 6, item.QuantityPerDay())
	assert.Equal(t, 30, item.TotalQuantity())
}

func TestPrescriptionQuantity_NoNumberInText(t *testing.T) {
	item := PrescriptionItem{
		Medicine:     "Chlorhexidine rinse",
		Dosage:       "một nắp",
		Frequency:    "sau bữa ăn",
		DurationDays: 7,
	}

	assert.Equal(t, 0, item.QuantityPerDay())
	assert.Equal(t, 0, item.TotalQuantity())
}

func TestPrescriptionQuantity_ZeroDurationDefaultsToOneDay(t *testing.T) {
	item := PrescriptionItem{
		Medicine:  "Ibuprofen",
		Dosage:    "1 viên",
		Frequency: "2 lần/ngày",
	}

	assert.Equal(t, 2, item.TotalQuantity())
}

func TestPrescriptionValidate(t *testing.T) {
	item := PrescriptionItem{Medicine: "Amoxicillin"}

	err := item.Validate()
	require.Error(t, err)

	clinicErr, ok := err.(*ClinicError)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"dosage", "frequency"}, clinicErr.MissingFields())

	item.Dosage = "2 viên"
	item.Frequency = "3 lần/ngày"
	assert.NoError(t, item.Validate())
}

func TestDiscountAmountFor(t *testing.T) {
	percent := &DiscountCode{Code: "SPRING10", Kind: DiscountPercent, Value: 10}
	assert.Equal(t, int64(50000), percent.AmountFor(500000))

	fixed := &DiscountCode{Code: "FLAT50K", Kind: DiscountFixed, Value: 50000}
	assert.Equal(t, int64(50000), fixed.AmountFor(500000))

	// Capped at the total so the payable amount never goes negative
	assert.Equal(t, int64(30000), fixed.AmountFor(30000))
}
