package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusLabel_UnknownStatusFallsBack(t *testing.T) {
	unknown := AppointmentStatus("definitely_not_a_status")

	assert.NotEmpty(t, unknown.Label())
	assert.Equal(t, "Unknown status", unknown.Label())
	assert.Equal(t, SeverityDefault, unknown.Severity())
	assert.False(t, unknown.CanAdvance())
}

func TestStatusLabel_KnownStatuses(t *testing.T) {
	known := []AppointmentStatus{
		StatusPending, StatusConfirmed, StatusCheckedIn, StatusOnHold,
		StatusInProgress, StatusWaitingForResults, StatusInTreatment,
		StatusCompleted, StatusNoShow, StatusCancelled,
	}

	for _, status := range known {
		assert.NotEmpty(t, status.Label(), "status %s must have a label", status)
		assert.NotEqual(t, "Unknown status", status.Label())
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from    AppointmentStatus
		to      AppointmentStatus
		allowed bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusNoShow, true},
		{StatusPending, StatusInProgress, false},
		{StatusConfirmed, StatusCheckedIn, true},
		{StatusCheckedIn, StatusInProgress, true},
		{StatusCheckedIn, StatusOnHold, true},
		{StatusOnHold, StatusInProgress, true},
		{StatusInProgress, StatusWaitingForResults, true},
		{StatusInProgress, StatusInTreatment, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusWaitingForResults, StatusInProgress, true},
		{StatusInTreatment, StatusCompleted, true},
		// Terminal states never transition
		{StatusCompleted, StatusInProgress, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusNoShow, StatusPending, false},
		// Escapes only from the states that allow them
		{StatusInProgress, StatusNoShow, false},
		{StatusInTreatment, StatusCancelled, false},
		// Unknown statuses can go nowhere
		{AppointmentStatus("bogus"), StatusConfirmed, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusNoShow.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusOnHold.IsTerminal())
	assert.False(t, StatusWaitingForResults.IsTerminal())
}
