package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeSaved, "saved"},
		{OutcomeRejected, "rejected"},
		{OutcomeFailed, "failed"},
		{Outcome(0), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.outcome.String())
	}
}

func TestImageStatus_String(t *testing.T) {
	tests := []struct {
		status ImageStatus
		want   string
	}{
		{ImageStatusUnset, "unset"},
		{ImageStatusSuccess, "success"},
		{ImageStatusRejected, "rejected"},
		{ImageStatusFailure, "failure"},
		{ImageStatusNotFound, "not_found"},
		{ImageStatusDBError, "db_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestImageStatus_IsValid(t *testing.T) {
	tests := []struct {
		status ImageStatus
		want   bool
	}{
		{ImageStatusSuccess, true},
		{ImageStatusRejected, true},
		{ImageStatusFailure, true},
		{ImageStatusUnset, false},
		{ImageStatusNotFound, false},
		{ImageStatusDBError, false},
		{ImageStatus("arbitrary"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsValid(), "ImageStatus(%q).IsValid()", string(tt.status))
	}
}

func TestStatusForOutcome(t *testing.T) {
	assert.Equal(t, ImageStatusSuccess, StatusForOutcome(OutcomeSaved))
	assert.Equal(t, ImageStatusRejected, StatusForOutcome(OutcomeRejected))
	assert.Equal(t, ImageStatusFailure, StatusForOutcome(OutcomeFailed))
	assert.Equal(t, ImageStatusUnset, StatusForOutcome(Outcome(42)))
}
