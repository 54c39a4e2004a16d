package service

import (
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestPolicy_Admit(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name       string
		absences   int
		quota      int
		registered int
		want       admission
	}{
		{"free seat", 0, 10, 9, admitted},
		{"unlimited", 1, 0, 500, admitted},
		{"full", 0, 10, 10, waitlistedFull},
		{"over quota after manual override", 0, 10, 12, waitlistedFull},
		{"sanctioned with free seats", 2, 10, 0, waitlistedSanction},
		{"sanctioned on unlimited event", 5, 0, 0, waitlistedSanction},
		{"one absence is not a sanction", 1, 10, 0, admitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.admit(tt.absences, tt.quota, tt.registered)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdmission_StatusAndMessage(t *testing.T) {
	assert.Equal(t, model.StatusRegistered, admitted.status())
	assert.Equal(t, model.StatusWaitingList, waitlistedFull.status())
	assert.Equal(t, model.StatusWaitingList, waitlistedSanction.status())

	assert.NotEqual(t, waitlistedFull.message(0), waitlistedSanction.message(2))
	assert.Contains(t, waitlistedSanction.message(3), "3 consecutive absences")
}

func TestPolicy_CanRequestCancellation(t *testing.T) {
	p := DefaultPolicy()
	start := time.Date(2026, 8, 17, 8, 0, 0, 0, time.UTC)

	assert.True(t, p.CanRequestCancellation(start, start.Add(-72*time.Hour)))
	assert.True(t, p.CanRequestCancellation(start, start.Add(-48*time.Hour)))
	assert.False(t, p.CanRequestCancellation(start, start.Add(-47*time.Hour)))
	assert.False(t, p.CanRequestCancellation(start, start.Add(-24*time.Hour)))
	assert.Equal(t, start.Add(-48*time.Hour), p.CancellationDeadline(start))
}
