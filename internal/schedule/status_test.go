package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fieldops-backend/internal/models"
	"fieldops-backend/internal/timeutil"
)

func TestClassify_Boundaries(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, timeutil.BRT)

	assert.Equal(t, Overdue, Classify(today.AddDate(0, 0, -1), today))
	assert.Equal(t, DueToday, Classify(today, today))
	assert.Equal(t, Scheduled, Classify(today.AddDate(0, 0, 1), today))
}

func TestClassify_NormalizesTimeOfDay(t *testing.T) {
	// A delivery late in the day must still count as today, and a "now" with
	// a time component must not push yesterday's delivery into today
	delivery := time.Date(2026, 3, 10, 23, 30, 0, 0, timeutil.BRT)
	now := time.Date(2026, 3, 10, 6, 15, 42, 0, timeutil.BRT)
	assert.Equal(t, DueToday, Classify(delivery, now))

	yesterdayEvening := time.Date(2026, 3, 9, 23, 59, 59, 0, timeutil.BRT)
	assert.Equal(t, Overdue, Classify(yesterdayEvening, now))
}

func TestClassify_Total(t *testing.T) {
	today := time.Date(2026, 3, 10, 12, 0, 0, 0, timeutil.BRT)

	// Every date lands in exactly one of the three classes
	for offset := -400; offset <= 400; offset++ {
		status := Classify(today.AddDate(0, 0, offset), today)
		switch {
		case offset < 0:
			assert.Equal(t, Overdue, status, "offset %d", offset)
		case offset == 0:
			assert.Equal(t, DueToday, status)
		default:
			assert.Equal(t, Scheduled, status, "offset %d", offset)
		}
	}
}

func TestClassify_StableWithinDay(t *testing.T) {
	delivery := time.Date(2026, 3, 12, 0, 0, 0, 0, timeutil.BRT)
	morning := time.Date(2026, 3, 10, 7, 0, 0, 0, timeutil.BRT)
	evening := time.Date(2026, 3, 10, 22, 45, 0, 0, timeutil.BRT)

	assert.Equal(t, Classify(delivery, morning), Classify(delivery, evening))
}

func TestTemporalStatus_String(t *testing.T) {
	assert.Equal(t, "atrasado", Overdue.String())
	assert.Equal(t, "hoje", DueToday.String())
	assert.Equal(t, "agendado", Scheduled.String())
}

func TestStateOf(t *testing.T) {
	op := &models.Responsible{Nome: "Ana", UserID: "7", Timestamp: 1}
	load := &models.Responsible{Nome: "Maria", UserID: models.ManualUserID, Timestamp: 2}

	tests := []struct {
		name  string
		entry models.ScheduleEntry
		want  AssignmentState
	}{
		{"no responsibles", models.ScheduleEntry{}, Unassigned},
		{"operation only", models.ScheduleEntry{ResponsavelOperacao: op}, OperationClaimed},
		{"both set", models.ScheduleEntry{ResponsavelOperacao: op, ResponsavelCarregamento: load}, FullyStaffed},
		// Loading without operation violates the delegation rule; derive the
		// conservative state so no completion is possible
		{"loading only", models.ScheduleEntry{ResponsavelCarregamento: load}, Unassigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateOf(&tt.entry))
		})
	}
}
