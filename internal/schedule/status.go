package schedule

import (
	"time"

	"fieldops-backend/internal/models"
	"fieldops-backend/internal/timeutil"
)

// TemporalStatus classifies a delivery date against the current date.
type TemporalStatus int

const (
	Overdue  TemporalStatus = iota // atrasado
	DueToday                       // hoje
	Scheduled                      // agendado
)

func (s TemporalStatus) String() string {
	switch s {
	case Overdue:
		return "atrasado"
	case DueToday:
		return "hoje"
	default:
		return "agendado"
	}
}

// Classify compares deliveryDate against today, day-granular. Both sides are
// normalized to midnight BRT first so partial-day timestamps cannot shift the
// comparison by a day.
func Classify(deliveryDate, today time.Time) TemporalStatus {
	d := timeutil.StartOfDay(deliveryDate)
	t := timeutil.StartOfDay(today)

	switch {
	case d.Before(t):
		return Overdue
	case d.Equal(t):
		return DueToday
	default:
		return Scheduled
	}
}

// AssignmentState is the responsibility state of a schedule entry, derived
// from which responsibles are set. Completed entries are not a state here:
// completion removes the entry from the active collection entirely.
type AssignmentState int

const (
	Unassigned      AssignmentState = iota // no responsibles
	OperationClaimed                       // operation responsible only
	FullyStaffed                           // operation + loading responsibles
)

func (s AssignmentState) String() string {
	switch s {
	case Unassigned:
		return "unassigned"
	case OperationClaimed:
		return "operation_claimed"
	default:
		return "fully_staffed"
	}
}

// StateOf derives the assignment state of an entry. Computed once at decode
// time so transition checks are exhaustive switches, not scattered nil checks.
func StateOf(e *models.ScheduleEntry) AssignmentState {
	switch {
	case e.ResponsavelOperacao == nil:
		return Unassigned
	case e.ResponsavelCarregamento == nil:
		return OperationClaimed
	default:
		return FullyStaffed
	}
}
