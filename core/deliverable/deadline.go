package deliverable

import "time"

// IsLate reports whether a deliverable is late.
// Only TO_SUBMIT & SUBMITTED deliverables can be late: the submission date (or now, when not yet
// submitted) must be strictly after the due date.
func IsLate(due time.Time, submittedAt *time.Time, status Status, now time.Time) bool {
	if status != StatusToSubmit && status != StatusSubmitted {
		return false
	}
	at := now
	if submittedAt != nil {
		at = *submittedAt
	}
	return at.After(due)
}

// DeadlinePolicy computes the values derived from the deadline against an injected clock.
type DeadlinePolicy struct {
	Now func() time.Time
}

func NewDeadlinePolicy(now func() time.Time) DeadlinePolicy {
	if now == nil {
		now = time.Now
	}
	return DeadlinePolicy{Now: now}
}

func (p DeadlinePolicy) IsLate(d Deliverable) bool {
	return IsLate(d.DueAt, d.SubmittedAt, d.Status, p.Now())
}

// View builds the read model of d; current is the newest EvaluationRecord, if any.
func (p DeadlinePolicy) View(d Deliverable, current *EvaluationRecord) View {
	late := p.IsLate(d)
	display := d.Status.String()
	if late {
		display = DisplayLate
	}
	return View{
		Deliverable:       d,
		Late:              late,
		DisplayStatus:     display,
		Actions:           d.Status.AvailableEvents(),
		CurrentEvaluation: current,
	}
}
