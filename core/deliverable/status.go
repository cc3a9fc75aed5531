package deliverable

// transitions is the whole state machine; any (Status, Event) pair missing here is invalid.
var transitions = map[Status]map[Event]Status{
	StatusToSubmit: {
		EventSubmit: StatusSubmitted,
	},
	StatusSubmitted: {
		EventBeginCorrection: StatusInCorrection,
		EventEvaluate:        StatusGraded,
		EventReject:          StatusRejected,
	},
	StatusInCorrection: {
		EventEvaluate: StatusGraded,
		EventReject:   StatusRejected,
	},
}

// Next returns the status reached by applying ev, or an *InvalidTransitionError.
func (s Status) Next(ev Event) (Status, error) {
	if to, ok := transitions[s][ev]; ok {
		return to, nil
	}
	return s, &InvalidTransitionError{From: s, Event: ev}
}

func (s Status) Allows(ev Event) bool {
	_, ok := transitions[s][ev]
	return ok
}

// AvailableEvents lists the events accepted in s, in a stable order.
func (s Status) AvailableEvents() []Event {
	events := make([]Event, 0, len(transitions[s]))
	for _, ev := range Events {
		if s.Allows(ev) {
			events = append(events, ev)
		}
	}
	return events
}

// Notification returns the NotificationEvent raised by a successful ev, if any.
func (ev Event) Notification() (NotificationEvent, bool) {
	switch ev {
	case EventSubmit:
		return NotifySubmitted, true
	case EventEvaluate:
		return NotifyGraded, true
	case EventReject:
		return NotifyRejected, true
	default:
		return "", false
	}
}
