package engine

// Phase is the completion state of an exercise session.
type Phase int

const (
	// PhaseInProgress means items remain in the pending pool.
	PhaseInProgress Phase = iota
	// PhaseReadyToValidate means every item is placed; slots are locked and
	// validation is available.
	PhaseReadyToValidate
	// PhaseValidated is terminal for the session.
	PhaseValidated
)

func (p Phase) String() string {
	switch p {
	case PhaseInProgress:
		return "in_progress"
	case PhaseReadyToValidate:
		return "ready_to_validate"
	case PhaseValidated:
		return "validated"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Locked reports whether placements may no longer change.
func (p Phase) Locked() bool {
	return p != PhaseInProgress
}
