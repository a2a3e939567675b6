package event

// Type names the well-known event types fired by requests, transactions,
// and database connections.
type Type string

const (
	TypeSuccess       Type = "success"
	TypeError         Type = "error"
	TypeComplete      Type = "complete"
	TypeAbort         Type = "abort"
	TypeUpgradeNeeded Type = "upgradeneeded"
	TypeVersionChange Type = "versionchange"
	TypeBlocked       Type = "blocked"
)

// Phase identifies which stage of propagation a listener is running in.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseCapture
	PhaseTarget
	PhaseBubble
)

// Event is the value passed to listeners during Dispatch. Bubbles and
// Cancelable are fixed at construction; Target, CurrentTarget, and Phase
// are set by Dispatch as propagation proceeds.
type Event struct {
	Type       Type
	Bubbles    bool
	Cancelable bool

	Target        Target
	CurrentTarget Target
	Phase         Phase

	// Detail carries an event-specific payload, mirroring the host
	// model's CustomEvent.detail — used for versionchange/upgradeneeded
	// events to carry (oldVersion, newVersion).
	Detail any

	defaultPrevented bool
	stopped          bool
}

// NewEvent constructs an Event of the given type and propagation flags.
func NewEvent(typ Type, bubbles, cancelable bool) *Event {
	return &Event{Type: typ, Bubbles: bubbles, Cancelable: cancelable}
}

// PreventDefault marks the event's default action as suppressed. Has no
// effect if Cancelable is false.
func (e *Event) PreventDefault() {
	if e.Cancelable {
		e.defaultPrevented = true
	}
}

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation halts the remaining capture/bubble phases once the
// current listener returns; listeners already scheduled for the current
// target still all run.
func (e *Event) StopPropagation() { e.stopped = true }
