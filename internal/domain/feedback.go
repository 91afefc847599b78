package domain

import "time"

// CommandKind is the shape of a haptic feedback command.
type CommandKind string

const (
	CommandContinuous CommandKind = "continuous"
	CommandPulse      CommandKind = "pulse"
	CommandStop       CommandKind = "stop"
)

// FeedbackCommand is one haptic actuation decision. The core decides
// which command; an Actuator executes it.
type FeedbackCommand struct {
	Kind      CommandKind
	Intensity float64       // 0..1, ignored for stop
	Period    time.Duration // pulse period, zero for continuous/stop
}

// Actuator drives the haptic hardware, or logs/no-ops in its absence.
// Implementations are selected at construction time, never via runtime
// feature detection inside business logic.
type Actuator interface {
	Continuous(intensity float64)
	Pulse(intensity float64, period time.Duration)
	Stop()
}
