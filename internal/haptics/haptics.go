// Package haptics maps alert priorities to wearable actuator commands.
package haptics

import (
	"time"

	"go.uber.org/zap"

	"github.com/sightline-ai/percept/internal/domain"
)

// CommandFor maps an alert priority to an actuator command. Critical
// alerts hold a continuous strong vibration, high alerts pulse fast,
// everything else pulses gently.
func CommandFor(p domain.Priority) domain.FeedbackCommand {
	switch p {
	case domain.PriorityCritical:
		return domain.FeedbackCommand{Kind: domain.CommandContinuous, Intensity: 1.0}
	case domain.PriorityHigh:
		return domain.FeedbackCommand{Kind: domain.CommandPulse, Intensity: 0.7, Period: 150 * time.Millisecond}
	default:
		return domain.FeedbackCommand{Kind: domain.CommandPulse, Intensity: 0.4, Period: 400 * time.Millisecond}
	}
}

// Apply drives an actuator with the given command.
func Apply(a domain.Actuator, cmd domain.FeedbackCommand) {
	switch cmd.Kind {
	case domain.CommandContinuous:
		a.Continuous(cmd.Intensity)
	case domain.CommandPulse:
		a.Pulse(cmd.Intensity, cmd.Period)
	case domain.CommandStop:
		a.Stop()
	}
}

// Noop discards all commands.
type Noop struct{}

func (Noop) Continuous(float64)           {}
func (Noop) Pulse(float64, time.Duration) {}
func (Noop) Stop()                        {}

// Console logs actuator commands instead of driving hardware, for
// development without a wearable attached.
type Console struct {
	log *zap.Logger
}

// NewConsole creates a logging actuator.
func NewConsole(log *zap.Logger) *Console { return &Console{log: log} }

func (c *Console) Continuous(intensity float64) {
	c.log.Info("haptic continuous", zap.Float64("intensity", intensity))
}

func (c *Console) Pulse(intensity float64, period time.Duration) {
	c.log.Info("haptic pulse",
		zap.Float64("intensity", intensity),
		zap.Duration("period", period))
}

func (c *Console) Stop() {
	c.log.Info("haptic stop")
}
