// Package usage reports embedding token spend from the budget tracker,
// aggregated per budget window.
package usage

import (
	"context"
	"time"
)

// Window is the budget aggregation window.
type Window string

const (
	// WindowDay aggregates since UTC midnight.
	WindowDay Window = "day"
	// WindowMonth aggregates since the first of the month, UTC.
	WindowMonth Window = "month"
)

// Report is the embedding token spend for one window. Limit 0 means no
// limit is configured; Remaining is -1 in that case.
type Report struct {
	Window    Window    `json:"window"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Limit     int64     `json:"limit"`
	Used      int64     `json:"used"`
	Remaining int64     `json:"remaining"`
	Exhausted bool      `json:"exhausted"`
}

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time // переопределяется в тестах
}

// New creates a Service. br can be nil (no budget configured); reports
// then show zero spend and no limit.
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// GetReport builds the spend report for the given window. Unknown
// windows fall back to the daily one.
func (s *Service) GetReport(_ context.Context, w Window) Report {
	now := s.now().UTC()

	var start, end time.Time
	limit, used, remaining := int64(0), int64(0), int64(-1)

	switch w {
	case WindowMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
		if s.br != nil {
			limit = s.br.MonthlyLimit()
			used = s.br.MonthlyUsed()
			remaining = s.br.RemainingMonthly()
		}
	default:
		w = WindowDay
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
		if s.br != nil {
			limit = s.br.DailyLimit()
			used = s.br.DailyUsed()
			remaining = s.br.RemainingDaily()
		}
	}

	return Report{
		Window:    w,
		Start:     start,
		End:       end,
		Limit:     limit,
		Used:      used,
		Remaining: remaining,
		Exhausted: limit > 0 && remaining == 0,
	}
}
