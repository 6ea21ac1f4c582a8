// Package timesheet computes worked duration, date attribution, and overtime
// splits for shifts. All functions are pure; weekly aggregation is the
// caller's responsibility.
package timesheet

import (
	"errors"
	"time"
)

// ErrInvalidRange is returned when clock-in is after clock-out.
var ErrInvalidRange = errors.New("clock-in is after clock-out")

// WeeklyOvertimeThresholdHours is the rolling-week boundary between regular
// and overtime hours.
const WeeklyOvertimeThresholdHours = 40.0

// Result holds the computed duration for one shift.
type Result struct {
	TotalMinutes int
	// NetMinutes is TotalMinutes minus the break, clamped at 0.
	NetMinutes int
	// CrossedMidnight is true when clock-in and clock-out fall on different
	// calendar dates in the supplied location.
	CrossedMidnight bool
	// AttributedDate is the calendar date the shift's hours are credited to:
	// always the clock-in day, regardless of midnight crossing.
	AttributedDate time.Time
}

// Calculate computes the worked duration between clockIn and clockOut with
// the given break, resolving calendar dates in loc. loc nil means UTC.
func Calculate(clockIn, clockOut time.Time, breakMinutes int, loc *time.Location) (Result, error) {
	if clockIn.After(clockOut) {
		return Result{}, ErrInvalidRange
	}
	if loc == nil {
		loc = time.UTC
	}
	total := int(clockOut.Sub(clockIn).Minutes())
	net := total - breakMinutes
	if net < 0 {
		net = 0
	}
	inDate := DateOf(clockIn, loc)
	outDate := DateOf(clockOut, loc)
	return Result{
		TotalMinutes:    total,
		NetMinutes:      net,
		CrossedMidnight: !inDate.Equal(outDate),
		AttributedDate:  inDate,
	}, nil
}

// DateOf returns t's calendar date in loc, at midnight in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// OvertimeSplit divides a shift's hours into regular and overtime given the
// hours already worked in the caller's rolling weekly window. Regular hours
// fill the window up to the 40-hour threshold; the remainder is overtime.
func OvertimeSplit(shiftHours, priorWeekHours float64) (regular, overtime float64) {
	if shiftHours <= 0 {
		return 0, 0
	}
	remaining := WeeklyOvertimeThresholdHours - priorWeekHours
	if remaining <= 0 {
		return 0, shiftHours
	}
	if shiftHours <= remaining {
		return shiftHours, 0
	}
	return remaining, shiftHours - remaining
}

// BreakPolicy is an organization's unrecorded-break deduction policy.
type BreakPolicy struct {
	// AutoBreakThresholdMinutes is the shift length at which an unrecorded
	// break is deducted. Default 6 hours.
	AutoBreakThresholdMinutes int
	// AutoBreakMinutes is the break deducted when the threshold is met.
	// Default 30.
	AutoBreakMinutes int
}

// DefaultBreakPolicy returns the default auto-break policy.
func DefaultBreakPolicy() BreakPolicy {
	return BreakPolicy{AutoBreakThresholdMinutes: 6 * 60, AutoBreakMinutes: 30}
}

// AutoBreak returns the break minutes to apply for a shift of totalMinutes
// with recordedBreak already logged. The deduction applies only when no break
// was recorded and the shift meets the threshold; Calculate itself only ever
// applies whatever break it is given.
func AutoBreak(totalMinutes, recordedBreak int, p BreakPolicy) int {
	if recordedBreak > 0 {
		return recordedBreak
	}
	if p.AutoBreakThresholdMinutes > 0 && totalMinutes >= p.AutoBreakThresholdMinutes {
		return p.AutoBreakMinutes
	}
	return 0
}
