package changerequest

import (
	"math"
	"time"
)

// Severity classifies how heavy a change is. Ordering is meaningful: a
// larger impact can only raise the classification, never lower it.
type Severity string

const (
	SeverityMinor    Severity = "MINOR"
	SeverityModerate Severity = "MODERATE"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
)

// Thresholds are the tunable impact boundaries, sourced from configuration.
type Thresholds struct {
	// BudgetAbsolute is the delta, in currency units, above which a budget
	// change is considered heavy on its own.
	BudgetAbsolute float64
	// BudgetPercent is the relative budget delta that marks a heavy change.
	BudgetPercent float64
	// ScheduleDays is the end-date shift that marks a heavy change.
	ScheduleDays int
	// CumulativeEscalationPercent caps total budget growth across all
	// implemented changes; breaching it escalates straight to CRITICAL.
	CumulativeEscalationPercent float64
}

// Impact is the assessed footprint of one change request against the live
// project values.
type Impact struct {
	BudgetBefore float64
	BudgetAfter  float64
	// CumulativeBudgetPercent is the total growth over the originally
	// approved budget once this change lands, in percent.
	CumulativeBudgetPercent float64
	ScheduleShiftDays       int
	ChangedFields           int
}

// AssessSeverity maps an impact to a severity class. The mapping is
// monotonic in every Impact dimension.
func AssessSeverity(in Impact, th Thresholds) Severity {
	if th.CumulativeEscalationPercent > 0 && in.CumulativeBudgetPercent >= th.CumulativeEscalationPercent {
		return SeverityCritical
	}

	score := 0
	budgetDelta := math.Abs(in.BudgetAfter - in.BudgetBefore)
	if th.BudgetAbsolute > 0 && budgetDelta >= th.BudgetAbsolute {
		score += 2
	}
	if th.BudgetPercent > 0 && in.BudgetBefore > 0 {
		pct := budgetDelta / in.BudgetBefore * 100
		if pct >= th.BudgetPercent {
			score += 2
		}
	}
	if th.ScheduleDays > 0 && abs(in.ScheduleShiftDays) >= th.ScheduleDays {
		score += 2
	}
	if in.ChangedFields >= 3 {
		score++
	}

	switch {
	case score >= 5:
		return SeverityCritical
	case score >= 3:
		return SeverityMajor
	case score >= 1:
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

// ScheduleShiftDays computes the day shift between two optional end dates.
// A date appearing or disappearing counts as zero shift; the field change
// itself is still reflected in ChangedFields.
func ScheduleShiftDays(before, after *time.Time) int {
	if before == nil || after == nil {
		return 0
	}
	return int(after.Sub(*before).Hours() / 24)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
