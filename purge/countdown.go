// Package purge tracks the countdown between archival lock and the
// backend-owned purge of case content. Nothing here deletes anything.
package purge

import (
	"fmt"
	"time"

	"github.com/thegitsss/lets-para3-sub002/cases"
)

type Phase string

const (
	PhaseActive   Phase = "active"
	PhaseReadOnly Phase = "read_only"
	PhasePurged   Phase = "purged"
)

// PhaseOf reports where c sits in the archival state machine at now.
func PhaseOf(c *cases.Case, now time.Time) Phase {
	if c == nil || !c.ReadOnly {
		return PhaseActive
	}
	if c.PurgeScheduledFor != nil && !now.Before(*c.PurgeScheduledFor) {
		return PhasePurged
	}
	return PhaseReadOnly
}

// Remaining returns the time left until purgeAt, never negative.
func Remaining(purgeAt, now time.Time) time.Duration {
	d := purgeAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Format renders d as HH:MM, flooring to the minute.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Countdown renders the time left until purgeAt.
func Countdown(purgeAt, now time.Time) string {
	return Format(Remaining(purgeAt, now))
}
