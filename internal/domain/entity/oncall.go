package entity

import (
	"sort"
	"time"
)

// OnCall is one person currently on call for a schedule.
type OnCall struct {
	UserName  string
	UserEmail string

	ScheduleID   string
	ScheduleName string

	EscalationLevel int

	// End is zero for permanent assignments.
	Start time.Time
	End   time.Time
}

// SortOnCalls orders on-calls by schedule name, then escalation level.
func SortOnCalls(oncalls []OnCall) {
	sort.SliceStable(oncalls, func(i, j int) bool {
		if oncalls[i].ScheduleName != oncalls[j].ScheduleName {
			return oncalls[i].ScheduleName < oncalls[j].ScheduleName
		}
		return oncalls[i].EscalationLevel < oncalls[j].EscalationLevel
	})
}
