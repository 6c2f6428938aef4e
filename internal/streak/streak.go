// Package streak tracks consecutive days of learning activity.
package streak

import (
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// Milestones are the streak lengths that earn an achievement
var Milestones = []int{7, 30}

// Result reports what one call to RecordActivity changed
type Result struct {
	// Advanced is false when today was already counted
	Advanced bool
	// Crossed lists the milestones reached by this call
	Crossed []int
}

// RecordActivity counts today's activity and returns the updated state.
// Calendar days are compared in today's location.
func RecordActivity(state domain.StreakState, today time.Time) (domain.StreakState, Result) {
	day := truncateDay(today)
	var res Result

	if state.LastActivity != nil {
		last := truncateDay(state.LastActivity.In(today.Location()))
		switch {
		case last.Equal(day):
			return state, res
		case last.AddDate(0, 0, 1).Equal(day):
			state.Current++
		default:
			state.Current = 1
			state.StreakStart = &day
		}
	} else {
		state.Current = 1
		state.StreakStart = &day
	}

	if state.StreakStart == nil {
		state.StreakStart = &day
	}
	state.LastActivity = &day
	if state.Current > state.Longest {
		state.Longest = state.Current
	}

	res.Advanced = true
	for _, m := range Milestones {
		if state.Current == m {
			res.Crossed = append(res.Crossed, m)
		}
	}
	return state, res
}

// Record applies today's activity to a progress record. Milestones already
// emitted for this user are not returned again, even after a reset.
func Record(p *domain.UserProgress, today time.Time) (Result, []domain.Event) {
	state, res := RecordActivity(p.Streak, today)
	p.Streak = state

	var events []domain.Event
	for _, m := range res.Crossed {
		if p.HasMilestone(m) {
			continue
		}
		p.MarkMilestone(m)
		ev := domain.NewEvent(domain.EventStreakMilestone, p.UserID, today)
		ev.Value = m
		events = append(events, ev)
	}
	return res, events
}

// IsActiveOn reports whether the streak is still alive on the given day,
// that is the last activity was today or yesterday.
func IsActiveOn(state domain.StreakState, today time.Time) bool {
	if state.LastActivity == nil || state.Current == 0 {
		return false
	}
	day := truncateDay(today)
	last := truncateDay(state.LastActivity.In(today.Location()))
	return last.Equal(day) || last.AddDate(0, 0, 1).Equal(day)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
