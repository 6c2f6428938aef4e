// Package xp awards experience points and derives levels from total XP.
package xp

import (
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// Action is something a learner does that earns XP
type Action string

const (
	ConversationMessage  Action = "conversation_message"
	ConversationComplete Action = "conversation_complete"
	PhraseLearned        Action = "phrase_learned"
	PhraseReviewed       Action = "phrase_reviewed"
	TopicStarted         Action = "topic_started"
	TopicCompleted       Action = "topic_completed"
	DailyLogin           Action = "daily_login"
	StreakBonus          Action = "streak_bonus"
	VoiceMessage         Action = "voice_message"
	CorrectPronunciation Action = "correct_pronunciation"
)

var rewards = map[Action]int{
	ConversationMessage:  5,
	ConversationComplete: 25,
	PhraseLearned:        10,
	PhraseReviewed:       3,
	TopicStarted:         15,
	TopicCompleted:       100,
	DailyLogin:           10,
	StreakBonus:          20,
	VoiceMessage:         8,
	CorrectPronunciation: 12,
}

// MaxLevel caps the level curve
const MaxLevel = 100

// thresholds[i] is the cumulative XP needed to reach level i+1
var thresholds = []int{
	0, 100, 250, 450, 700, 1000, 1400, 1900, 2500, 3200,
	4000, 4900, 5900, 7000, 8200, 9500, 11000, 12700, 14600, 16700,
}

// Reward returns the base XP for an action, 0 if unknown
func Reward(a Action) int {
	return rewards[a]
}

// Threshold returns the cumulative XP required to reach level. Past the
// table each level's step is 20% larger than the previous one.
func Threshold(level int) int {
	if level <= 1 {
		return 0
	}
	if level <= len(thresholds) {
		return thresholds[level-1]
	}

	n := len(thresholds)
	total := thresholds[n-1]
	step := thresholds[n-1] - thresholds[n-2]
	for i := n; i < level; i++ {
		step = step * 12 / 10
		total += step
	}
	return total
}

// LevelFor returns the level reached with totalXP
func LevelFor(totalXP int) int {
	level := 1
	for level < MaxLevel && totalXP >= Threshold(level+1) {
		level++
	}
	return level
}

// LevelInfo describes where a learner sits on the level curve
type LevelInfo struct {
	Level     int `json:"level"`
	TotalXP   int `json:"total_xp"`
	CurrentXP int `json:"current_xp"`
	NextXP    int `json:"next_level_xp"`
	Percent   int `json:"progress_percent"`
}

// Info computes level details for totalXP
func Info(totalXP int) LevelInfo {
	level := LevelFor(totalXP)
	base := Threshold(level)
	info := LevelInfo{
		Level:     level,
		TotalXP:   totalXP,
		CurrentXP: totalXP - base,
		Percent:   100,
	}
	if level < MaxLevel {
		info.NextXP = Threshold(level+1) - base
		info.Percent = info.CurrentXP * 100 / info.NextXP
	}
	return info
}

// Gain is the outcome of one award
type Gain struct {
	Action   Action
	XP       int
	OldLevel int
	NewLevel int
}

// LeveledUp reports whether the award crossed a level threshold
func (g Gain) LeveledUp() bool {
	return g.NewLevel > g.OldLevel
}

// Award adds the action's XP times multiplier to p, credits today's stats
// and recomputes the level. A multiplier below 1 counts as 1.
func Award(p *domain.UserProgress, a Action, multiplier int, now time.Time) Gain {
	if multiplier < 1 {
		multiplier = 1
	}
	g := Gain{Action: a, XP: Reward(a) * multiplier, OldLevel: p.CurrentLevel}

	p.TotalXP += g.XP
	p.Day(now).XPEarned += g.XP
	if lvl := LevelFor(p.TotalXP); lvl > p.CurrentLevel {
		p.CurrentLevel = lvl
	}
	g.NewLevel = p.CurrentLevel
	return g
}

// LevelUpEvent returns the event for a gain that crossed a level, if any
func LevelUpEvent(p *domain.UserProgress, g Gain, now time.Time) (domain.Event, bool) {
	if !g.LeveledUp() {
		return domain.Event{}, false
	}
	ev := domain.NewEvent(domain.EventLevelUp, p.UserID, now)
	ev.Value = g.NewLevel
	return ev, true
}
