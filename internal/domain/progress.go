package domain

import (
	"slices"
	"time"
)

// TopicStatus is the lifecycle of a learner's work on a topic
type TopicStatus string

const (
	TopicNotStarted TopicStatus = "not_started"
	TopicInProgress TopicStatus = "in_progress"
	TopicCompleted  TopicStatus = "completed"
)

func (s TopicStatus) rank() int {
	switch s {
	case TopicInProgress:
		return 1
	case TopicCompleted:
		return 2
	default:
		return 0
	}
}

// Advance returns the later of s and to. Status never moves backwards.
func (s TopicStatus) Advance(to TopicStatus) TopicStatus {
	if to.rank() > s.rank() {
		return to
	}
	if s == "" {
		return TopicNotStarted
	}
	return s
}

// IsValid checks if the status is a known value
func (s TopicStatus) IsValid() bool {
	switch s {
	case TopicNotStarted, TopicInProgress, TopicCompleted:
		return true
	}
	return false
}

// TopicProgress is one learner's state for one topic
type TopicProgress struct {
	TopicID                string      `json:"topic_id"`
	Status                 TopicStatus `json:"status"`
	PhrasesLearned         int         `json:"phrases_learned"`
	ConversationsCompleted int         `json:"conversations_completed"`
	PracticeSessions       int         `json:"practice_sessions"`
	LastPracticed          *time.Time  `json:"last_practiced,omitempty"`
	CompletionDate         *time.Time  `json:"completion_date,omitempty"`
}

// StreakState tracks consecutive days of activity
type StreakState struct {
	Current      int        `json:"current_streak"`
	Longest      int        `json:"longest_streak"`
	LastActivity *time.Time `json:"last_activity_date,omitempty"`
	StreakStart  *time.Time `json:"streak_start_date,omitempty"`
}

// DailyStat aggregates one calendar day of study
type DailyStat struct {
	Date           string `json:"date"`
	StudyMinutes   int    `json:"study_minutes"`
	Messages       int    `json:"messages"`
	VoiceMessages  int    `json:"voice_messages"`
	PhrasesLearned int    `json:"phrases_learned"`
	Reviews        int    `json:"reviews"`
	XPEarned       int    `json:"xp_earned"`
	CheckedIn      bool   `json:"checked_in,omitempty"`
}

// PronunciationScore is a single scored attempt at a phrase
type PronunciationScore struct {
	Phrase     string    `json:"phrase"`
	Score      int       `json:"score"`
	TopicID    string    `json:"topic_id,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// UserProgress is the durable per-user learning record
type UserProgress struct {
	UserID            string                    `json:"user_id"`
	Profile           UserProfile               `json:"profile"`
	Topics            map[string]*TopicProgress `json:"topics"`
	Streak            StreakState               `json:"streak"`
	Items             map[string]*ReviewItem    `json:"items"`
	TotalXP           int                       `json:"total_xp"`
	CurrentLevel      int                       `json:"current_level"`
	EmittedMilestones []int                     `json:"emitted_milestones,omitempty"`
	CompletedLevels   []int                     `json:"completed_levels,omitempty"`
	Achievements      []Achievement             `json:"achievements,omitempty"`
	Daily             map[string]*DailyStat     `json:"daily,omitempty"`
	Pronunciation     []PronunciationScore      `json:"pronunciation,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// NewUserProgress creates an empty record for a learner starting at level 1
func NewUserProgress(userID string, now time.Time) *UserProgress {
	return &UserProgress{
		UserID:       userID,
		Profile:      NewUserProfile(userID),
		Topics:       make(map[string]*TopicProgress),
		Items:        make(map[string]*ReviewItem),
		Daily:        make(map[string]*DailyStat),
		CurrentLevel: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Normalize fills nil maps and zero values left by older or partial records
func (p *UserProgress) Normalize() {
	if p.Topics == nil {
		p.Topics = make(map[string]*TopicProgress)
	}
	if p.Items == nil {
		p.Items = make(map[string]*ReviewItem)
	}
	if p.Daily == nil {
		p.Daily = make(map[string]*DailyStat)
	}
	if p.CurrentLevel < 1 {
		p.CurrentLevel = 1
	}
	if p.Profile.ID == "" {
		p.Profile = NewUserProfile(p.UserID)
	}
}

// Topic returns the progress for a topic, creating it lazily
func (p *UserProgress) Topic(topicID string) *TopicProgress {
	p.Normalize()
	tp, ok := p.Topics[topicID]
	if !ok {
		tp = &TopicProgress{TopicID: topicID, Status: TopicNotStarted}
		p.Topics[topicID] = tp
	}
	return tp
}

// Day returns the daily stat bucket for t, creating it lazily
func (p *UserProgress) Day(t time.Time) *DailyStat {
	p.Normalize()
	key := t.Format(time.DateOnly)
	d, ok := p.Daily[key]
	if !ok {
		d = &DailyStat{Date: key}
		p.Daily[key] = d
	}
	return d
}

// HasMilestone reports whether a streak milestone was already emitted
func (p *UserProgress) HasMilestone(days int) bool {
	return slices.Contains(p.EmittedMilestones, days)
}

// MarkMilestone records a streak milestone as emitted
func (p *UserProgress) MarkMilestone(days int) {
	if !p.HasMilestone(days) {
		p.EmittedMilestones = append(p.EmittedMilestones, days)
	}
}

// HasCompletedLevel reports whether the level-completed event already fired
func (p *UserProgress) HasCompletedLevel(level int) bool {
	return slices.Contains(p.CompletedLevels, level)
}

// MarkLevelCompleted records a curriculum level as completed
func (p *UserProgress) MarkLevelCompleted(level int) {
	if !p.HasCompletedLevel(level) {
		p.CompletedLevels = append(p.CompletedLevels, level)
	}
}

// CompletedTopics returns the ids of completed topics
func (p *UserProgress) CompletedTopics() []string {
	var ids []string
	for id, tp := range p.Topics {
		if tp.Status == TopicCompleted {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
