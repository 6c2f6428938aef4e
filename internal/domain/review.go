package domain

import "time"

// ReviewItem is a learned phrase scheduled for spaced repetition
type ReviewItem struct {
	ID           string     `json:"id"`
	Phrase       string     `json:"phrase"`
	Translation  string     `json:"translation"`
	TopicID      string     `json:"topic_id"`
	Interval     int        `json:"interval"` // days
	Repetitions  int        `json:"repetitions"`
	EaseFactor   float64    `json:"ease_factor"`
	NextReview   time.Time  `json:"next_review"`
	LastReviewed *time.Time `json:"last_reviewed,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsDue reports whether the item should be reviewed at now
func (i *ReviewItem) IsDue(now time.Time) bool {
	return !i.NextReview.After(now)
}
