// Package achievement turns learning events into badges stored on the
// learner's progress record and short celebration messages.
package achievement

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// BadgeType categorizes achievements
type BadgeType string

const (
	BadgeFirstTopic        BadgeType = "first_topic"
	BadgeTopicComplete     BadgeType = "topic_complete"
	BadgeLevelComplete     BadgeType = "level_complete"
	BadgeStreak            BadgeType = "streak"
	BadgeXPLevel           BadgeType = "xp_level"
	BadgeFirstConversation BadgeType = "first_conversation"
	BadgeReviewsDue        BadgeType = "reviews_due"
)

// xpLevelBadges are the XP levels that earn a badge
var xpLevelBadges = map[int]bool{5: true, 10: true, 25: true, 50: true, 100: true}

// Moment is a candidate achievement derived from one event
type Moment struct {
	ID        string
	Type      BadgeType
	Title     string
	Evidence  Evidence
	Triggered time.Time
}

// Evidence is the data behind a moment
type Evidence struct {
	TopicID string `json:"topic_id,omitempty"`
	Level   int    `json:"level,omitempty"`
	Days    int    `json:"days,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// Detector maps events to achievement moments
type Detector struct {
	priority map[BadgeType]int
}

func NewDetector() *Detector {
	return &Detector{
		priority: map[BadgeType]int{
			BadgeLevelComplete:     10,
			BadgeStreak:            9,
			BadgeXPLevel:           8,
			BadgeFirstTopic:        7,
			BadgeTopicComplete:     6,
			BadgeFirstConversation: 5,
			BadgeReviewsDue:        1,
		},
	}
}

// Detect returns the moments an event may earn. p is the progress record
// after the event; badges already held are filtered by the caller.
func (d *Detector) Detect(ev domain.Event, p *domain.UserProgress) []Moment {
	at := ev.OccurredAt
	var moments []Moment

	switch ev.Type {
	case domain.EventTopicStarted:
		if len(p.Topics) == 1 {
			moments = append(moments, Moment{
				ID: "first-topic", Type: BadgeFirstTopic, Title: "First Steps",
				Evidence: Evidence{TopicID: ev.TopicID}, Triggered: at,
			})
		}

	case domain.EventTopicCompleted:
		moments = append(moments, Moment{
			ID: "topic-" + ev.TopicID, Type: BadgeTopicComplete, Title: "Topic Complete",
			Evidence: Evidence{TopicID: ev.TopicID, Count: len(p.CompletedTopics())}, Triggered: at,
		})

	case domain.EventLevelCompleted:
		moments = append(moments, Moment{
			ID: fmt.Sprintf("level-%d", ev.Level), Type: BadgeLevelComplete,
			Title:    fmt.Sprintf("Level %d Complete", ev.Level),
			Evidence: Evidence{Level: ev.Level}, Triggered: at,
		})

	case domain.EventStreakMilestone:
		title := fmt.Sprintf("%d-Day Streak", ev.Value)
		switch ev.Value {
		case 7:
			title = "Week Warrior"
		case 30:
			title = "Monthly Master"
		}
		moments = append(moments, Moment{
			ID: fmt.Sprintf("streak-%d", ev.Value), Type: BadgeStreak, Title: title,
			Evidence: Evidence{Days: ev.Value}, Triggered: at,
		})

	case domain.EventLevelUp:
		if xpLevelBadges[ev.Value] {
			moments = append(moments, Moment{
				ID: fmt.Sprintf("xp-level-%d", ev.Value), Type: BadgeXPLevel,
				Title:    fmt.Sprintf("Reached Level %d", ev.Value),
				Evidence: Evidence{Level: ev.Value}, Triggered: at,
			})
		}

	case domain.EventReviewsDue:
		// a reminder, not a badge: no ID
		moments = append(moments, Moment{
			Type: BadgeReviewsDue, Title: "Reviews Due",
			Evidence: Evidence{Count: ev.Value}, Triggered: at,
		})

	case domain.EventSessionCompleted:
		moments = append(moments, Moment{
			ID: "first-conversation", Type: BadgeFirstConversation, Title: "First Conversation",
			Evidence: Evidence{TopicID: ev.TopicID, Count: ev.Value}, Triggered: at,
		})
	}

	return moments
}

// SelectBest returns the most significant moment
func (d *Detector) SelectBest(moments []Moment) *Moment {
	if len(moments) == 0 {
		return nil
	}
	best := moments[0]
	for _, m := range moments[1:] {
		if d.priority[m.Type] > d.priority[best.Type] {
			best = m
		}
	}
	return &best
}

// Priority returns how significant a badge type is
func (d *Detector) Priority(t BadgeType) int {
	return d.priority[t]
}
