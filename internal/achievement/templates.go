package achievement

import (
	"fmt"
	"math/rand"
)

// Message is a celebration shown to the learner
type Message struct {
	Text     string    `json:"text"`
	Type     BadgeType `json:"type"`
	Title    string    `json:"title"`
	Evidence Evidence  `json:"evidence"`
}

// Generator writes celebration messages from moments
type Generator struct {
	templates map[BadgeType][]string
	intn      func(n int) int
}

func NewGenerator() *Generator {
	return &Generator{
		templates: defaultTemplates(),
		intn:      rand.Intn,
	}
}

// Generate picks a template for the moment and fills in its evidence
func (g *Generator) Generate(m *Moment) *Message {
	if m == nil {
		return nil
	}
	templates, ok := g.templates[m.Type]
	if !ok || len(templates) == 0 {
		return nil
	}

	template := templates[g.intn(len(templates))]
	return &Message{
		Text:     g.format(template, m),
		Type:     m.Type,
		Title:    m.Title,
		Evidence: m.Evidence,
	}
}

func (g *Generator) format(template string, m *Moment) string {
	e := m.Evidence
	switch m.Type {
	case BadgeTopicComplete, BadgeFirstTopic, BadgeFirstConversation:
		return fmt.Sprintf(template, e.TopicID)
	case BadgeLevelComplete, BadgeXPLevel:
		return fmt.Sprintf(template, e.Level)
	case BadgeStreak:
		return fmt.Sprintf(template, e.Days)
	case BadgeReviewsDue:
		return fmt.Sprintf(template, e.Count)
	default:
		return template
	}
}

func defaultTemplates() map[BadgeType][]string {
	return map[BadgeType][]string{
		BadgeFirstTopic: {
			"You started your first topic, %s. Every conversation starts with hello.",
			"First topic underway: %s. The hardest step is the first one.",
		},
		BadgeTopicComplete: {
			"Topic %s complete. Those phrases are yours now.",
			"You finished %s. Nice work putting it into practice.",
		},
		BadgeLevelComplete: {
			"Every topic in level %d is complete. Ready for the next challenge.",
			"Level %d finished. Your English is growing.",
		},
		BadgeStreak: {
			"%d days in a row. Consistency is what makes a language stick.",
			"A %d-day streak. Keep the habit going.",
		},
		BadgeXPLevel: {
			"You reached level %d. All that practice is adding up.",
			"Level %d unlocked.",
		},
		BadgeFirstConversation: {
			"First full conversation done in %s. Speaking is how fluency grows.",
		},
		BadgeReviewsDue: {
			"You have %d phrases ready for review.",
		},
	}
}

// ShouldCelebrate limits how often lower-priority celebrations are shown
func ShouldCelebrate(minutesSinceLast int, priority int) bool {
	switch {
	case priority >= 8:
		return true
	case priority >= 5:
		return minutesSinceLast >= 10
	default:
		return minutesSinceLast >= 60
	}
}
