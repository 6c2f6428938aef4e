package domain

import "fmt"

// Curriculum levels a learner can be placed in
const (
	MinLearnerLevel = 1
	MaxLearnerLevel = 4
)

// UserProfile holds identity and preferences for a learner
type UserProfile struct {
	ID          string            `json:"id"`
	Username    string            `json:"username,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	Level       int               `json:"level"`
	Settings    map[string]string `json:"settings,omitempty"`
}

// NewUserProfile creates a profile at the first curriculum level
func NewUserProfile(id string) UserProfile {
	return UserProfile{
		ID:       id,
		Level:    MinLearnerLevel,
		Settings: make(map[string]string),
	}
}

// Validate checks the profile invariants
func (p UserProfile) Validate() error {
	if p.ID == "" {
		return Invalidf("profile id is required")
	}
	if p.Level < MinLearnerLevel || p.Level > MaxLearnerLevel {
		return Invalidf("level %d outside %d..%d", p.Level, MinLearnerLevel, MaxLearnerLevel)
	}
	return nil
}

// LevelTag is the label sent to the tutor when initializing a topic
func (p UserProfile) LevelTag() string {
	switch p.Level {
	case 1:
		return "beginner"
	case 2:
		return "elementary"
	case 3:
		return "intermediate"
	case 4:
		return "advanced"
	default:
		return fmt.Sprintf("level-%d", p.Level)
	}
}
