package achievement

import (
	"strings"
	"testing"
)

func TestGenerator_Generate(t *testing.T) {
	g := NewGenerator()
	g.intn = func(int) int { return 0 }

	tests := []struct {
		moment Moment
		want   string
	}{
		{Moment{Type: BadgeTopicComplete, Evidence: Evidence{TopicID: "greetings"}}, "greetings"},
		{Moment{Type: BadgeLevelComplete, Evidence: Evidence{Level: 2}}, "level 2"},
		{Moment{Type: BadgeStreak, Evidence: Evidence{Days: 7}}, "7 days"},
		{Moment{Type: BadgeXPLevel, Evidence: Evidence{Level: 10}}, "level 10"},
		{Moment{Type: BadgeReviewsDue, Evidence: Evidence{Count: 4}}, "4 phrases"},
	}

	for _, tt := range tests {
		t.Run(string(tt.moment.Type), func(t *testing.T) {
			msg := g.Generate(&tt.moment)
			if msg == nil {
				t.Fatal("Generate() returned nil")
			}
			if !strings.Contains(msg.Text, tt.want) {
				t.Errorf("Text = %q; want it to contain %q", msg.Text, tt.want)
			}
			if strings.Contains(msg.Text, "%!") {
				t.Errorf("bad format verb in %q", msg.Text)
			}
		})
	}
}

func TestGenerator_AllTemplatesFormat(t *testing.T) {
	g := NewGenerator()
	for typ, templates := range g.templates {
		for i := range templates {
			g.intn = func(int) int { return i }
			msg := g.Generate(&Moment{Type: typ, Evidence: Evidence{TopicID: "food", Level: 3, Days: 30, Count: 2}})
			if strings.Contains(msg.Text, "%!") {
				t.Errorf("%s template %d: %q", typ, i, msg.Text)
			}
		}
	}
}

func TestGenerator_Unknown(t *testing.T) {
	g := NewGenerator()
	if g.Generate(nil) != nil {
		t.Error("Generate(nil) should be nil")
	}
	if g.Generate(&Moment{Type: "mystery"}) != nil {
		t.Error("unknown type should produce no message")
	}
}

func TestShouldCelebrate(t *testing.T) {
	tests := []struct {
		minutes, priority int
		want              bool
	}{
		{0, 10, true},
		{0, 8, true},
		{5, 6, false},
		{10, 6, true},
		{30, 1, false},
		{60, 1, true},
	}
	for _, tt := range tests {
		if got := ShouldCelebrate(tt.minutes, tt.priority); got != tt.want {
			t.Errorf("ShouldCelebrate(%d, %d) = %v; want %v", tt.minutes, tt.priority, got, tt.want)
		}
	}
}
