package xp

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreshold(t *testing.T) {
	assert.Equal(t, 0, Threshold(0))
	assert.Equal(t, 0, Threshold(1))
	assert.Equal(t, 100, Threshold(2))
	assert.Equal(t, 16700, Threshold(20))
	// step 20->21 is (16700-14600)*1.2 = 2520
	assert.Equal(t, 19220, Threshold(21))
	// then 2520*1.2 = 3024
	assert.Equal(t, 22244, Threshold(22))
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{16700, 20},
		{19220, 21},
		{1 << 40, MaxLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.xp), "LevelFor(%d)", tt.xp)
	}
}

func TestInfo(t *testing.T) {
	info := Info(175)
	assert.Equal(t, 2, info.Level)
	assert.Equal(t, 75, info.CurrentXP)
	assert.Equal(t, 150, info.NextXP)
	assert.Equal(t, 50, info.Percent)

	top := Info(1 << 40)
	assert.Equal(t, MaxLevel, top.Level)
	assert.Equal(t, 100, top.Percent)
	assert.Zero(t, top.NextXP)
}

func TestAward(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p := domain.NewUserProgress("ana", now)
	p.TotalXP = 90

	g := Award(p, PhraseLearned, 1, now)
	assert.Equal(t, 10, g.XP)
	assert.True(t, g.LeveledUp())
	assert.Equal(t, 2, p.CurrentLevel)
	assert.Equal(t, 100, p.TotalXP)
	assert.Equal(t, 10, p.Day(now).XPEarned)

	ev, ok := LevelUpEvent(p, g, now)
	require.True(t, ok)
	assert.Equal(t, domain.EventLevelUp, ev.Type)
	assert.Equal(t, 2, ev.Value)

	g = Award(p, StreakBonus, 3, now)
	assert.Equal(t, 60, g.XP)
	assert.False(t, g.LeveledUp())
	_, ok = LevelUpEvent(p, g, now)
	assert.False(t, ok)
}

func TestAward_UnknownActionAndMultiplier(t *testing.T) {
	now := time.Now()
	p := domain.NewUserProgress("ana", now)

	g := Award(p, Action("nope"), 5, now)
	assert.Zero(t, g.XP)

	g = Award(p, ConversationMessage, 0, now)
	assert.Equal(t, 5, g.XP)
}
