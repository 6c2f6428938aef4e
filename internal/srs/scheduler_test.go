package srs

import (
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newTestItem(t *testing.T) *domain.ReviewItem {
	t.Helper()
	item, err := NewItem("buenos días", "good morning", "greetings", t0)
	require.NoError(t, err)
	return item
}

func TestNewItem(t *testing.T) {
	item := newTestItem(t)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, 1, item.Interval)
	assert.Zero(t, item.Repetitions)
	assert.Equal(t, DefaultEaseFactor, item.EaseFactor)
	assert.Equal(t, t0.Add(24*time.Hour), item.NextReview)
	assert.Nil(t, item.LastReviewed)
}

func TestNewItem_Invalid(t *testing.T) {
	_, err := NewItem("   ", "x", "greetings", t0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewItem("hola", "hello", "", t0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchedule_PerfectSequence(t *testing.T) {
	item := newTestItem(t)
	now := t0

	// interval = round(previous * ease carried into the review): 6*2.7, 16*2.8
	wantIntervals := []int{1, 6, 16, 45}
	wantEF := []float64{2.6, 2.7, 2.8, 2.9}
	for i, want := range wantIntervals {
		next, err := Schedule(item, 5, now)
		require.NoError(t, err)

		assert.Equal(t, want, next.Interval, "review %d interval", i+1)
		assert.InDelta(t, wantEF[i], next.EaseFactor, 1e-9, "review %d ease", i+1)
		assert.Equal(t, i+1, next.Repetitions)
		require.NotNil(t, next.LastReviewed)
		assert.Equal(t, now.AddDate(0, 0, want), next.NextReview)

		item = next
		now = next.NextReview
	}
}

func TestSchedule_DoesNotMutateInput(t *testing.T) {
	item := newTestItem(t)
	_, err := Schedule(item, 4, t0)
	require.NoError(t, err)

	assert.Zero(t, item.Repetitions)
	assert.Nil(t, item.LastReviewed)
}

func TestSchedule_FailureResets(t *testing.T) {
	item := newTestItem(t)
	for _, q := range []int{5, 5, 4, 5} {
		next, err := Schedule(item, q, t0)
		require.NoError(t, err)
		item = next
	}
	require.Greater(t, item.Interval, 6)

	failed, err := Schedule(item, 2, t0)
	require.NoError(t, err)
	assert.Zero(t, failed.Repetitions)
	assert.Equal(t, 1, failed.Interval)
	assert.InDelta(t, item.EaseFactor-0.32, failed.EaseFactor, 1e-9)
}

func TestSchedule_EaseFactorFloor(t *testing.T) {
	item := newTestItem(t)
	for i := 0; i < 20; i++ {
		next, err := Schedule(item, 0, t0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, next.EaseFactor, MinEaseFactor)
		item = next
	}
	assert.Equal(t, MinEaseFactor, item.EaseFactor)
}

func TestSchedule_IntervalsNonDecreasingAndClamped(t *testing.T) {
	item := newTestItem(t)
	prev := 0
	for i := 0; i < 30; i++ {
		next, err := Schedule(item, 3+i%3, t0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, next.Interval, prev)
		assert.LessOrEqual(t, next.Interval, MaxInterval)
		prev = next.Interval
		item = next
	}
	assert.Equal(t, MaxInterval, item.Interval)
}

func TestSchedule_InvalidQuality(t *testing.T) {
	item := newTestItem(t)
	for _, q := range []int{-1, 6, 100} {
		got, err := Schedule(item, q, t0)
		assert.Nil(t, got)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput), "quality %d", q)
	}
	assert.Zero(t, item.Repetitions)
}

func TestUpdateEaseFactor(t *testing.T) {
	tests := []struct {
		quality int
		delta   float64
	}{
		{5, 0.1},
		{4, 0},
		{3, -0.14},
		{2, -0.32},
		{1, -0.54},
	}
	for _, tt := range tests {
		assert.InDelta(t, 2.5+tt.delta, UpdateEaseFactor(2.5, tt.quality), 1e-9, "quality %d", tt.quality)
	}
	assert.Equal(t, MinEaseFactor, UpdateEaseFactor(1.4, 0))
}

func TestDueItems(t *testing.T) {
	mk := func(id string, offset time.Duration) *domain.ReviewItem {
		return &domain.ReviewItem{ID: id, NextReview: t0.Add(offset)}
	}
	items := []*domain.ReviewItem{
		mk("c", -time.Hour),
		mk("future", time.Hour),
		mk("b", -2*time.Hour),
		mk("a", -time.Hour),
		mk("exact", 0),
		nil,
	}

	due := DueItems(items, t0)
	ids := make([]string, len(due))
	for i, it := range due {
		ids[i] = it.ID
	}
	assert.Equal(t, []string{"b", "a", "c", "exact"}, ids)

	again := DueItems(items, t0)
	assert.Equal(t, due, again)
}

func TestDueItems_Empty(t *testing.T) {
	assert.Empty(t, DueItems(nil, t0))
}
