// Package srs schedules phrase reviews with an SM-2 variant.
package srs

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/google/uuid"
)

const (
	InitialInterval   = 1
	MinInterval       = 1
	MaxInterval       = 365
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3

	MinQuality     = 0
	MaxQuality     = 5
	PassingQuality = 3

	day = 24 * time.Hour
)

// NewItem creates a review item due one day after now
func NewItem(phrase, translation, topicID string, now time.Time) (*domain.ReviewItem, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, domain.Invalidf("phrase is empty")
	}
	if topicID == "" {
		return nil, domain.Invalidf("topic id is required")
	}

	return &domain.ReviewItem{
		ID:          uuid.New().String(),
		Phrase:      phrase,
		Translation: strings.TrimSpace(translation),
		TopicID:     topicID,
		Interval:    InitialInterval,
		Repetitions: 0,
		EaseFactor:  DefaultEaseFactor,
		NextReview:  now.Add(InitialInterval * day),
		CreatedAt:   now,
	}, nil
}

// Schedule applies one review of the given quality and returns the updated
// copy. The input item is left untouched.
func Schedule(item *domain.ReviewItem, quality int, now time.Time) (*domain.ReviewItem, error) {
	if item == nil {
		return nil, domain.Invalidf("item is nil")
	}
	if quality < MinQuality || quality > MaxQuality {
		return nil, domain.Invalidf("quality %d outside %d..%d", quality, MinQuality, MaxQuality)
	}

	next := *item
	ef := next.EaseFactor
	if ef < MinEaseFactor {
		ef = MinEaseFactor
	}

	if quality >= PassingQuality {
		next.Repetitions++
		switch next.Repetitions {
		case 1:
			next.Interval = 1
		case 2:
			next.Interval = 6
		default:
			next.Interval = int(math.Round(float64(next.Interval) * ef))
		}
	} else {
		next.Repetitions = 0
		next.Interval = 1
	}

	next.EaseFactor = UpdateEaseFactor(ef, quality)
	next.Interval = clampInterval(next.Interval)

	reviewed := now
	next.LastReviewed = &reviewed
	next.NextReview = reviewed.Add(time.Duration(next.Interval) * day)

	return &next, nil
}

// UpdateEaseFactor applies the SM-2 ease adjustment for a quality score
func UpdateEaseFactor(ef float64, quality int) float64 {
	miss := float64(MaxQuality - quality)
	ef += 0.1 - miss*(0.08+miss*0.02)
	return math.Max(MinEaseFactor, ef)
}

func clampInterval(days int) int {
	if days < MinInterval {
		return MinInterval
	}
	if days > MaxInterval {
		return MaxInterval
	}
	return days
}

// DueItems returns the items due at now, earliest first. Ties are broken by
// id so the order is stable across calls.
func DueItems(items []*domain.ReviewItem, now time.Time) []*domain.ReviewItem {
	due := make([]*domain.ReviewItem, 0, len(items))
	for _, item := range items {
		if item != nil && item.IsDue(now) {
			due = append(due, item)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].NextReview.Equal(due[j].NextReview) {
			return due[i].ID < due[j].ID
		}
		return due[i].NextReview.Before(due[j].NextReview)
	})

	return due
}
