// Package catalog holds the curriculum: topics, their phrases and the level
// each topic belongs to.
package catalog

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/felixgeelhaar/lingua/internal/domain"
)

// Catalog is the read-only view used by the progress engine and the daemon
type Catalog interface {
	Topic(id string) (*domain.Topic, error)
	TopicsForLevel(level int) []*domain.Topic
}

// Registry provides access to topics loaded from level files
type Registry struct {
	loader *Loader
	mu     sync.RWMutex
	topics map[string]*domain.Topic
	order  []string
	loaded bool
}

// Ensure Registry implements Catalog
var _ Catalog = (*Registry)(nil)

// NewRegistry creates a new topic registry
func NewRegistry(loader *Loader) *Registry {
	return &Registry{
		loader: loader,
		topics: make(map[string]*domain.Topic),
	}
}

// Load reads every level file into memory
func (r *Registry) Load() error {
	files, err := r.loader.LoadAll()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, lf := range files {
		for _, t := range lf.Topics() {
			if _, dup := r.topics[t.ID]; dup {
				return fmt.Errorf("duplicate topic %q in level %d", t.ID, lf.Level)
			}
			r.topics[t.ID] = t
			r.order = append(r.order, t.ID)
		}
	}

	r.loaded = true
	return nil
}

// Reload discards and reloads all topics
func (r *Registry) Reload() error {
	r.mu.Lock()
	r.topics = make(map[string]*domain.Topic)
	r.order = nil
	r.loaded = false
	r.mu.Unlock()

	return r.Load()
}

// Topic returns a copy of a topic by ID
func (r *Registry) Topic(id string) (*domain.Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.topics[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTopicNotFound, id)
	}
	return cloneTopic(t), nil
}

// ListTopics returns all topics ordered by level, then file order
func (r *Registry) ListTopics() []*domain.Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]*domain.Topic, 0, len(r.order))
	for _, id := range r.order {
		topics = append(topics, cloneTopic(r.topics[id]))
	}
	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].Level < topics[j].Level
	})
	return topics
}

// TopicsForLevel returns the topics of one curriculum level
func (r *Registry) TopicsForLevel(level int) []*domain.Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var topics []*domain.Topic
	for _, id := range r.order {
		if t := r.topics[id]; t.Level == level {
			topics = append(topics, cloneTopic(t))
		}
	}
	return topics
}

// Levels returns the distinct levels present, ascending
func (r *Registry) Levels() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var levels []int
	for _, t := range r.topics {
		if !slices.Contains(levels, t.Level) {
			levels = append(levels, t.Level)
		}
	}
	slices.Sort(levels)
	return levels
}

// AddTopic registers a new topic. Existing ids are rejected.
func (r *Registry) AddTopic(t *domain.Topic) error {
	if t == nil || t.ID == "" {
		return domain.Invalidf("topic id is required")
	}
	if t.Level < domain.MinLearnerLevel || t.Level > domain.MaxLearnerLevel {
		return domain.Invalidf("topic %s level %d outside %d..%d", t.ID, t.Level, domain.MinLearnerLevel, domain.MaxLearnerLevel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topics[t.ID]; ok {
		return fmt.Errorf("%w: topic %s already exists", domain.ErrConflict, t.ID)
	}
	r.topics[t.ID] = cloneTopic(t)
	r.order = append(r.order, t.ID)
	return nil
}

// AddPhrases appends phrases to a topic, skipping texts it already has.
// It returns how many were added.
func (r *Registry) AddPhrases(topicID string, phrases []domain.Phrase) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.topics[topicID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrTopicNotFound, topicID)
	}

	seen := make(map[string]bool, len(t.Phrases))
	for _, p := range t.Phrases {
		seen[p.Text] = true
	}

	added := 0
	for _, p := range phrases {
		if p.Text == "" || seen[p.Text] {
			continue
		}
		seen[p.Text] = true
		t.Phrases = append(t.Phrases, p)
		added++
	}
	if len(t.Phrases) > t.TotalPhrases {
		t.TotalPhrases = len(t.Phrases)
	}
	return added, nil
}

// Export groups the current topics into level files
func (r *Registry) Export() []LevelFile {
	byLevel := make(map[int]*LevelFile)
	for _, t := range r.ListTopics() {
		lf, ok := byLevel[t.Level]
		if !ok {
			lf = &LevelFile{Level: t.Level, Language: t.Language}
			byLevel[t.Level] = lf
		}
		lf.Entries = append(lf.Entries, entryFromTopic(t))
	}

	files := make([]LevelFile, 0, len(byLevel))
	for _, lf := range byLevel {
		files = append(files, *lf)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Level < files[j].Level })
	return files
}

// Stats returns counts about loaded topics
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		TopicCount: len(r.topics),
		ByLevel:    make(map[int]int),
	}
	for _, t := range r.topics {
		stats.ByLevel[t.Level]++
		stats.PhraseCount += len(t.Phrases)
	}
	return stats
}

// RegistryStats holds statistics about the registry
type RegistryStats struct {
	TopicCount  int
	PhraseCount int
	ByLevel     map[int]int
}

func cloneTopic(t *domain.Topic) *domain.Topic {
	c := *t
	c.Phrases = slices.Clone(t.Phrases)
	return &c
}
