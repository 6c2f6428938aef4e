package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// LevelFile is the YAML structure of one curriculum level
type LevelFile struct {
	Level    int          `yaml:"level"`
	Language string       `yaml:"language,omitempty"`
	Entries  []TopicEntry `yaml:"topics"`
}

// TopicEntry is a topic as written in a level file
type TopicEntry struct {
	ID           string          `yaml:"id"`
	Title        string          `yaml:"title"`
	Description  string          `yaml:"description,omitempty"`
	TotalPhrases int             `yaml:"total_phrases,omitempty"`
	Phrases      []domain.Phrase `yaml:"phrases,omitempty"`
}

// Topics converts the entries to domain topics
func (lf LevelFile) Topics() []*domain.Topic {
	topics := make([]*domain.Topic, 0, len(lf.Entries))
	for _, e := range lf.Entries {
		t := &domain.Topic{
			ID:           e.ID,
			Title:        e.Title,
			Description:  e.Description,
			Level:        lf.Level,
			Language:     lf.Language,
			TotalPhrases: e.TotalPhrases,
			Phrases:      e.Phrases,
		}
		if t.Title == "" {
			t.Title = e.ID
		}
		if t.TotalPhrases < len(t.Phrases) {
			t.TotalPhrases = len(t.Phrases)
		}
		topics = append(topics, t)
	}
	return topics
}

func entryFromTopic(t *domain.Topic) TopicEntry {
	return TopicEntry{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		TotalPhrases: t.TotalPhrases,
		Phrases:      t.Phrases,
	}
}

// Loader reads level files from a filesystem
type Loader struct {
	fsys fs.FS
}

// NewLoader creates a loader over any filesystem
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// NewDirLoader creates a loader over a directory on disk
func NewDirLoader(dir string) *Loader {
	return NewLoader(os.DirFS(dir))
}

// BuiltinLoader reads the catalog shipped with the binary
func BuiltinLoader() *Loader {
	sub, _ := fs.Sub(builtinFS, "builtin")
	return NewLoader(sub)
}

// LoadFile parses a single level file
func (l *Loader) LoadFile(name string) (*LevelFile, error) {
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read level file: %w", err)
	}

	var lf LevelFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse level file %s: %w", name, err)
	}
	if err := lf.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &lf, nil
}

// LoadAll loads every .yaml file at the root of the filesystem, ordered by level
func (l *Loader) LoadAll() ([]*LevelFile, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read catalog directory: %w", err)
	}

	var files []*LevelFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		lf, err := l.LoadFile(name)
		if err != nil {
			return nil, err
		}
		files = append(files, lf)
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Level < files[j].Level })
	return files, nil
}

func (lf LevelFile) validate() error {
	if lf.Level < domain.MinLearnerLevel || lf.Level > domain.MaxLearnerLevel {
		return domain.Invalidf("level %d outside %d..%d", lf.Level, domain.MinLearnerLevel, domain.MaxLearnerLevel)
	}
	for i, e := range lf.Entries {
		if e.ID == "" {
			return domain.Invalidf("topic %d has no id", i)
		}
		if e.TotalPhrases < 0 {
			return domain.Invalidf("topic %s has negative total_phrases", e.ID)
		}
	}
	return nil
}

// WriteLevelFiles writes level files as level-<n>.yaml under dir
func WriteLevelFiles(dir string, files []LevelFile) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}
	for _, lf := range files {
		data, err := yaml.Marshal(lf)
		if err != nil {
			return fmt.Errorf("marshal level %d: %w", lf.Level, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("level-%d.yaml", lf.Level))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write level %d: %w", lf.Level, err)
		}
	}
	return nil
}
