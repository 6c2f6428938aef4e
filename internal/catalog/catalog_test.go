package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"level-1.yaml": {Data: []byte(`level: 1
language: es
topics:
  - id: greetings
    title: Greetings
    phrases:
      - {text: hola, translation: hello}
      - {text: adiós, translation: goodbye}
  - id: numbers
    title: Numbers
    total_phrases: 10
`)},
		"level-2.yaml": {Data: []byte(`level: 2
topics:
  - id: restaurant
`)},
		"notes.txt": {Data: []byte("ignored")},
	}
}

func loadedRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(NewLoader(testFS()))
	require.NoError(t, r.Load())
	return r
}

func TestRegistry_Load(t *testing.T) {
	r := loadedRegistry(t)

	greet, err := r.Topic("greetings")
	require.NoError(t, err)
	assert.Equal(t, 1, greet.Level)
	assert.Equal(t, "es", greet.Language)
	assert.Equal(t, 2, greet.PhraseCount())

	numbers, err := r.Topic("numbers")
	require.NoError(t, err)
	assert.Equal(t, 10, numbers.PhraseCount())

	rest, err := r.Topic("restaurant")
	require.NoError(t, err)
	assert.Equal(t, "restaurant", rest.Title, "title defaults to id")

	assert.Equal(t, []int{1, 2}, r.Levels())
	assert.Len(t, r.TopicsForLevel(1), 2)
	assert.Empty(t, r.TopicsForLevel(3))
}

func TestRegistry_TopicNotFound(t *testing.T) {
	r := loadedRegistry(t)
	_, err := r.Topic("missing")
	assert.ErrorIs(t, err, domain.ErrTopicNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_TopicReturnsCopy(t *testing.T) {
	r := loadedRegistry(t)
	t1, _ := r.Topic("greetings")
	t1.Phrases[0].Text = "changed"
	t1.Title = "changed"

	t2, _ := r.Topic("greetings")
	assert.Equal(t, "hola", t2.Phrases[0].Text)
	assert.Equal(t, "Greetings", t2.Title)
}

func TestRegistry_DuplicateTopic(t *testing.T) {
	fsys := testFS()
	fsys["level-3.yaml"] = &fstest.MapFile{Data: []byte("level: 3\ntopics:\n  - id: greetings\n")}

	err := NewRegistry(NewLoader(fsys)).Load()
	assert.Error(t, err)
}

func TestLoader_InvalidLevel(t *testing.T) {
	fsys := fstest.MapFS{"bad.yaml": {Data: []byte("level: 9\ntopics: []\n")}}
	_, err := NewLoader(fsys).LoadAll()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBuiltinCatalog(t *testing.T) {
	r := NewRegistry(BuiltinLoader())
	require.NoError(t, r.Load())

	assert.Equal(t, []int{1, 2, 3, 4}, r.Levels())
	greet, err := r.Topic("greetings")
	require.NoError(t, err)
	assert.Equal(t, 10, greet.PhraseCount())
	assert.Len(t, r.TopicsForLevel(1), 16)
}

func TestRegistry_AddPhrases(t *testing.T) {
	r := loadedRegistry(t)

	added, err := r.AddPhrases("greetings", []domain.Phrase{
		{Text: "hola"},
		{Text: "buenas noches", Translation: "good night"},
		{Text: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	greet, _ := r.Topic("greetings")
	assert.Equal(t, 3, greet.PhraseCount())

	_, err = r.AddPhrases("missing", nil)
	assert.ErrorIs(t, err, domain.ErrTopicNotFound)
}

func TestRegistry_AddTopic(t *testing.T) {
	r := loadedRegistry(t)

	require.NoError(t, r.AddTopic(&domain.Topic{ID: "travel", Level: 2}))
	assert.ErrorIs(t, r.AddTopic(&domain.Topic{ID: "travel", Level: 2}), domain.ErrConflict)
	assert.ErrorIs(t, r.AddTopic(&domain.Topic{ID: "x", Level: 0}), domain.ErrInvalidInput)
	assert.Len(t, r.TopicsForLevel(2), 2)
}

func TestExportRoundTrip(t *testing.T) {
	r := loadedRegistry(t)
	dir := t.TempDir()

	require.NoError(t, WriteLevelFiles(dir, r.Export()))
	_, err := os.Stat(filepath.Join(dir, "level-1.yaml"))
	require.NoError(t, err)

	again := NewRegistry(NewDirLoader(dir))
	require.NoError(t, again.Load())
	assert.Equal(t, r.Stats(), again.Stats())
}
