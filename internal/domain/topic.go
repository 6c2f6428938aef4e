package domain

// Phrase is a single unit of vocabulary within a topic
type Phrase struct {
	Text        string `json:"text" yaml:"text"`
	Translation string `json:"translation" yaml:"translation"`
}

// Topic is a named unit of curriculum content
type Topic struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Level        int      `json:"level"`
	Language     string   `json:"language,omitempty"`
	TotalPhrases int      `json:"total_phrases"`
	Phrases      []Phrase `json:"phrases,omitempty"`
}

// PhraseCount returns the declared total, falling back to the phrase list
func (t *Topic) PhraseCount() int {
	if t.TotalPhrases > 0 {
		return t.TotalPhrases
	}
	return len(t.Phrases)
}
