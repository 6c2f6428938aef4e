package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/progress"
	"github.com/felixgeelhaar/lingua/internal/tutor"
)

type sentMessage struct {
	text    string
	history []tutor.Turn
	meta    tutor.SessionMeta
}

type mockChat struct {
	mu      sync.Mutex
	initErr error
	inits   chan string
	reply   *tutor.Reply
	err     error
	release chan struct{} // when set, SendMessage waits for it
	entered chan struct{}
	sent    []sentMessage
	ended   []string
	endErr  error
}

func newMockChat() *mockChat {
	return &mockChat{
		inits: make(chan string, 8),
		reply: &tutor.Reply{Text: "Hello! How are you?"},
	}
}

func (m *mockChat) InitTopic(ctx context.Context, topicID, userID, levelTag string) error {
	m.inits <- topicID
	return m.initErr
}

func (m *mockChat) SendMessage(ctx context.Context, text string, history []tutor.Turn, meta tutor.SessionMeta) (*tutor.Reply, error) {
	m.mu.Lock()
	m.sent = append(m.sent, sentMessage{text: text, history: history, meta: meta})
	release, entered := m.release, m.entered
	reply, err := m.reply, m.err
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (m *mockChat) EndSession(ctx context.Context, userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, sessionID)
	return m.endErr
}

func (m *mockChat) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockChat) lastSent() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

func (m *mockChat) endedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ended)
}

type mockVoice struct {
	mu          sync.Mutex
	started     bool
	startErr    error
	transcript  *tutor.Transcript
	stopErr     error
	startCalls  int
	stopCalls   int
	playbackOff int
	// when set, StartRecording signals entered and waits for release
	startEntered chan struct{}
	startRelease chan struct{}
}

func newMockVoice() *mockVoice {
	return &mockVoice{started: true, transcript: &tutor.Transcript{Text: " good morning ", Confidence: 0.9}}
}

func (v *mockVoice) StartRecording(ctx context.Context, language string) (bool, error) {
	v.mu.Lock()
	v.startCalls++
	entered, release := v.startEntered, v.startRelease
	started, err := v.started, v.startErr
	v.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return started, err
}

func (v *mockVoice) stops() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopCalls
}

func (v *mockVoice) StopRecording(ctx context.Context) (*tutor.Transcript, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopCalls++
	if v.stopErr != nil {
		return nil, v.stopErr
	}
	return v.transcript, nil
}

func (v *mockVoice) StopPlayback(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.playbackOff++
	return nil
}

type mockRecorder struct {
	mu      sync.Mutex
	results []progress.SessionResult
	err     error
}

func (r *mockRecorder) RecordSession(ctx context.Context, res progress.SessionResult) (*domain.TopicProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.results = append(r.results, res)
	return &domain.TopicProgress{TopicID: res.TopicID, Status: domain.TopicInProgress, ConversationsCompleted: 1}, nil
}

func (r *mockRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeCatalog struct{}

func (fakeCatalog) Topic(id string) (*domain.Topic, error) {
	if id != "greetings" && id != "food" {
		return nil, domain.ErrTopicNotFound
	}
	return &domain.Topic{ID: id, Title: "Topic " + id, Level: 1, TotalPhrases: 10}, nil
}

func (fakeCatalog) TopicsForLevel(level int) []*domain.Topic { return nil }
