// Package conversation runs a tutoring conversation: the session state
// machine around the remote chat and voice collaborators, and the manager
// that keeps one live session per learner.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/lingua/internal/domain"
	"github.com/felixgeelhaar/lingua/internal/progress"
	"github.com/felixgeelhaar/lingua/internal/tutor"
)

const (
	// HistoryTail is how many log entries accompany each message
	HistoryTail = 10

	// DefaultInitTimeout bounds the background topic initialization
	DefaultInitTimeout = 15 * time.Second

	// noSpeechTranscript is what the speech backend returns when it picked
	// up nothing.
	noSpeechTranscript = "LEGAL"
)

// Messages the session appends to its own log.
const (
	msgCompleted      = "Great job! You've completed this lesson. Your XP is saved when you leave."
	msgRecordingStart = "Could not start recording. Please try again."
)

// SessionRecorder receives the result of a completed conversation
type SessionRecorder interface {
	RecordSession(ctx context.Context, r progress.SessionResult) (*domain.TopicProgress, error)
}

// Deps are the collaborators shared by every session
type Deps struct {
	Chat        tutor.Chat
	Voice       tutor.Voice // optional
	Progress    SessionRecorder
	Archive     Archive // optional
	Logger      *slog.Logger
	Now         func() time.Time
	InitTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.InitTimeout <= 0 {
		d.InitTimeout = DefaultInitTimeout
	}
	return d
}

// Outcome is what a send or a recording produced for the learner to see.
// Remote failures are reported here rather than as errors: the session has
// already recovered and Notice holds the classified message.
type Outcome struct {
	Reply     *domain.Message `json:"reply,omitempty"`
	Notice    *domain.Message `json:"notice,omitempty"`
	Completed bool            `json:"completed"`
	Failure   string          `json:"failure,omitempty"`
	Dropped   bool            `json:"dropped,omitempty"`
}

// Session is one conversation between a learner and the tutor on a topic
type Session struct {
	ID         string
	UserID     string
	TopicID    string
	TopicTitle string
	LevelTag   string

	deps   Deps
	logger *slog.Logger

	mu            sync.Mutex
	state         State
	recording     RecordingState
	stopping      bool
	log           []domain.Message
	messageCount  int
	voiceMessages int
	completed     bool
	typing        bool
	pendingLeave  bool
	startedAt     time.Time
	endedAt       time.Time
	result        *TeardownResult
}

// NewSession creates a session in the Initializing state
func NewSession(userID, topicID, topicTitle, levelTag string, deps Deps) *Session {
	deps = deps.withDefaults()
	id := uuid.NewString()
	if topicTitle == "" {
		topicTitle = topicID
	}
	return &Session{
		ID:         id,
		UserID:     userID,
		TopicID:    topicID,
		TopicTitle: topicTitle,
		LevelTag:   levelTag,
		deps:       deps,
		logger:     deps.Logger.With("session_id", id, "user_id", userID, "topic_id", topicID),
		state:      StateInitializing,
	}
}

// Start resets the session, initializes the remote topic context in the
// background and shows the welcome message. A failed initialization is
// only logged.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.state = StateInitializing
	s.log = nil
	s.messageCount = 0
	s.voiceMessages = 0
	s.completed = false
	s.startedAt = s.deps.Now()
	s.mu.Unlock()

	initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.InitTimeout)
	go func() {
		defer cancel()
		if err := s.deps.Chat.InitTopic(initCtx, s.TopicID, s.UserID, s.LevelTag); err != nil {
			s.logger.Warn("topic initialization failed", "kind", tutor.Classify(err).String(), "error", err)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAwaitingGreeting
	s.appendLocked(domain.SenderTutor, fmt.Sprintf("Welcome! Let's practise %s. Say hello to get started.", s.TopicTitle))
	s.state = StateIdle
}

// Send submits a learner message and waits for the tutor's reply.
func (s *Session) Send(ctx context.Context, text string) (*Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.Invalidf("message is empty")
	}

	s.mu.Lock()
	if err := s.checkInputLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.recording != RecordingIdle || s.stopping {
		s.mu.Unlock()
		return nil, ErrRecordingBusy
	}

	s.state = StateUserComposing
	userMsg := s.appendLocked(domain.SenderUser, text)
	prevCount := s.messageCount
	s.messageCount++
	s.typing = true
	s.state = StateRemoteComposing

	history := s.historyLocked()
	meta := tutor.SessionMeta{
		SessionID:      s.ID,
		UserID:         s.UserID,
		TopicID:        s.TopicID,
		LevelTag:       s.LevelTag,
		MessageCount:   s.messageCount,
		ElapsedMinutes: int(s.deps.Now().Sub(s.startedAt).Minutes()),
		Completed:      s.completed,
	}
	s.mu.Unlock()

	reply, err := s.deps.Chat.SendMessage(ctx, text, history, meta)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		s.logger.Debug("dropping tutor response after teardown", "error", err)
		return &Outcome{Dropped: true}, nil
	}
	s.typing = false
	s.state = StateIdle

	if err != nil {
		kind := tutor.Classify(err)
		s.logger.Warn("tutor message failed", "kind", kind.String(), "error", err)
		s.messageCount = prevCount
		s.markFailedLocked(userMsg.ID)
		notice := s.appendLocked(domain.SenderSystem, tutor.UserMessage(kind))
		return &Outcome{Notice: &notice, Failure: kind.String()}, nil
	}

	out := &Outcome{}
	shown := reply.Text
	finished := reply.Completed
	if strings.Contains(shown, tutor.CompletionSentinel) {
		finished = true
		shown = strings.TrimSpace(strings.ReplaceAll(shown, tutor.CompletionSentinel, ""))
	}

	if shown != "" {
		s.appendLocked(domain.SenderTutor, shown)
		s.log[len(s.log)-1].Translation = reply.Translation
		msg := s.log[len(s.log)-1]
		out.Reply = &msg
	}

	if finished && !s.completed {
		s.completed = true
		notice := s.appendLocked(domain.SenderSystem, msgCompleted)
		out.Notice = &notice
		s.logger.Info("lesson completed", "messages", s.messageCount)
	}
	out.Completed = s.completed
	return out, nil
}

// StartRecording begins voice capture. The recording only becomes active
// once the voice collaborator confirms it started.
func (s *Session) StartRecording(ctx context.Context, language string) (*Outcome, error) {
	if s.deps.Voice == nil {
		return nil, ErrVoiceUnavailable
	}

	s.mu.Lock()
	if err := s.checkInputLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.recording != RecordingIdle || s.stopping {
		s.mu.Unlock()
		return nil, ErrRecordingBusy
	}
	s.recording = RecordingStarting
	s.state = StateRecording
	s.mu.Unlock()

	started, err := s.deps.Voice.StartRecording(ctx, language)

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		// teardown left a capture that was still starting to us
		if err == nil && started {
			if _, stopErr := s.deps.Voice.StopRecording(context.WithoutCancel(ctx)); stopErr != nil {
				s.logger.Debug("stop recording after teardown failed", "error", stopErr)
			}
		}
		return &Outcome{Dropped: true}, nil
	}
	defer s.mu.Unlock()

	if err != nil || !started {
		s.recording = RecordingIdle
		s.state = StateIdle
		text := msgRecordingStart
		out := &Outcome{}
		if err != nil {
			kind := tutor.Classify(err)
			s.logger.Warn("start recording failed", "kind", kind.String(), "error", err)
			text = tutor.UserMessage(kind)
			out.Failure = kind.String()
		} else {
			out.Failure = "not_started"
		}
		notice := s.appendLocked(domain.SenderSystem, text)
		out.Notice = &notice
		return out, nil
	}

	s.recording = RecordingActive
	return &Outcome{}, nil
}

// StopRecording ends an active recording and sends the transcript as the
// next message. Requests made before the recording is active are rejected
// without contacting the voice collaborator.
func (s *Session) StopRecording(ctx context.Context) (*Outcome, error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return nil, ErrSessionEnded
	}
	if s.recording != RecordingActive || s.stopping {
		s.mu.Unlock()
		return nil, ErrRecordingNotActive
	}
	s.stopping = true
	s.mu.Unlock()

	transcript, err := s.deps.Voice.StopRecording(ctx)

	s.mu.Lock()
	s.stopping = false
	if s.state.Terminal() {
		s.mu.Unlock()
		return &Outcome{Dropped: true}, nil
	}
	s.recording = RecordingIdle
	s.state = StateIdle

	if err != nil {
		kind := tutor.Classify(err)
		s.logger.Warn("stop recording failed", "kind", kind.String(), "error", err)
		notice := s.appendLocked(domain.SenderSystem, tutor.UserMessage(kind))
		s.mu.Unlock()
		return &Outcome{Notice: &notice, Failure: kind.String()}, nil
	}

	text := ""
	if transcript != nil {
		text = strings.TrimSpace(transcript.Text)
	}
	if text == "" || text == noSpeechTranscript {
		notice := s.appendLocked(domain.SenderSystem, tutor.MsgNoSpeech)
		s.mu.Unlock()
		return &Outcome{Notice: &notice}, domain.ErrNoSpeechDetected
	}
	s.mu.Unlock()

	out, err := s.Send(ctx, text)
	if err == nil && out.Failure == "" && !out.Dropped {
		s.mu.Lock()
		s.voiceMessages++
		s.mu.Unlock()
	}
	return out, err
}

// RequestLeave asks to leave. A completed lesson may leave straight away;
// otherwise the learner must confirm that the session's XP is discarded.
func (s *Session) RequestLeave() (LeaveDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return LeaveAllowed, ErrSessionEnded
	}
	if s.completed {
		return LeaveAllowed, nil
	}
	s.pendingLeave = true
	return LeaveNeedsConfirmation, nil
}

// ConfirmLeave answers a pending leave request. With discard the session is
// abandoned without touching progress; otherwise the learner stays and the
// session continues unchanged. A lesson that completed while the request
// was pending (a reply already in flight) is saved rather than discarded.
func (s *Session) ConfirmLeave(ctx context.Context, discard bool) (*TeardownResult, error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return nil, ErrSessionEnded
	}
	if !s.pendingLeave {
		s.mu.Unlock()
		return nil, ErrNoPendingLeave
	}
	s.pendingLeave = false
	completed := s.completed
	s.mu.Unlock()

	if !discard {
		return nil, nil
	}
	return s.teardown(ctx, !completed)
}

// TeardownResult reports how a session ended
type TeardownResult struct {
	State    State                 `json:"-"`
	Duration time.Duration         `json:"duration"`
	Saved    bool                  `json:"saved"`
	Progress *domain.TopicProgress `json:"progress,omitempty"`
}

// Teardown ends the session: it stops any recording and playback, tells the
// tutor the session is over and, when the lesson was completed, records it.
// Tearing down an incomplete session abandons it.
func (s *Session) Teardown(ctx context.Context) (*TeardownResult, error) {
	return s.teardown(ctx, false)
}

func (s *Session) teardown(ctx context.Context, discard bool) (*TeardownResult, error) {
	s.mu.Lock()
	if s.state.Terminal() {
		res := s.result
		s.mu.Unlock()
		return res, nil
	}
	// a capture still starting is stopped by StartRecording once confirmed,
	// and one already stopping is finished by StopRecording
	forceStop := s.recording == RecordingActive && !s.stopping
	s.recording = RecordingIdle
	s.typing = false
	s.pendingLeave = false
	save := s.completed && !discard
	if save {
		s.state = StateCompleted
	} else {
		s.state = StateAbandoned
	}
	s.endedAt = s.deps.Now()
	res := &TeardownResult{State: s.state, Duration: s.endedAt.Sub(s.startedAt)}
	s.result = res
	messages, voice := s.messageCount, s.voiceMessages
	s.mu.Unlock()

	if s.deps.Voice != nil {
		if forceStop {
			if _, err := s.deps.Voice.StopRecording(ctx); err != nil {
				s.logger.Debug("force-stop recording failed", "error", err)
			}
		}
		if err := s.deps.Voice.StopPlayback(ctx); err != nil {
			s.logger.Debug("stop playback failed", "error", err)
		}
	}
	if err := s.deps.Chat.EndSession(ctx, s.UserID, s.ID); err != nil {
		s.logger.Debug("end session notification failed", "error", err)
	}

	var saveErr error
	if save && s.deps.Progress != nil {
		tp, err := s.deps.Progress.RecordSession(ctx, progress.SessionResult{
			UserID:        s.UserID,
			TopicID:       s.TopicID,
			Duration:      res.Duration,
			Messages:      messages,
			VoiceMessages: voice,
		})
		if err != nil {
			s.logger.Error("record session failed", "error", err)
			saveErr = fmt.Errorf("record session: %w", err)
		} else {
			res.Saved = true
			res.Progress = tp
		}
	}

	if s.deps.Archive != nil {
		if err := s.deps.Archive.Save(ctx, s.Snapshot()); err != nil {
			s.logger.Warn("archive transcript failed", "error", err)
		}
	}

	s.logger.Info("session ended", "state", res.State.String(), "saved", res.Saved, "messages", messages)
	return res, saveErr
}

// View is a point-in-time copy of a session
type View struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	TopicID      string           `json:"topic_id"`
	LevelTag     string           `json:"level_tag"`
	State        string           `json:"state"`
	Recording    string           `json:"recording"`
	Messages     []domain.Message `json:"messages"`
	MessageCount int              `json:"message_count"`
	Completed    bool             `json:"completed"`
	Typing       bool             `json:"typing"`
	PendingLeave bool             `json:"pending_leave"`
	StartedAt    time.Time        `json:"started_at"`
	EndedAt      *time.Time       `json:"ended_at,omitempty"`
}

// Snapshot returns a copy of the session's current state
func (s *Session) Snapshot() *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := &View{
		ID:           s.ID,
		UserID:       s.UserID,
		TopicID:      s.TopicID,
		LevelTag:     s.LevelTag,
		State:        s.state.String(),
		Recording:    s.recording.String(),
		Messages:     append([]domain.Message(nil), s.log...),
		MessageCount: s.messageCount,
		Completed:    s.completed,
		Typing:       s.typing,
		PendingLeave: s.pendingLeave,
		StartedAt:    s.startedAt,
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		v.EndedAt = &ended
	}
	return v
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Recording returns the current recording sub-state
func (s *Session) Recording() RecordingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// MessageCount returns the number of learner messages successfully sent
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// Completed reports whether the tutor has marked the lesson complete
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

func (s *Session) checkInputLocked() error {
	switch {
	case s.state.Terminal():
		return ErrSessionEnded
	case s.state == StateInitializing || s.state == StateAwaitingGreeting:
		return ErrNotReady
	case s.typing:
		return ErrTutorTyping
	case s.pendingLeave:
		return ErrLeavePending
	}
	return nil
}

func (s *Session) appendLocked(sender domain.Sender, text string) domain.Message {
	msg, err := domain.NewMessage(sender, text, s.deps.Now())
	if err != nil {
		// senders and texts are produced locally and never empty
		panic(err)
	}
	s.log = append(s.log, msg)
	return msg
}

func (s *Session) markFailedLocked(id uuid.UUID) {
	for i := range s.log {
		if s.log[i].ID == id {
			s.log[i].Failed = true
			return
		}
	}
}

// historyLocked returns the last HistoryTail entries that reached the tutor
func (s *Session) historyLocked() []tutor.Turn {
	turns := make([]tutor.Turn, 0, HistoryTail)
	for i := len(s.log) - 1; i >= 0 && len(turns) < HistoryTail; i-- {
		m := s.log[i]
		if m.Failed {
			continue
		}
		turns = append(turns, tutor.Turn{Role: m.Role(), Text: m.Text})
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns
}

// IsLocalError reports whether err is a rejection produced by the session
// itself rather than by a collaborator.
func IsLocalError(err error) bool {
	for _, target := range []error{
		ErrTutorTyping, ErrNotReady, ErrSessionEnded, ErrRecordingBusy,
		ErrRecordingNotActive, ErrNoPendingLeave, ErrLeavePending, ErrVoiceUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
