package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/felixgeelhaar/lingua/internal/catalog"
	"github.com/felixgeelhaar/lingua/internal/domain"
)

// DefaultRecordingLanguage is used when a recording request names none
const DefaultRecordingLanguage = "en-US"

// Health & Status

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Duration(0)
	if !s.started.IsZero() {
		uptime = time.Since(s.started).Round(time.Second)
	}
	stats := s.catalog.Stats()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":          "running",
		"version":         Version,
		"uptime":          uptime.String(),
		"tutor":           s.tutorMode,
		"llm_providers":   s.llmRegistry.List(),
		"storage":         s.cfg.Storage.Driver,
		"topics":          stats.TopicCount,
		"phrases":         stats.PhraseCount,
		"active_sessions": s.sessions.Active(),
		"queue":           s.consumer != nil,
		"reminders":       s.reminders != nil,
		"telegram":        s.telegram != nil,
	})
}

// handleGetConfig returns the non-secret part of the configuration
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"user":         s.cfg.User.ID,
		"level":        s.cfg.User.Level,
		"storage":      s.cfg.Storage.Driver,
		"tutor_mode":   s.tutorMode,
		"translate_to": s.cfg.Tutor.TranslateTo,
		"llm_default":  s.cfg.LLM.DefaultProvider,
		"reminders": map[string]any{
			"enabled":    s.cfg.Reminders.Enabled,
			"start_hour": s.cfg.Reminders.StartHour,
			"end_hour":   s.cfg.Reminders.EndHour,
		},
		"queue_enabled": s.cfg.Queue.Enabled,
	})
}

// Catalog

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	topics := s.catalog.ListTopics()
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, "invalid level", err)
			return
		}
		topics = s.catalog.TopicsForLevel(level)
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"topics": topics,
		"levels": s.catalog.Levels(),
	})
}

func (s *Server) handleImportPhrases(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path         string `json:"path"`
		Sheet        string `json:"sheet,omitempty"`
		CreateTopics bool   `json:"create_topics,omitempty"`
		DefaultLevel int    `json:"default_level,omitempty"`
		NoHeader     bool   `json:"no_header,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		s.jsonError(w, http.StatusBadRequest, "path is required", nil)
		return
	}

	cfg := catalog.DefaultImportConfig(req.Path)
	cfg.SheetName = req.Sheet
	cfg.CreateTopics = req.CreateTopics
	cfg.SkipHeader = !req.NoHeader
	if req.DefaultLevel > 0 {
		cfg.DefaultLevel = req.DefaultLevel
	}

	result, err := catalog.NewImporter(s.catalog).Import(cfg)
	if err != nil {
		s.writeError(w, "import failed", err)
		return
	}

	// persist into the custom catalog so the phrases survive a restart
	persisted := false
	if dir := s.cfg.Catalog.Dir; dir != "" && result.Added > 0 {
		if err := catalog.WriteLevelFiles(dir, s.catalog.Export()); err != nil {
			s.writeError(w, "failed to save catalog", err)
			return
		}
		persisted = true
	}

	s.logger.Info("phrases imported", "path", req.Path, "added", result.Added, "skipped", result.Skipped)
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"rows":           result.Rows,
		"added":          result.Added,
		"skipped":        result.Skipped,
		"topics_created": result.TopicsCreated,
		"errors":         result.Errors,
		"persisted":      persisted,
	})
}

// Progress

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	summary, err := s.progress.Summary(r.Context(), r.PathValue("user"))
	if err != nil {
		s.writeError(w, "failed to load progress", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	days, ok := s.queryInt(w, r, "days", 7)
	if !ok {
		return
	}
	stats, err := s.progress.DailyStats(r.Context(), r.PathValue("user"), days)
	if err != nil {
		s.writeError(w, "failed to load stats", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"days": stats})
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	p, err := s.progress.Progress(r.Context(), userID)
	if err != nil {
		s.writeError(w, "failed to load achievements", err)
		return
	}

	earned := p.Achievements
	if earned == nil {
		earned = []domain.Achievement{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"achievements": earned,
		"recent":       s.achievements.Recent(userID),
	})
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	extended, err := s.progress.CheckIn(r.Context(), r.PathValue("user"))
	if err != nil {
		s.writeError(w, "check-in failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]bool{"extended": extended})
}

func (s *Server) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level int `json:"level"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	profile, err := s.progress.SetLevel(r.Context(), r.PathValue("user"), req.Level)
	if err != nil {
		s.writeError(w, "failed to set level", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, profile)
}

func (s *Server) handlePronunciation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopicID string `json:"topic_id"`
		Phrase  string `json:"phrase"`
		Score   int    `json:"score"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	err := s.progress.RecordPronunciation(r.Context(), r.PathValue("user"), req.TopicID, req.Phrase, req.Score)
	if err != nil {
		s.writeError(w, "failed to record pronunciation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetTopicProgress(w http.ResponseWriter, r *http.Request) {
	view, err := s.progress.TopicProgress(r.Context(), r.PathValue("user"), r.PathValue("topic"))
	if err != nil {
		s.writeError(w, "failed to load topic progress", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleStartTopic(w http.ResponseWriter, r *http.Request) {
	tp, err := s.progress.StartTopic(r.Context(), r.PathValue("user"), r.PathValue("topic"))
	if err != nil {
		s.writeError(w, "failed to start topic", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, tp)
}

// handlePhrasesLearned credits learned phrases. A named phrase is also
// scheduled for review; otherwise count phrases are credited.
func (s *Server) handlePhrasesLearned(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count       int    `json:"count,omitempty"`
		Phrase      string `json:"phrase,omitempty"`
		Translation string `json:"translation,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	userID, topicID := r.PathValue("user"), r.PathValue("topic")

	if req.Phrase != "" {
		item, err := s.progress.LearnPhrase(r.Context(), userID, topicID, req.Phrase, req.Translation)
		if err != nil {
			s.writeError(w, "failed to learn phrase", err)
			return
		}
		s.jsonResponse(w, http.StatusCreated, item)
		return
	}

	tp, err := s.progress.RecordPhraseLearned(r.Context(), userID, topicID, req.Count)
	if err != nil {
		s.writeError(w, "failed to record phrases", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, tp)
}

func (s *Server) handleCompleteTopic(w http.ResponseWriter, r *http.Request) {
	tp, err := s.progress.CompleteTopic(r.Context(), r.PathValue("user"), r.PathValue("topic"))
	if err != nil {
		s.writeError(w, "failed to complete topic", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, tp)
}

// Reviews

func (s *Server) handleDueReviews(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	items, err := s.reviews.Due(r.Context(), r.PathValue("user"), limit)
	if err != nil {
		s.writeError(w, "failed to load due reviews", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopicID     string `json:"topic_id"`
		Phrase      string `json:"phrase"`
		Translation string `json:"translation"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	item, err := s.reviews.AddPhrase(r.Context(), r.PathValue("user"), req.TopicID, req.Phrase, req.Translation)
	if err != nil {
		s.writeError(w, "failed to add review item", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, item)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quality *int `json:"quality"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Quality == nil {
		s.jsonError(w, http.StatusBadRequest, "quality is required", nil)
		return
	}

	item, err := s.reviews.Review(r.Context(), r.PathValue("user"), r.PathValue("item"), *req.Quality)
	if err != nil {
		s.writeError(w, "review failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, item)
}

// Conversations

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopicID  string `json:"topic_id"`
		LevelTag string `json:"level_tag,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	userID := r.PathValue("user")

	if req.LevelTag == "" {
		p, err := s.progress.Progress(r.Context(), userID)
		if err != nil {
			s.writeError(w, "failed to load profile", err)
			return
		}
		req.LevelTag = p.Profile.LevelTag()
	}

	sess, err := s.sessions.Start(r.Context(), userID, req.TopicID, req.LevelTag)
	if err != nil {
		s.writeError(w, "failed to start session", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.sessions.View(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, "session not found", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, "session not found", err)
		return
	}

	outcome, err := sess.Send(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, "message not sent", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"outcome": outcome,
		"session": sess.Snapshot(),
	})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language,omitempty"`
	}
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	if req.Language == "" {
		req.Language = DefaultRecordingLanguage
	}

	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, "session not found", err)
		return
	}

	outcome, err := sess.StartRecording(r.Context(), req.Language)
	if err != nil {
		s.writeError(w, "recording not started", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"outcome": outcome,
		"session": sess.Snapshot(),
	})
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, "session not found", err)
		return
	}

	outcome, err := sess.StopRecording(r.Context())
	noSpeech := errors.Is(err, domain.ErrNoSpeechDetected)
	if err != nil && !noSpeech {
		s.writeError(w, "recording not stopped", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"outcome":   outcome,
		"no_speech": noSpeech,
		"session":   sess.Snapshot(),
	})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	decision, result, err := s.sessions.Leave(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, "leave failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"decision": decision.String(),
		"result":   result,
	})
}

func (s *Server) handleConfirmLeave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Discard bool `json:"discard"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.sessions.ConfirmLeave(r.Context(), r.PathValue("id"), req.Discard)
	if err != nil {
		s.writeError(w, "confirm leave failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"left":   req.Discard,
		"result": result,
	})
}

// Translation

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string `json:"text"`
		Target string `json:"target,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		s.jsonError(w, http.StatusBadRequest, "text is required", nil)
		return
	}
	if req.Target == "" {
		req.Target = s.cfg.Tutor.TranslateTo
	}
	if s.translator == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "translation is not configured", nil)
		return
	}

	translated, err := s.translator.Translate(r.Context(), req.Text, req.Target)
	if err != nil {
		s.writeError(w, "translation failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"text":        req.Text,
		"target":      req.Target,
		"translation": translated,
	})
}

// decode reads a JSON body, writing a 400 when it is malformed
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func (s *Server) queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		s.jsonError(w, http.StatusBadRequest, "invalid "+key, err)
		return 0, false
	}
	return n, true
}
