package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, name, fallback string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		v = fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) handleNextWords(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", "10")
	if limit <= 0 {
		limit = 10
	}

	var exclude []int64
	if raw := r.URL.Query().Get("exclude"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				http.Error(w, `{"error":"exclude must be comma-separated ids"}`, http.StatusBadRequest)
				return
			}
			exclude = append(exclude, id)
		}
	}

	candidates, err := s.engine.NextWords(limit, exclude, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(candidates),
		"candidates": candidates,
	})
}

func (s *Server) handleIntroduce(w http.ResponseWriter, r *http.Request) {
	wordID, ok := urlID(r, "wordID")
	if !ok {
		http.Error(w, `{"error":"invalid word id"}`, http.StatusBadRequest)
		return
	}

	res, err := s.engine.Introduce(wordID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	wordID, ok := urlID(r, "wordID")
	if !ok {
		http.Error(w, `{"error":"invalid word id"}`, http.StatusBadRequest)
		return
	}

	var req struct {
		Rating         int    `json:"rating"`
		Mode           string `json:"mode"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	res, err := s.engine.SubmitReview(wordID, req.Rating, req.Mode, req.IdempotencyKey, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	wordID, ok := urlID(r, "wordID")
	if !ok {
		http.Error(w, `{"error":"invalid word id"}`, http.StatusBadRequest)
		return
	}
	if err := s.engine.Suspend(wordID, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "suspended"})
}

func (s *Server) handleUnsuspend(w http.ResponseWriter, r *http.Request) {
	wordID, ok := urlID(r, "wordID")
	if !ok {
		http.Error(w, `{"error":"invalid word id"}`, http.StatusBadRequest)
		return
	}
	if err := s.engine.Unsuspend(wordID, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

func (s *Server) handleGenerateSentences(w http.ResponseWriter, r *http.Request) {
	wordID, ok := urlID(r, "wordID")
	if !ok {
		http.Error(w, `{"error":"invalid word id"}`, http.StatusBadRequest)
		return
	}
	count := queryInt(r, "count", "3")

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	sentences, err := s.engine.GenerateSentences(ctx, wordID, count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(sentences),
		"sentences": sentences,
	})
}

func (s *Server) handleCohort(w http.ResponseWriter, r *http.Request) {
	cohort, stats, err := s.engine.Cohort(time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":   stats,
		"members": cohort,
	})
}

func (s *Server) handleSentenceReview(w http.ResponseWriter, r *http.Request) {
	sentenceID, ok := urlID(r, "sentenceID")
	if !ok {
		http.Error(w, `{"error":"invalid sentence id"}`, http.StatusBadRequest)
		return
	}

	var req struct {
		Signal         string  `json:"signal"`
		Missed         []int64 `json:"missed"`
		IdempotencyKey string  `json:"idempotency_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	res, err := s.engine.SubmitSentenceReview(sentenceID, req.Signal, req.Missed, req.IdempotencyKey, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListening(w http.ResponseWriter, r *http.Request) {
	sentenceID, ok := urlID(r, "sentenceID")
	if !ok {
		http.Error(w, `{"error":"invalid sentence id"}`, http.StatusBadRequest)
		return
	}
	report, err := s.engine.ListeningReadiness(sentenceID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleListeningForTarget rates every stored sentence for a target word and
// returns the ones safe for aural-only practice.
func (s *Server) handleListeningForTarget(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(r.URL.Query().Get("target"), 10, 64)
	if err != nil || targetID <= 0 {
		http.Error(w, `{"error":"target parameter required"}`, http.StatusBadRequest)
		return
	}

	sentences, err := s.db.SentencesForTarget(targetID, 50)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	type eligibleJSON struct {
		SentenceID int64   `json:"sentence_id"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	eligible := []eligibleJSON{}
	for _, sent := range sentences {
		report, err := s.engine.ListeningReadiness(sent.ID, now)
		if err != nil {
			writeError(w, err)
			return
		}
		if report.Eligible {
			eligible = append(eligible, eligibleJSON{sent.ID, sent.Text, report.Confidence})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"target":    targetID,
		"count":     len(eligible),
		"sentences": eligible,
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.ActiveTopic(time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	avail, err := s.db.AvailableByDomain()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active":           st.ActiveTopic,
		"words_introduced": st.WordsIntroduced,
		"available":        avail,
	})
}

func (s *Server) handleSetTopic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if err := s.engine.SetTopic(req.Domain, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": req.Domain})
}

func (s *Server) handleTopicHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", "20")
	history, err := s.db.TopicHistory(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(history),
		"eras":  history,
	})
}

func (s *Server) handleGrammar(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	progress, err := s.engine.GrammarProgress(now)
	if err != nil {
		writeError(w, err)
		return
	}
	tier, err := s.engine.UnlockedTier(now)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"unlocked_tier": tier,
		"tiers":         progress,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	byState, err := s.db.CountByState()
	if err != nil {
		writeError(w, err)
		return
	}
	known, err := s.db.KnownWordCount()
	if err != nil {
		writeError(w, err)
		return
	}
	words, err := s.db.CountWords()
	if err != nil {
		writeError(w, err)
		return
	}
	reviews, err := s.db.CountReviews()
	if err != nil {
		writeError(w, err)
		return
	}
	cohortStats, err := s.engine.CohortStats(time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"words":       words,
		"known_words": known,
		"by_state":    byState,
		"reviews":     reviews,
		"cohort":      cohortStats,
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", "50")
	entries, err := s.db.RecentActivity(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}
