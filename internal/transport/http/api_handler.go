package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"quizdeck-service/internal/app"
	"quizdeck-service/internal/domain"
)

// APIHandler exposes the plain HTTP contract: quiz fetch (with the caller's
// prior attempt, if any), attempt submission, attempt fetch, and the
// dashboard aggregation. Identity comes from the X-User-ID header; session
// resolution itself is an external collaborator.
type APIHandler struct {
	quizzes   app.QuizRepository
	attempts  app.AttemptGateway
	dashboard *app.DashboardService
}

func NewAPIHandler(quizzes app.QuizRepository, attempts app.AttemptGateway, dashboard *app.DashboardService) *APIHandler {
	return &APIHandler{quizzes: quizzes, attempts: attempts, dashboard: dashboard}
}

// Register mounts the API routes.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /quizzes/{quizID}", h.handleGetQuiz)
	mux.HandleFunc("POST /quizzes/{quizID}/attempts", h.handleSubmitAttempt)
	mux.HandleFunc("GET /quizzes/{quizID}/attempt", h.handleGetAttempt)
	mux.HandleFunc("GET /dashboard", h.handleDashboard)
}

type quizResponse struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Timer     int            `json:"timer"`
	Joinable  bool           `json:"joinable"`
	Questions []questionView `json:"questions"`
	Attempt   *attemptView   `json:"attempt,omitempty"`
}

type attemptView struct {
	ID        string          `json:"id"`
	Answers   []domain.Answer `json:"answers"`
	Score     int             `json:"score"`
	CreatedAt string          `json:"createdAt"`
}

type submitRequest struct {
	Answers []submittedAnswer `json:"answers"`
}

// submittedAnswer uses pointers so a missing idx or answer field is
// distinguishable from a zero value and rejected.
type submittedAnswer struct {
	Idx    *int    `json:"idx"`
	Answer *string `json:"answer"`
}

func (h *APIHandler) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	quiz, err := h.quizzes.GetQuiz(r.Context(), r.PathValue("quizID"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := quizResponse{
		ID:        quiz.ID,
		Title:     quiz.Title,
		Timer:     quiz.TimerSeconds,
		Joinable:  quiz.Joinable(),
		Questions: make([]questionView, 0, len(quiz.Questions)),
	}
	for _, question := range quiz.Questions {
		// canonical answers stay server-side
		resp.Questions = append(resp.Questions, questionView{
			ID:      question.ID,
			Idx:     question.Idx,
			Kind:    string(question.Kind),
			Prompt:  question.Prompt,
			Options: question.Options,
		})
	}

	if attempt, err := h.attempts.Get(r.Context(), quiz.ID, userID); err == nil {
		resp.Attempt = newAttemptView(attempt)
	} else if !errors.Is(err, domain.ErrAttemptNotFound) {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidAnswers)
		return
	}
	if req.Answers == nil {
		writeError(w, domain.ErrInvalidAnswers)
		return
	}
	answers := make([]domain.Answer, 0, len(req.Answers))
	for _, submitted := range req.Answers {
		if submitted.Idx == nil || submitted.Answer == nil {
			writeError(w, domain.ErrInvalidAnswers)
			return
		}
		answers = append(answers, domain.Answer{Idx: *submitted.Idx, Value: *submitted.Answer})
	}

	attempt, err := h.attempts.Submit(r.Context(), r.PathValue("quizID"), userID, answers)
	if err != nil && !errors.Is(err, domain.ErrAttemptExists) {
		writeError(w, err)
		return
	}
	// An already-existing attempt is equivalent in effect to a successful
	// submission; return it with 200 rather than failing the client.
	status := http.StatusCreated
	if errors.Is(err, domain.ErrAttemptExists) {
		status = http.StatusOK
	}
	writeJSON(w, status, attempt)
}

func (h *APIHandler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	attempt, err := h.attempts.Get(r.Context(), r.PathValue("quizID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAttemptView(attempt))
}

func (h *APIHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, domain.ErrUnauthorized)
		return
	}

	overview, err := h.dashboard.Overview(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func newAttemptView(attempt domain.Attempt) *attemptView {
	return &attemptView{
		ID:        attempt.ID,
		Answers:   attempt.Answers,
		Score:     attempt.Score,
		CreatedAt: attempt.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrAttemptNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAnswers), errors.Is(err, domain.ErrMalformedQuiz):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAccessCodeMismatch), errors.Is(err, domain.ErrQuizNotJoinable):
		status = http.StatusForbidden
	}
	http.Error(w, err.Error(), status)
}
