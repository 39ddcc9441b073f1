package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quizdeck-service/internal/app"
	"github.com/gorilla/websocket"
)

// WSHandler carries a live attempt session over a websocket: commands in,
// state snapshots plus timer ticks out. One connection owns one session.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type navigatePayload struct {
	Position int `json:"position"`
}

type answerPayload struct {
	Value string `json:"value"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type tickPayload struct {
	RemainingMS int64 `json:"remainingMs"`
}

type questionView struct {
	ID      string   `json:"id"`
	Idx     int      `json:"idx"`
	Kind    string   `json:"kind"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
}

type resultView struct {
	Score     int                  `json:"score"`
	Total     int                  `json:"total"`
	Tier      string               `json:"tier"`
	Confirmed bool                 `json:"confirmed"`
	Review    []app.QuestionReview `json:"review,omitempty"`
}

// sessionSnapshot is the full client-facing view of a session. Canonical
// answers never appear here before submission; review carries them only once
// the session is terminal.
type sessionSnapshot struct {
	QuizID      string        `json:"quizId"`
	Title       string        `json:"title"`
	State       app.State     `json:"state"`
	Position    int           `json:"position"`
	Questions   []questionView `json:"questions"`
	Answers     []*string     `json:"answers"`
	RemainingMS int64         `json:"remainingMs"`
	Result      *resultView   `json:"result,omitempty"`
}

// ServeWS upgrades the request and runs the session protocol until the
// client disconnects. Disconnecting mid-attempt keeps the mirrored state, so
// a reconnect resumes with elapsed time counted against the deadline.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	accessCode := r.URL.Query().Get("code")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.Enter(r.Context(), quizID, userID, accessCode)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.Leave(quizID, userID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-session.Events():
				if !ok {
					return
				}
				var msg outboundMessage[any]
				switch event.Type {
				case app.EventTick:
					msg = outboundMessage[any]{Type: "tick", Payload: tickPayload{RemainingMS: event.RemainingMS}}
				case app.EventExpired:
					msg = outboundMessage[any]{Type: "expired", Payload: tickPayload{}}
				case app.EventSubmitted:
					msg = outboundMessage[any]{Type: "submitted", Payload: buildResultView(session, event.Result)}
				default:
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "state", Payload: snapshot(session)}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handleCommand(r.Context(), session, inbound, send)
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleCommand(ctx context.Context, session *app.Session, inbound inboundMessage, send chan<- outboundMessage[any]) {
	fail := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}

	switch inbound.Type {
	case "navigate":
		var payload navigatePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(err)
			return
		}
		if _, err := session.Navigate(payload.Position); err != nil {
			fail(err)
			return
		}
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(err)
			return
		}
		if err := session.Answer(ctx, payload.Value); err != nil {
			fail(err)
			return
		}
	case "submit":
		if err := session.RequestSubmit(); err != nil {
			fail(err)
			return
		}
	case "confirm":
		if _, err := session.ConfirmSubmit(ctx); err != nil {
			fail(err)
			return
		}
	case "cancel":
		if err := session.CancelSubmit(); err != nil {
			fail(err)
			return
		}
	default:
		fail(errUnsupported)
		return
	}
	send <- outboundMessage[any]{Type: "state", Payload: snapshot(session)}
}

var errUnsupported = errors.New("unsupported message type")

func snapshot(session *app.Session) sessionSnapshot {
	quiz := session.Quiz()

	questions := make([]questionView, 0, len(quiz.Questions))
	answers := make([]*string, len(quiz.Questions))
	for position, question := range quiz.Questions {
		questions = append(questions, questionView{
			ID:      question.ID,
			Idx:     question.Idx,
			Kind:    string(question.Kind),
			Prompt:  question.Prompt,
			Options: question.Options,
		})
		if value, ok := session.AnswerAt(position); ok {
			v := value
			answers[position] = &v
		}
	}

	remaining := session.Remaining()
	if remaining < 0 {
		remaining = 0
	}

	snap := sessionSnapshot{
		QuizID:      quiz.ID,
		Title:       quiz.Title,
		State:       session.State(),
		Position:    session.Position(),
		Questions:   questions,
		Answers:     answers,
		RemainingMS: remaining.Milliseconds(),
	}
	if result, ok := session.Result(); ok {
		view := buildResultView(session, result)
		snap.Result = &view
	}
	return snap
}

func buildResultView(session *app.Session, result *app.Result) resultView {
	view := resultView{
		Score:     result.Score,
		Total:     result.Total,
		Tier:      string(result.Tier),
		Confirmed: result.Confirmed,
	}
	if review, err := session.Review(); err == nil {
		view.Review = review
	}
	return view
}
