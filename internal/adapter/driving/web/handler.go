// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ericfisherdev/chatrelay/internal/adapter/driving/web/templates"
	"github.com/ericfisherdev/chatrelay/internal/adapter/driving/web/templates/pages"
	vm "github.com/ericfisherdev/chatrelay/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/chatrelay/internal/application"
)

const (
	pageTitle = "AI Assistant"

	// maxFormBytes caps the ask form body, transcript included.
	maxFormBytes = 1 << 20

	// maxTurns is how many exchanges the page carries; older ones fall off.
	maxTurns = 20

	// statusClientClosedRequest is logged when the browser goes away mid-request.
	statusClientClosedRequest = 499

	noticeNoCredential = "The server has no API key configured, so I can't answer yet."
	noticeFailed       = "Sorry, I couldn't get an answer from the server. Please try again."
)

// Form field names for the transcript carried between submits.
const (
	fieldTurnQuestion = "turn_question"
	fieldTurnAnswer   = "turn_answer"
	fieldTurnNotice   = "turn_notice"
)

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	chatSvc   *application.ChatService
	statusSvc *application.StatusService
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	chatSvc *application.ChatService,
	statusSvc *application.StatusService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		statusSvc: statusSvc,
		logger:    logger,
	}
}

// ChatPage renders the empty chat page with the ask form.
func (h *Handler) ChatPage(w http.ResponseWriter, r *http.Request) {
	page := h.basePage(w, r)
	h.render(w, r, page)
}

// Ask relays the submitted question through the chat service and renders the
// page with the transcript. Only the new question goes upstream, exactly as
// typed; earlier turns are for display.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	if !validateCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return
	}

	page := h.basePage(w, r)
	page.Turns = turnsFromForm(r.PostForm)

	turn := vm.TurnViewModel{Question: r.PostFormValue("user_input")}

	ex, err := h.chatSvc.Ask(r.Context(), turn.Question)
	switch {
	case err == nil:
		turn.Answer = ex.Answer
		turn.AnswerHTML = RenderAnswer(ex.Answer)
	case errors.Is(err, application.ErrNoCredential):
		turn.Notice = noticeNoCredential
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		h.logger.Debug("web ask cancelled by client")
		w.WriteHeader(statusClientClosedRequest)
		return
	default:
		h.logger.Error("web ask failed", "input_len", len(turn.Question), "error", err)
		turn.Notice = noticeFailed
	}

	page.Turns = appendTurn(page.Turns, turn)
	h.render(w, r, page)
}

// turnsFromForm rebuilds the transcript from the hidden fields. The three
// field lists must line up; a tampered or truncated form drops the history.
// Answers are re-rendered and re-sanitized rather than trusted.
func turnsFromForm(form url.Values) []vm.TurnViewModel {
	questions := form[fieldTurnQuestion]
	answers := form[fieldTurnAnswer]
	notices := form[fieldTurnNotice]
	if len(questions) != len(answers) || len(questions) != len(notices) {
		return nil
	}

	turns := make([]vm.TurnViewModel, 0, len(questions)+1)
	for i := range questions {
		turn := vm.TurnViewModel{
			Question: questions[i],
			Answer:   answers[i],
			Notice:   notices[i],
		}
		if !turn.Failed() {
			turn.AnswerHTML = RenderAnswer(turn.Answer)
		}
		turns = append(turns, turn)
	}
	return turns
}

// appendTurn adds turn and keeps only the newest maxTurns entries.
func appendTurn(turns []vm.TurnViewModel, turn vm.TurnViewModel) []vm.TurnViewModel {
	turns = append(turns, turn)
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	return turns
}

func (h *Handler) basePage(w http.ResponseWriter, r *http.Request) vm.ChatPageViewModel {
	status := h.statusSvc.Current()
	return vm.ChatPageViewModel{
		Title:     pageTitle,
		Status:    status.Message,
		ChatReady: status.ChatReady,
		CSRFToken: ensureCSRFToken(w, r),
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page vm.ChatPageViewModel) {
	layout := templates.Layout(page.Title, pages.Chat(page))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := layout.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render chat page", "error", err)
	}
}
