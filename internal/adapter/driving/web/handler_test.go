package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/chatrelay/internal/application"
	"github.com/ericfisherdev/chatrelay/internal/domain/port/driven"
)

// stubCompleter implements driven.Completer with a canned reply.
type stubCompleter struct {
	answer  string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.answer, s.err
}

// cancelledCompleter reports the caller's context error, as the SDK does
// when the request context is cancelled.
type cancelledCompleter struct{}

func (cancelledCompleter) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func newTestMux(completer driven.Completer) *http.ServeMux {
	return newTestMuxWithLogger(completer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestMuxWithLogger(completer driven.Completer, logger *slog.Logger) *http.ServeMux {
	chatSvc := application.NewChatService(completer, 0)
	h := NewHandler(chatSvc, application.NewStatusService(chatSvc), logger)

	mux := http.NewServeMux()
	RegisterRoutes(mux, h)
	return mux
}

// askRequest builds a POST /app/ask carrying a matching CSRF cookie and field.
func askRequest(question, token string) *http.Request {
	return askFormRequest(url.Values{"user_input": {question}, "csrf_token": {token}})
}

func askFormRequest(form url.Values) *http.Request {
	token := form.Get("csrf_token")
	req := httptest.NewRequest(http.MethodPost, "/app/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
	return req
}

func TestChatPage_RendersFormAndSetsCookie(t *testing.T) {
	mux := newTestMux(&stubCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, csrfCookieName, cookies[0].Name)

	body := rec.Body.String()
	assert.Contains(t, body, `action="/app/ask"`)
	assert.Contains(t, body, `value="`+cookies[0].Value+`"`)
	assert.Contains(t, body, application.StatusMessage)
	assert.NotContains(t, body, "API key not configured")
}

func TestChatPage_ShowsMissingCredential(t *testing.T) {
	mux := newTestMux(nil)

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "API key not configured")
}

func TestChatPage_ReusesExistingToken(t *testing.T) {
	mux := newTestMux(&stubCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Cookies())
	assert.Contains(t, rec.Body.String(), `value="existing-token"`)
}

func TestAsk_RendersAnswer(t *testing.T) {
	completer := &stubCompleter{answer: "**Go** is great"}
	mux := newTestMux(completer)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, askRequest("  what is <Go>?  ", "tok"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, completer.prompts, 1)
	assert.Equal(t, "  what is <Go>?  ", completer.prompts[0])

	body := rec.Body.String()
	assert.Contains(t, body, "<strong>Go</strong> is great")
	assert.Contains(t, body, "what is &lt;Go&gt;?")
	assert.NotContains(t, body, "<Go>")
}

func TestAsk_RejectsMissingCSRF(t *testing.T) {
	completer := &stubCompleter{answer: "x"}
	mux := newTestMux(completer)

	form := url.Values{"user_input": {"hi"}}
	req := httptest.NewRequest(http.MethodPost, "/app/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, completer.prompts)
}

func TestAsk_RejectsMismatchedCSRF(t *testing.T) {
	completer := &stubCompleter{answer: "x"}
	mux := newTestMux(completer)

	req := askRequest("hi", "form-token")
	req.Header.Del("Cookie")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "cookie-token"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, completer.prompts)
}

func TestAsk_NoCredentialNotice(t *testing.T) {
	mux := newTestMux(nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, askRequest("hi", "tok"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "no API key configured")
}

func TestAsk_UpstreamFailureNotice(t *testing.T) {
	mux := newTestMux(&stubCompleter{err: errors.New("network down")})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, askRequest("hi", "tok"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "couldn&#39;t get an answer")
	assert.NotContains(t, body, "network down")
}

func TestAsk_CarriesTranscript(t *testing.T) {
	completer := &stubCompleter{answer: "second *answer*"}
	mux := newTestMux(completer)

	form := url.Values{
		"csrf_token":    {"tok"},
		"user_input":    {"second question"},
		"turn_question": {"first question", "failed question"},
		"turn_answer":   {"first **answer**", ""},
		"turn_notice":   {"", noticeFailed},
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, askFormRequest(form))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"second question"}, completer.prompts)

	body := rec.Body.String()
	assert.Contains(t, body, "first question")
	assert.Contains(t, body, "first <strong>answer</strong>")
	assert.Contains(t, body, "failed question")
	assert.Contains(t, body, "second <em>answer</em>")
	assert.Less(t, strings.Index(body, "first question"), strings.Index(body, "second question"))

	// Every turn, the new one included, is posted back on the next submit.
	assert.Equal(t, 3, strings.Count(body, `name="turn_question"`))
	assert.Contains(t, body, `name="turn_answer" value="second *answer*"`)
	assert.Contains(t, body, `name="turn_question" value="failed question"`)
}

func TestAsk_ReSanitizesCarriedAnswers(t *testing.T) {
	mux := newTestMux(&stubCompleter{answer: "ok"})

	form := url.Values{
		"csrf_token":    {"tok"},
		"user_input":    {"next"},
		"turn_question": {"q"},
		"turn_answer":   {`<script>alert(1)</script>`},
		"turn_notice":   {""},
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, askFormRequest(form))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
}

func TestAsk_DropsMismatchedTranscript(t *testing.T) {
	mux := newTestMux(&stubCompleter{answer: "fresh"})

	form := url.Values{
		"csrf_token":    {"tok"},
		"user_input":    {"next"},
		"turn_question": {"orphan question", "another"},
		"turn_answer":   {"orphan answer"},
		"turn_notice":   {"", ""},
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, askFormRequest(form))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "orphan")
	assert.Contains(t, body, "fresh")
	assert.Equal(t, 1, strings.Count(body, `name="turn_question"`))
}

func TestAsk_TranscriptKeepsNewestTurns(t *testing.T) {
	mux := newTestMux(&stubCompleter{answer: "latest"})

	form := url.Values{"csrf_token": {"tok"}, "user_input": {"newest"}}
	for i := range maxTurns {
		form.Add("turn_question", fmt.Sprintf("question-%02d", i))
		form.Add("turn_answer", fmt.Sprintf("answer-%02d", i))
		form.Add("turn_notice", "")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, askFormRequest(form))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, maxTurns, strings.Count(body, `name="turn_question"`))
	assert.NotContains(t, body, "question-00")
	assert.Contains(t, body, "question-01")
	assert.Contains(t, body, "newest")
}

func TestAsk_ClientCancelIsNotAnError(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mux := newTestMuxWithLogger(cancelledCompleter{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := askRequest("hi", "tok").WithContext(ctx)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, statusClientClosedRequest, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.NotContains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "cancelled by client")
}

func TestStaticStylesheet(t *testing.T) {
	mux := newTestMux(nil)

	req := httptest.NewRequest(http.MethodGet, "/static/style.css", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "#fee500")
}

func TestStaticScript(t *testing.T) {
	mux := newTestMux(nil)

	req := httptest.NewRequest(http.MethodGet, "/static/chat.js", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bubble ai pending")
}

func TestChatPage_LoadsScript(t *testing.T) {
	mux := newTestMux(&stubCompleter{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app", nil))

	assert.Contains(t, rec.Body.String(), `src="/static/chat.js"`)
}
