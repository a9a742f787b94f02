package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prepvox/PrepVox/internal/auth"
	"github.com/prepvox/PrepVox/internal/genai"
	"github.com/prepvox/PrepVox/internal/interview"
	"github.com/prepvox/PrepVox/internal/models"
	"github.com/prepvox/PrepVox/internal/store"
	"github.com/prepvox/PrepVox/internal/transport"
)

// fakeGenAI returns a fixed valid scorecard for feedback generation. The
// category scores and bullet lists use the text-encoded shapes the
// generator decodes.
type fakeGenAI struct{}

func (f *fakeGenAI) GenerateObject(ctx context.Context, req genai.ObjectRequest) (json.RawMessage, error) {
	encoded, err := models.EncodeCategoryScores([]models.CategoryScore{
		{Name: "Communication Skills", Score: 80, Comment: "Clear"},
		{Name: "Technical Knowledge", Score: 80, Comment: "Solid"},
		{Name: "Problem-Solving", Score: 80, Comment: "Methodical"},
		{Name: "Cultural & Role Fit", Score: 80, Comment: "Good"},
		{Name: "Confidence & Clarity", Score: 80, Comment: "Steady"},
	})
	if err != nil {
		return nil, err
	}
	card := map[string]interface{}{
		"totalScore":          80,
		"categoryScores":      encoded,
		"strengths":           "- Communication",
		"areasForImprovement": "- Depth",
		"finalAssessment":     "Strong overall performance.",
	}
	data, err := json.Marshal(card)
	if err != nil {
		return nil, err
	}
	return data, nil
}

type testEnv struct {
	server  *Server
	handler http.Handler
	store   *store.InMemoryStore
	// lastTransport holds the mock built for the most recent session start.
	lastTransport *transport.MockService
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	st := store.NewInMemoryStore()
	authSvc, err := auth.NewService(st, auth.WithSecret("test-secret"))
	if err != nil {
		t.Fatalf("failed to build auth service: %v", err)
	}

	env := &testEnv{store: st}
	targets := interview.Targets{
		GenerateWorkflowID:     "wf-1",
		InterviewerAssistantID: "asst-1",
	}
	allOpts := append([]Option{
		WithTransportFactory(func() (transport.Service, error) {
			env.lastTransport = transport.NewMockService()
			return env.lastTransport, nil
		}),
	}, opts...)

	env.server = NewServer(st, authSvc, &fakeGenAI{}, targets, allOpts...)
	env.handler = env.server.Handler()
	return env
}

// do performs a request against the route tree, optionally with a session cookie.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// signUpAndIn creates an account and returns its session cookie and user id.
func (e *testEnv) signUpAndIn(t *testing.T, email string) (*http.Cookie, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"name": "Test User", "email": email, "password": "hunter2",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed with status %d: %s", rec.Code, rec.Body.String())
	}
	var signupResp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &signupResp); err != nil {
		t.Fatalf("failed to parse signup response: %v", err)
	}
	var user models.User
	decodeResult(t, signupResp.Result, &user)

	rec = e.do(t, http.MethodPost, "/auth/signin", map[string]string{
		"email": email, "password": "hunter2",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin failed with status %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c, user.ID
		}
	}
	t.Fatal("signin response did not set a session cookie")
	return nil, ""
}

// decodeResult re-marshals an envelope Result into a typed value.
func decodeResult(t *testing.T, result interface{}, out interface{}) {
	t.Helper()
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to re-marshal result: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	cookie, userID := env.signUpAndIn(t, "ada@example.com")

	rec := env.do(t, http.MethodGet, "/auth/me", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /auth/me, got %d", rec.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	var user models.User
	decodeResult(t, resp.Result, &user)
	if user.ID != userID {
		t.Errorf("expected user %s, got %s", userID, user.ID)
	}

	// Duplicate email conflicts.
	rec = env.do(t, http.MethodPost, "/auth/signup", map[string]string{
		"name": "Other", "email": "ada@example.com", "password": "x",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", rec.Code)
	}

	// Wrong password is rejected.
	rec = env.do(t, http.MethodPost, "/auth/signin", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", rec.Code)
	}

	// Protected routes reject missing sessions.
	rec = env.do(t, http.MethodGet, "/auth/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without session, got %d", rec.Code)
	}
}

func TestInterviewEndpoints(t *testing.T) {
	env := newTestEnv(t)
	cookie, userID := env.signUpAndIn(t, "ada@example.com")

	rec := env.do(t, http.MethodPost, "/interviews", map[string]interface{}{
		"role": "Backend Engineer", "level": "Senior", "type": "interview",
		"techstack": []string{"go"}, "questions": []string{"Q1", "Q2"},
	}, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	var created map[string]string
	decodeResult(t, resp.Result, &created)
	interviewID := created["interviewId"]
	if interviewID == "" {
		t.Fatal("expected an interview id")
	}

	// Fetch it back.
	rec = env.do(t, http.MethodGet, "/interviews/"+interviewID, nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	var iv models.Interview
	decodeResult(t, resp.Result, &iv)
	if iv.UserID != userID {
		t.Errorf("expected owner %s, got %s", userID, iv.UserID)
	}
	if iv.Finalized {
		t.Error("new interview must not be finalized")
	}

	// Listing returns the requester's interviews.
	rec = env.do(t, http.MethodGet, "/interviews", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	var listed []models.Interview
	decodeResult(t, resp.Result, &listed)
	if len(listed) != 1 || listed[0].ID != interviewID {
		t.Errorf("expected one owned interview, got %+v", listed)
	}

	// The community feed only shows finalized interviews.
	rec = env.do(t, http.MethodGet, "/interviews/latest", nil, cookie)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	var latest []models.Interview
	decodeResult(t, resp.Result, &latest)
	if len(latest) != 0 {
		t.Errorf("expected empty feed before finalization, got %d entries", len(latest))
	}

	// Validation problems are client errors.
	rec = env.do(t, http.MethodPost, "/interviews", map[string]interface{}{
		"role": "", "type": "interview",
	}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty role, got %d", rec.Code)
	}

	// Unknown interviews are 404.
	rec = env.do(t, http.MethodGet, "/interviews/missing", nil, cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown interview, got %d", rec.Code)
	}
}

func TestFeedbackView(t *testing.T) {
	env := newTestEnv(t)
	cookie, userID := env.signUpAndIn(t, "ada@example.com")

	interviewID, err := env.store.CreateInterview(models.Interview{
		Role: "Backend Engineer", Type: models.InterviewTypeInterview, UserID: userID,
	})
	if err != nil {
		t.Fatalf("failed to seed interview: %v", err)
	}
	scores, err := models.EncodeCategoryScores([]models.CategoryScore{
		{Name: "Communication Skills", Score: 90, Comment: "Clear"},
	})
	if err != nil {
		t.Fatalf("failed to encode categories: %v", err)
	}
	if _, err := env.store.SaveFeedback(models.Feedback{
		InterviewID:         interviewID,
		UserID:              userID,
		TotalScore:          90,
		CategoryScores:      scores,
		Strengths:           "- Communication",
		AreasForImprovement: "- Depth",
		FinalAssessment:     "Good.",
	}); err != nil {
		t.Fatalf("failed to seed feedback: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/interviews/"+interviewID+"/feedback", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	var view feedbackView
	decodeResult(t, resp.Result, &view)
	if len(view.CategoryScores) != 1 || view.CategoryScores[0].Name != "Communication Skills" {
		t.Errorf("unexpected category scores: %+v", view.CategoryScores)
	}
	if len(view.Strengths) != 1 || view.Strengths[0] != "Communication" {
		t.Errorf("unexpected strengths: %+v", view.Strengths)
	}
	if len(view.AreasForImprovement) != 1 || view.AreasForImprovement[0] != "Depth" {
		t.Errorf("unexpected areas: %+v", view.AreasForImprovement)
	}

	// Unauthenticated requests go to sign-in.
	rec = env.do(t, http.MethodGet, "/interviews/"+interviewID+"/feedback", nil, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 without session, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/auth/signin" {
		t.Errorf("expected redirect to /auth/signin, got %q", loc)
	}

	// Absent interviews and absent feedback go to the root.
	rec = env.do(t, http.MethodGet, "/interviews/missing/feedback", nil, cookie)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("expected 303 to / for missing interview, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	bareID, err := env.store.CreateInterview(models.Interview{
		Role: "SRE", Type: models.InterviewTypeInterview, UserID: userID,
	})
	if err != nil {
		t.Fatalf("failed to seed interview: %v", err)
	}
	rec = env.do(t, http.MethodGet, "/interviews/"+bareID+"/feedback", nil, cookie)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("expected 303 to / for missing feedback, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestFeedbackViewToleratesMalformedStoredText(t *testing.T) {
	env := newTestEnv(t)
	cookie, userID := env.signUpAndIn(t, "ada@example.com")

	interviewID, err := env.store.CreateInterview(models.Interview{
		Role: "Backend Engineer", Type: models.InterviewTypeInterview, UserID: userID,
	})
	if err != nil {
		t.Fatalf("failed to seed interview: %v", err)
	}
	if _, err := env.store.SaveFeedback(models.Feedback{
		InterviewID:    interviewID,
		UserID:         userID,
		CategoryScores: "not json at all",
	}); err != nil {
		t.Fatalf("failed to seed feedback: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/interviews/"+interviewID+"/feedback", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite malformed stored text, got %d", rec.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	var view feedbackView
	decodeResult(t, resp.Result, &view)
	if len(view.CategoryScores) != 0 {
		t.Errorf("expected empty category scores for malformed text, got %+v", view.CategoryScores)
	}
	if len(view.Strengths) != 0 {
		t.Errorf("expected empty strengths, got %+v", view.Strengths)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	cookie, userID := env.signUpAndIn(t, "ada@example.com")

	rec := env.do(t, http.MethodPost, "/sessions", map[string]interface{}{
		"type": "generate", "role": "Backend Engineer", "level": "Senior",
	}, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	var state sessionState
	decodeResult(t, resp.Result, &state)
	if state.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if state.InterviewID == "" {
		t.Fatal("expected the generate session to create an interview record")
	}
	ts := env.lastTransport
	if ts == nil {
		t.Fatal("expected a transport to be built")
	}
	calls := ts.StartCalls()
	if len(calls) != 1 || calls[0].Target != "wf-1" {
		t.Fatalf("expected one start against wf-1, got %+v", calls)
	}

	// Drive the session through an active exchange.
	ts.Emit(models.SessionEvent{Type: models.SessionEventCallStart})
	ts.Emit(models.SessionEvent{
		Type:           models.SessionEventTranscript,
		Role:           models.MessageRoleAssistant,
		TranscriptType: models.TranscriptTypeFinal,
		Transcript:     "Tell me about a system you designed.",
	})
	ts.Emit(models.SessionEvent{
		Type:           models.SessionEventTranscript,
		Role:           models.MessageRoleUser,
		TranscriptType: models.TranscriptTypeFinal,
		Transcript:     "I built a queueing service.",
	})

	waitForSessionStatus(t, env, cookie, state.SessionID, string(interview.CallStatusActive))

	// Stop the session; the mock delivers the terminal call-end.
	rec = env.do(t, http.MethodPost, "/sessions/"+state.SessionID+"/stop", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from stop, got %d", rec.Code)
	}

	final := waitForSessionStatus(t, env, cookie, state.SessionID, string(interview.CallStatusFinished))
	if final.Error != "" {
		t.Fatalf("expected clean outcome, got error %q", final.Error)
	}
	if final.FeedbackID == "" {
		t.Fatal("expected feedback to be generated on session end")
	}

	fb, err := env.store.GetFeedbackByInterviewID(final.InterviewID, userID)
	if err != nil {
		t.Fatalf("failed to fetch feedback: %v", err)
	}
	if fb == nil {
		t.Fatal("expected persisted feedback")
	}
	iv, err := env.store.GetInterviewByID(final.InterviewID)
	if err != nil {
		t.Fatalf("failed to fetch interview: %v", err)
	}
	if iv == nil || !iv.Finalized {
		t.Error("expected the interview to be finalized after feedback")
	}
}

func TestSessionOwnershipAndValidation(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.signUpAndIn(t, "ada@example.com")

	// Invalid session types are rejected.
	rec := env.do(t, http.MethodPost, "/sessions", map[string]interface{}{
		"type": "bogus",
	}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid type, got %d", rec.Code)
	}

	// Start a session as the first user.
	rec = env.do(t, http.MethodPost, "/sessions", map[string]interface{}{
		"type": "generate", "role": "Backend Engineer",
	}, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	var state sessionState
	decodeResult(t, resp.Result, &state)

	// Another user cannot see or stop it.
	otherCookie, _ := env.signUpAndIn(t, "bob@example.com")
	rec = env.do(t, http.MethodGet, "/sessions/"+state.SessionID, nil, otherCookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another user's session, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/sessions/"+state.SessionID+"/stop", nil, otherCookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 stopping another user's session, got %d", rec.Code)
	}
}

func TestSessionsUnavailableWithoutTransport(t *testing.T) {
	st := store.NewInMemoryStore()
	authSvc, err := auth.NewService(st, auth.WithSecret("test-secret"))
	if err != nil {
		t.Fatalf("failed to build auth service: %v", err)
	}
	env := &testEnv{store: st}
	env.server = NewServer(st, authSvc, &fakeGenAI{}, interview.Targets{})
	env.handler = env.server.Handler()

	cookie, _ := env.signUpAndIn(t, "ada@example.com")
	rec := env.do(t, http.MethodPost, "/sessions", map[string]interface{}{
		"type": "generate", "role": "Backend Engineer",
	}, cookie)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a session service, got %d", rec.Code)
	}
}

// waitForSessionStatus polls the session endpoint until it reports the
// wanted status or times out.
func waitForSessionStatus(t *testing.T, env *testEnv, cookie *http.Cookie, sessionID, want string) sessionState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var state sessionState
	for time.Now().Before(deadline) {
		rec := env.do(t, http.MethodGet, "/sessions/"+sessionID, nil, cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 from session state, got %d", rec.Code)
		}
		var resp models.APIResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		decodeResult(t, resp.Result, &state)
		if state.Status == want {
			return state
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s never reached status %s (last %s)", sessionID, want, state.Status)
	return state
}
