package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"studybuddy/internal/api/handlers"
	"studybuddy/internal/gemini"
	"studybuddy/internal/ingest"
	"studybuddy/internal/models"
	"studybuddy/internal/study"
	"studybuddy/internal/studytime"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu         sync.Mutex
	summaryErr error
	chunks     []string
	chatErr    error
	audio      string
	quiz       []models.QuizQuestion
	quizErr    error

	// synthDelay slows every synthesis down; synthStarted, when set,
	// receives a value as each one begins.
	synthDelay   time.Duration
	synthStarted chan struct{}
	synthActive  atomic.Int32
	synthPeak    atomic.Int32
}

func (g *fakeGateway) Summarize(context.Context, string, string) (string, error) {
	if g.summaryErr != nil {
		return "", g.summaryErr
	}
	return "A short summary.", nil
}

func (g *fakeGateway) ChatStream(context.Context, string, string, []models.ChatMessage) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range g.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if g.chatErr != nil {
			yield("", g.chatErr)
		}
	}
}

func (g *fakeGateway) SynthesizeSpeech(context.Context, string) (string, error) {
	n := g.synthActive.Add(1)
	defer g.synthActive.Add(-1)
	for {
		peak := g.synthPeak.Load()
		if n <= peak || g.synthPeak.CompareAndSwap(peak, n) {
			break
		}
	}
	if g.synthStarted != nil {
		select {
		case g.synthStarted <- struct{}{}:
		default:
		}
	}
	time.Sleep(g.synthDelay)

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.audio, nil
}

func (g *fakeGateway) GenerateQuiz(context.Context, string, string) ([]models.QuizQuestion, error) {
	return g.quiz, g.quizErr
}

func tenQuestions() []models.QuizQuestion {
	qs := make([]models.QuizQuestion, 10)
	for i := range qs {
		qs[i] = models.QuizQuestion{
			Question: fmt.Sprintf("Q%d?", i+1),
			Options:  []string{"a", "b", "c", "d"},
			Answer:   "b",
		}
	}
	return qs
}

// pcmAudio is base64 of two 16-bit samples.
var pcmAudio = base64.StdEncoding.EncodeToString([]byte{1, 0, 2, 0})

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	sessions *study.Registry
	tracker  *studytime.Tracker
	cookies  []*http.Cookie
}

func newTestServer(t *testing.T, g *fakeGateway) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := study.NewRegistry()
	tracker := studytime.NewTracker(studytime.NewMemoryStore(), registry, nil)
	svc := study.NewService(ingest.New(nil, nil), g, nil, nil)
	handler := handlers.NewHandler(svc, registry, tracker, 1024, nil)

	router := gin.New()
	router.Use(sessions.Sessions("studybuddy_session", cookie.NewStore([]byte("test-secret"))))
	SetupRoutes(router, handler, "http://localhost:5173/", nil)

	return &testServer{t: t, router: router, sessions: registry, tracker: tracker}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range s.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if cs := w.Result().Cookies(); len(cs) > 0 {
		s.cookies = cs
	}
	return w
}

func (s *testServer) json(method, path string, body any) *httptest.ResponseRecorder {
	return s.do(s.jsonRequest(method, path, body))
}

func (s *testServer) jsonRequest(method, path string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (s *testServer) upload(name, contentType string, data []byte) *httptest.ResponseRecorder {
	body, formType := s.multipartFile(name, contentType, data)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", formType)
	return s.do(req)
}

func (s *testServer) multipartFile(name, contentType string, data []byte) (*bytes.Buffer, string) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(s.t, err)
	_, err = part.Write(data)
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())
	return &body, mw.FormDataContentType()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type event struct {
	name string
	data string
}

func parseEvents(t *testing.T, body string) []event {
	t.Helper()
	var events []event
	for _, block := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var ev event
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event:"):
				ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				ev.data = strings.TrimPrefix(line, "data:")
			}
		}
		events = append(events, ev)
	}
	return events
}

func eventsNamed(events []event, name string) []event {
	var out []event
	for _, ev := range events {
		if ev.name == name {
			out = append(out, ev)
		}
	}
	return out
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	w := s.json(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	w := s.do(httptest.NewRequest(http.MethodOptions, "/api/state", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestStateAssignsSessionCookie(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	w := s.json(http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, s.cookies)
	assert.Equal(t, "studybuddy_session", s.cookies[0].Name)

	state := decode[models.SessionState](t, w)
	assert.Equal(t, models.ViewDashboard, state.View)
	assert.Nil(t, state.Document)

	s.json(http.MethodGet, "/api/state", nil)
	assert.Equal(t, 0, s.sessions.Len())

	s.json(http.MethodPut, "/api/voice", gin.H{"enabled": true})
	s.json(http.MethodGet, "/api/state", nil)
	assert.Equal(t, 1, s.sessions.Len())
}

func TestCookielessReadsDoNotRegisterSessions(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	for range 50 {
		for _, path := range []string{"/api/state", "/api/dashboard", "/api/analytics"} {
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			require.Equal(t, http.StatusOK, w.Code, path)
		}
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/quiz", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	}
	assert.Equal(t, 0, s.sessions.Len())
}

func TestUploadThenChatStreamsAnswer(t *testing.T) {
	g := &fakeGateway{chunks: []string{"Photosynthesis ", "makes sugar."}}
	s := newTestServer(t, g)

	w := s.upload("notes.txt", "text/plain", []byte("Plants convert light into energy."))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	state := decode[models.SessionState](t, w)
	require.NotNil(t, state.Document)
	assert.Equal(t, "notes.txt", state.Document.Name)
	assert.Equal(t, "A short summary.", state.Document.Summary)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, models.RoleModel, state.Messages[0].Role)

	w = s.json(http.MethodPost, "/api/chat", handlers.ChatRequest{Message: "What is it?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	events := parseEvents(t, w.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, handlers.EventStart, events[0].name)
	assert.Len(t, eventsNamed(events, handlers.EventChunk), 2)
	assert.Empty(t, eventsNamed(events, handlers.EventAudio))

	done := eventsNamed(events, handlers.EventDone)
	require.Len(t, done, 1)
	var answer models.ChatMessage
	require.NoError(t, json.Unmarshal([]byte(done[0].data), &answer))
	assert.Equal(t, "Photosynthesis makes sugar.", answer.Content)

	state = decode[models.SessionState](t, s.json(http.MethodGet, "/api/state", nil))
	require.Len(t, state.Messages, 3)
	assert.Equal(t, "What is it?", state.Messages[1].Content)
	assert.False(t, state.Answering)
}

func TestChatFailureSendsApology(t *testing.T) {
	g := &fakeGateway{chunks: []string{"Partial"}, chatErr: &gemini.Error{Op: "chat", Err: errors.New("boom")}}
	s := newTestServer(t, g)
	require.Equal(t, http.StatusCreated, s.upload("notes.txt", "text/plain", []byte("text")).Code)

	w := s.json(http.MethodPost, "/api/chat", handlers.ChatRequest{Message: "Why?"})
	events := parseEvents(t, w.Body.String())
	failed := eventsNamed(events, handlers.EventError)
	require.Len(t, failed, 1)
	assert.Empty(t, eventsNamed(events, handlers.EventDone))

	var payload handlers.ErrorEvent
	require.NoError(t, json.Unmarshal([]byte(failed[0].data), &payload))
	assert.Equal(t, handlers.MsgChatFailed, payload.Error)
	assert.Equal(t, study.ApologyMessage, payload.Message.Content)
}

func TestChatWithVoiceSendsAudioPerSentence(t *testing.T) {
	g := &fakeGateway{chunks: []string{"Hello there. How", " are you?"}, audio: pcmAudio}
	s := newTestServer(t, g)
	require.Equal(t, http.StatusCreated, s.upload("notes.txt", "text/plain", []byte("text")).Code)
	require.Equal(t, http.StatusOK, s.json(http.MethodPut, "/api/voice", gin.H{"enabled": true}).Code)

	w := s.json(http.MethodPost, "/api/chat", handlers.ChatRequest{Message: "Hi"})
	events := parseEvents(t, w.Body.String())

	clips := eventsNamed(events, handlers.EventAudio)
	require.Len(t, clips, 2)
	for i, ev := range clips {
		var payload handlers.AudioEvent
		require.NoError(t, json.Unmarshal([]byte(ev.data), &payload))
		assert.Equal(t, i+1, payload.Seq)
		wav, err := base64.StdEncoding.DecodeString(payload.WAV)
		require.NoError(t, err)
		assert.Equal(t, "RIFF", string(wav[:4]))
	}
	assert.Equal(t, handlers.EventDone, events[len(events)-1].name)
}

func TestVoiceAnswersNeverOverlap(t *testing.T) {
	g := &fakeGateway{
		chunks:       []string{"First sentence. Second sentence."},
		audio:        pcmAudio,
		synthDelay:   50 * time.Millisecond,
		synthStarted: make(chan struct{}, 1),
	}
	s := newTestServer(t, g)
	require.Equal(t, http.StatusCreated, s.upload("notes.txt", "text/plain", []byte("text")).Code)
	require.Equal(t, http.StatusOK, s.json(http.MethodPut, "/api/voice", gin.H{"enabled": true}).Code)

	req := s.jsonRequest(http.MethodPost, "/api/chat", handlers.ChatRequest{Message: "first"})
	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- s.do(req) }()

	select {
	case <-g.synthStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("first answer was never spoken")
	}

	w := s.json(http.MethodPost, "/api/chat", handlers.ChatRequest{Message: "second"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, handlers.MsgTurnInProgress, decode[models.ErrorResponse](t, w).Error)

	events := parseEvents(t, (<-first).Body.String())
	assert.Len(t, eventsNamed(events, handlers.EventAudio), 2)
	assert.Equal(t, handlers.EventDone, events[len(events)-1].name)
	assert.EqualValues(t, 1, g.synthPeak.Load())

	w = s.json(http.MethodPost, "/api/chat", handlers.ChatRequest{Message: "third"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, eventsNamed(parseEvents(t, w.Body.String()), handlers.EventAudio), 2)
	assert.EqualValues(t, 1, g.synthPeak.Load())
}

func TestChatWithUndecodableAudioReportsSentence(t *testing.T) {
	g := &fakeGateway{chunks: []string{"One sentence."}, audio: "%%%"}
	s := newTestServer(t, g)
	require.Equal(t, http.StatusCreated, s.upload("notes.txt", "text/plain", []byte("text")).Code)
	s.json(http.MethodPut, "/api/voice", gin.H{"enabled": true})

	events := parseEvents(t, s.json(http.MethodPost, "/api/chat", handlers.ChatRequest{Message: "Hi"}).Body.String())
	failed := eventsNamed(events, handlers.EventSpeechError)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].data, handlers.MsgSentenceFailed)
	assert.Len(t, eventsNamed(events, handlers.EventDone), 1)
}

func TestChatRequiresDocument(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	w := s.json(http.MethodPost, "/api/chat", handlers.ChatRequest{Message: "Hello"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, handlers.MsgNoDocument, decode[models.ErrorResponse](t, w).Error)
}

func TestChatRejectsBlankMessage(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	require.Equal(t, http.StatusCreated, s.upload("notes.txt", "text/plain", []byte("text")).Code)
	w := s.json(http.MethodPost, "/api/chat", handlers.ChatRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name        string
		gateway     *fakeGateway
		filename    string
		contentType string
		data        []byte
		status      int
		message     string
	}{
		{"unsupported type", &fakeGateway{}, "notes.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("PK\x03\x04"), http.StatusUnsupportedMediaType, handlers.MsgUnsupportedFile},
		{"empty text", &fakeGateway{}, "empty.txt", "text/plain", []byte("  \n "), http.StatusUnprocessableEntity, handlers.MsgEmptyDocument},
		{"summary failure", &fakeGateway{summaryErr: &gemini.Error{Op: "summarize", Err: errors.New("quota")}}, "notes.txt", "text/plain", []byte("text"), http.StatusBadGateway, handlers.MsgProcessFailed},
		{"missing key", &fakeGateway{summaryErr: gemini.ErrMissingCredential}, "notes.txt", "text/plain", []byte("text"), http.StatusServiceUnavailable, handlers.MsgMissingKey},
		{"too large", &fakeGateway{}, "big.txt", "text/plain", bytes.Repeat([]byte("a"), 2048), http.StatusRequestEntityTooLarge, handlers.MsgFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.gateway)
			w := s.upload(tt.filename, tt.contentType, tt.data)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decode[models.ErrorResponse](t, w).Error)

			state := decode[models.SessionState](t, s.json(http.MethodGet, "/api/state", nil))
			assert.Nil(t, state.Document)
		})
	}
}

func TestOversizedUploadIsRejectedWhileStreaming(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	body, formType := s.multipartFile("big.txt", "text/plain", bytes.Repeat([]byte("a"), 64<<10))

	// Without a Content-Length the body limit is the only guard.
	req := httptest.NewRequest(http.MethodPost, "/api/documents", io.NopCloser(bytes.NewReader(body.Bytes())))
	req.Header.Set("Content-Type", formType)
	require.EqualValues(t, -1, req.ContentLength)
	w := s.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, handlers.MsgFileTooLarge, decode[models.ErrorResponse](t, w).Error)

	req = httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", formType)
	w = s.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, s.sessions.Len())
}

func TestQuizFlow(t *testing.T) {
	s := newTestServer(t, &fakeGateway{quiz: tenQuestions()})
	require.Equal(t, http.StatusCreated, s.upload("bio.txt", "text/plain", []byte("Cells divide.")).Code)

	w := s.json(http.MethodPost, "/api/quiz", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), `"answer"`)
	quiz := decode[models.QuizState](t, w)
	require.Len(t, quiz.Questions, 10)
	assert.Nil(t, quiz.Result)

	state := decode[models.SessionState](t, s.json(http.MethodGet, "/api/state", nil))
	assert.Equal(t, models.ViewQuiz, state.View)

	answers := map[int]string{}
	for i := range 10 {
		answers[i] = "a"
		if i < 7 {
			answers[i] = "b"
		}
	}
	w = s.json(http.MethodPost, "/api/quiz/submit", handlers.SubmitQuizRequest{Answers: answers})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[models.QuizResult](t, w)
	assert.Equal(t, 7, result.Score)
	assert.Equal(t, 10, result.Total)

	quiz = decode[models.QuizState](t, s.json(http.MethodGet, "/api/quiz", nil))
	require.NotNil(t, quiz.Result)
	assert.Equal(t, 7, quiz.Result.Score)

	require.Equal(t, http.StatusOK, s.json(http.MethodPost, "/api/quiz/finish", nil).Code)

	dash := decode[models.DashboardResponse](t, s.json(http.MethodGet, "/api/dashboard", nil))
	assert.Equal(t, 1, dash.Stats.QuizzesTaken)
	assert.Equal(t, 70, dash.Stats.AverageScore)
	require.NotEmpty(t, dash.ActivityLog)
	assert.Equal(t, `Scored 7/10 on "bio.txt".`, dash.ActivityLog[0].Details)

	state = decode[models.SessionState](t, s.json(http.MethodGet, "/api/state", nil))
	assert.Equal(t, models.ViewChat, state.View)
	assert.Nil(t, state.Quiz)
}

func TestQuizErrors(t *testing.T) {
	s := newTestServer(t, &fakeGateway{quizErr: &gemini.Error{Op: "quiz", Err: gemini.ErrInvalidQuiz}})

	w := s.json(http.MethodPost, "/api/quiz", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, handlers.MsgQuizNoDocument, decode[models.ErrorResponse](t, w).Error)

	assert.Equal(t, http.StatusNotFound, s.json(http.MethodGet, "/api/quiz", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.json(http.MethodPost, "/api/quiz/finish", nil).Code)

	require.Equal(t, http.StatusCreated, s.upload("bio.txt", "text/plain", []byte("Cells divide.")).Code)
	w = s.json(http.MethodPost, "/api/quiz", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, handlers.MsgQuizFailed, decode[models.ErrorResponse](t, w).Error)

	state := decode[models.SessionState](t, s.json(http.MethodGet, "/api/state", nil))
	assert.Equal(t, models.ViewChat, state.View)
}

func TestSetView(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	w := s.json(http.MethodPut, "/api/view", gin.H{"view": "analytics"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ViewAnalytics, decode[models.SessionState](t, w).View)

	w = s.json(http.MethodPut, "/api/view", gin.H{"view": "settings"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNewSessionUnloadsDocument(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	require.Equal(t, http.StatusCreated, s.upload("notes.txt", "text/plain", []byte("text")).Code)

	w := s.json(http.MethodPost, "/api/session/new", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[models.SessionState](t, w)
	assert.Nil(t, state.Document)
	assert.Empty(t, state.Messages)

	dash := decode[models.DashboardResponse](t, s.json(http.MethodGet, "/api/dashboard", nil))
	assert.Equal(t, 1, dash.Stats.StudySessions)
}

func TestAnalyticsReportsStudyTime(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	require.Equal(t, http.StatusCreated, s.upload("notes.txt", "text/plain", []byte("text")).Code)

	for range 3 {
		s.tracker.Tick(context.Background())
	}

	w := s.json(http.MethodGet, "/api/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.AnalyticsResponse](t, w)
	assert.Equal(t, int64(3), got.TotalStudyTime)
	assert.Equal(t, "3s", got.TotalStudyTimeFormatted)
}

func TestSpeechReturnsWAV(t *testing.T) {
	s := newTestServer(t, &fakeGateway{audio: pcmAudio})
	w := s.json(http.MethodPost, "/api/speech", handlers.SpeechRequest{Text: "Read me."})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/wav", w.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF", w.Body.String()[:4])
}
