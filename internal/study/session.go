// Package study holds the state of a study session and the operations that
// change it.
package study

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"studybuddy/internal/ingest"
	"studybuddy/internal/models"

	"github.com/google/uuid"
)

// MaxActivityEntries is the length of the dashboard activity log.
const MaxActivityEntries = 10

// ApologyMessage replaces an answer that failed to stream.
const ApologyMessage = "Sorry, I encountered an error while generating a response. Please try again."

var (
	ErrNoDocument       = errors.New("no document loaded")
	ErrTurnInProgress   = errors.New("an answer is still being generated")
	ErrNoQuiz           = errors.New("no quiz in progress")
	ErrQuizNotSubmitted = errors.New("quiz has not been submitted")
	ErrInvalidView      = errors.New("unknown view")
	ErrEmptyQuestion    = errors.New("message is empty")
)

// Document is a loaded document: the summary the chat is grounded on and
// the raw content it was made from.
type Document struct {
	ID       uuid.UUID
	Name     string
	MIMEType string
	Summary  string
	Content  string
}

// NewDocument is the only way to pair a summary with its source content.
func NewDocument(summary string, src ingest.Result) *Document {
	return &Document{
		ID:       uuid.New(),
		Name:     src.Name,
		MIMEType: src.MIMEType,
		Summary:  summary,
		Content:  src.Content,
	}
}

// QuizSource is the content a quiz is generated from: image bytes for
// image documents and the raw text otherwise, never the summary.
func (d *Document) QuizSource() (content, mimeType string) {
	return d.Content, d.MIMEType
}

func (d *Document) info() *models.DocumentInfo {
	return &models.DocumentInfo{ID: d.ID, Name: d.Name, MIMEType: d.MIMEType, Summary: d.Summary}
}

// SeedMessage greets the user after a document is analyzed.
func SeedMessage(name string) string {
	return fmt.Sprintf(`I've analyzed "%s". I'm ready to answer your questions about it.`, name)
}

// Stats are process-lifetime dashboard counters.
type Stats struct {
	StudySessions  int
	QuestionsAsked int
	QuizzesTaken   int
	TotalScore     int
	PossibleScore  int
}

// AverageScore is the share of quiz answers that were correct, in percent.
func (s Stats) AverageScore() int {
	if s.QuizzesTaken == 0 || s.PossibleScore == 0 {
		return 0
	}
	return int(math.Round(float64(s.TotalScore) / float64(s.PossibleScore) * 100))
}

type quiz struct {
	questions []models.QuizQuestion
	result    *models.QuizResult
}

// Turn is what a caller needs to stream one answer.
type Turn struct {
	Question models.ChatMessage
	Answer   models.ChatMessage
	Document *Document
	History  []models.ChatMessage
}

// Session is the state of one study session. All methods are safe for
// concurrent use.
type Session struct {
	ID string

	mu       sync.Mutex
	view     models.View
	doc      *Document
	messages []models.ChatMessage
	pending  uuid.UUID
	quiz     *quiz
	voice    bool
	stats    Stats
	activity []models.ActivityLogEntry
	now      func() time.Time
}

func NewSession(id string) *Session {
	return &Session{ID: id, view: models.ViewDashboard, now: time.Now}
}

// LoadDocument replaces the current document, seeds the chat and switches
// to the chat view.
func (s *Session) LoadDocument(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = doc
	s.messages = []models.ChatMessage{models.NewChatMessage(models.RoleModel, SeedMessage(doc.Name))}
	s.pending = uuid.Nil
	s.quiz = nil
	s.view = models.ViewChat
	s.stats.StudySessions++
	s.logActivity(models.ActivityStudy, fmt.Sprintf(`Started studying "%s".`, doc.Name))
}

// BeginTurn records a question and an empty answer to stream into.
// History is the conversation before the question.
func (s *Session) BeginTurn(question string) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return Turn{}, ErrNoDocument
	}
	if s.pending != uuid.Nil {
		return Turn{}, ErrTurnInProgress
	}

	turn := Turn{
		Question: models.NewChatMessage(models.RoleUser, question),
		Answer:   models.NewChatMessage(models.RoleModel, ""),
		Document: s.doc,
		History:  slices.Clone(s.messages),
	}
	s.messages = append(s.messages, turn.Question, turn.Answer)
	s.pending = turn.Answer.ID
	s.stats.QuestionsAsked++
	return turn, nil
}

// AppendToMessage adds a streamed fragment to the pending answer. It reports
// false when the answer no longer exists, e.g. after a new upload.
func (s *Session) AppendToMessage(id uuid.UUID, fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.pendingIndex(id)
	if i < 0 {
		return false
	}
	s.messages[i].Content += fragment
	return true
}

// CompleteTurn ends the pending answer.
func (s *Session) CompleteTurn(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingIndex(id) < 0 {
		return false
	}
	s.pending = uuid.Nil
	return true
}

// FailTurn replaces the pending answer with the apology message.
func (s *Session) FailTurn(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.pendingIndex(id)
	if i < 0 {
		return false
	}
	s.messages[i].Content = ApologyMessage
	s.pending = uuid.Nil
	return true
}

func (s *Session) pendingIndex(id uuid.UUID) int {
	if id == uuid.Nil || id != s.pending {
		return -1
	}
	return slices.IndexFunc(s.messages, func(m models.ChatMessage) bool { return m.ID == id })
}

// Document returns the loaded document, or ErrNoDocument.
func (s *Session) Document() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	return s.doc, nil
}

// StartQuiz installs a generated quiz for the document it was made from.
func (s *Session) StartQuiz(docID uuid.UUID, questions []models.QuizQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil || s.doc.ID != docID {
		return ErrNoDocument
	}
	s.quiz = &quiz{questions: questions}
	s.view = models.ViewQuiz
	return nil
}

// SubmitQuiz grades answers keyed by question index. Submitting twice
// returns the first result.
func (s *Session) SubmitQuiz(answers map[int]string) (models.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiz == nil {
		return models.QuizResult{}, ErrNoQuiz
	}
	if s.quiz.result != nil {
		return *s.quiz.result, nil
	}

	result := Grade(s.quiz.questions, answers)
	s.quiz.result = &result
	return result, nil
}

// Grade scores answers against questions.
func Grade(questions []models.QuizQuestion, answers map[int]string) models.QuizResult {
	result := models.QuizResult{Total: len(questions), Review: make([]models.QuestionReview, len(questions))}
	for i, q := range questions {
		answer := answers[i]
		correct := answer == q.Answer
		if correct {
			result.Score++
		}
		result.Review[i] = models.QuestionReview{QuizQuestion: q, UserAnswer: answer, Correct: correct}
	}
	result.Message = fmt.Sprintf("You scored %d out of %d!", result.Score, result.Total)
	return result
}

// FinishQuiz applies a submitted quiz to the counters and returns to chat.
func (s *Session) FinishQuiz() (models.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiz == nil {
		return models.QuizResult{}, ErrNoQuiz
	}
	if s.quiz.result == nil {
		return models.QuizResult{}, ErrQuizNotSubmitted
	}

	result := *s.quiz.result
	s.stats.QuizzesTaken++
	s.stats.TotalScore += result.Score
	s.stats.PossibleScore += result.Total
	if s.doc != nil {
		s.logActivity(models.ActivityQuiz, fmt.Sprintf(`Scored %d/%d on "%s".`, result.Score, result.Total, s.doc.Name))
	}
	s.quiz = nil
	s.view = models.ViewChat
	return result, nil
}

// NewSession unloads the document and returns to the upload screen.
// Counters and the activity log are kept.
func (s *Session) NewSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = nil
	s.messages = nil
	s.pending = uuid.Nil
	s.quiz = nil
	s.view = models.ViewChat
}

func (s *Session) Navigate(view models.View) error {
	if !view.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidView, view)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
	return nil
}

func (s *Session) SetVoice(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = enabled
}

func (s *Session) VoiceEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// Studying reports whether study time should accrue: a document is loaded
// and the chat or quiz view is active.
func (s *Session) Studying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc != nil && (s.view == models.ViewChat || s.view == models.ViewQuiz)
}

// Empty reports whether the session is still as NewSession left it.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc == nil && s.quiz == nil && !s.voice && s.view == models.ViewDashboard &&
		s.stats == Stats{} && len(s.activity) == 0
}

// Snapshot copies the session state for the client. Quiz answers are
// withheld until the quiz is submitted.
func (s *Session) Snapshot() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := models.SessionState{
		View:         s.view,
		Messages:     slices.Clone(s.messages),
		Answering:    s.pending != uuid.Nil,
		VoiceEnabled: s.voice,
	}
	if state.Messages == nil {
		state.Messages = []models.ChatMessage{}
	}
	if s.doc != nil {
		state.Document = s.doc.info()
	}
	if s.quiz != nil {
		state.Quiz = s.quiz.state()
	}
	return state
}

// Quiz returns the current quiz as the client may see it.
func (s *Session) Quiz() (*models.QuizState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiz == nil {
		return nil, ErrNoQuiz
	}
	return s.quiz.state(), nil
}

func (q *quiz) state() *models.QuizState {
	st := &models.QuizState{Questions: make([]models.PublicQuestion, len(q.questions))}
	for i, question := range q.questions {
		st.Questions[i] = models.PublicQuestion{Question: question.Question, Options: slices.Clone(question.Options)}
	}
	if q.result != nil {
		r := *q.result
		st.Result = &r
	}
	return st
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Dashboard returns the stat cards and the activity log, newest first.
func (s *Session) Dashboard() models.DashboardResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := make([]models.ActivityLogEntry, len(s.activity))
	copy(log, s.activity)
	return models.DashboardResponse{
		Stats: models.DashboardStats{
			StudySessions:  s.stats.StudySessions,
			QuestionsAsked: s.stats.QuestionsAsked,
			QuizzesTaken:   s.stats.QuizzesTaken,
			AverageScore:   s.stats.AverageScore(),
		},
		ActivityLog: log,
	}
}

func (s *Session) logActivity(kind models.ActivityKind, details string) {
	entry := models.ActivityLogEntry{ID: uuid.New(), Kind: kind, Details: details, Timestamp: s.now()}
	s.activity = append([]models.ActivityLogEntry{entry}, s.activity...)
	if len(s.activity) > MaxActivityEntries {
		s.activity = s.activity[:MaxActivityEntries]
	}
}
