package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a chat message
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ChatMessage is one turn of the study conversation
type ChatMessage struct {
	ID      uuid.UUID `json:"id"`
	Role    Role      `json:"role"`
	Content string    `json:"content"`
}

// NewChatMessage creates a message with a fresh ID
func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{ID: uuid.New(), Role: role, Content: content}
}

// QuizQuestion is a multiple-choice question as returned by Gemini.
// Answer is textually identical to one of the Options.
type QuizQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// ActivityKind classifies dashboard activity log entries
type ActivityKind string

const (
	ActivityStudy ActivityKind = "study"
	ActivityQuiz  ActivityKind = "quiz"
)

// ActivityLogEntry represents a line in the dashboard activity feed
type ActivityLogEntry struct {
	ID        uuid.UUID    `json:"id"`
	Kind      ActivityKind `json:"type"`
	Details   string       `json:"details"`
	Timestamp time.Time    `json:"timestamp"`
}

// View is the screen the client should currently show
type View string

const (
	ViewDashboard View = "dashboard"
	ViewChat      View = "chat"
	ViewQuiz      View = "quiz"
	ViewAnalytics View = "analytics"
)

// Valid reports whether v is one of the known views
func (v View) Valid() bool {
	switch v {
	case ViewDashboard, ViewChat, ViewQuiz, ViewAnalytics:
		return true
	}
	return false
}

// DashboardStats represents the stat cards of the dashboard
type DashboardStats struct {
	StudySessions  int `json:"study_sessions"`
	QuestionsAsked int `json:"questions_asked"`
	QuizzesTaken   int `json:"quizzes_taken"`
	AverageScore   int `json:"average_score"`
}

// DashboardResponse represents the response for the dashboard endpoint
type DashboardResponse struct {
	Stats       DashboardStats     `json:"stats"`
	ActivityLog []ActivityLogEntry `json:"activity_log"`
}

// AnalyticsResponse represents the response for the analytics endpoint
type AnalyticsResponse struct {
	TotalStudyTime          int64  `json:"total_study_time"`
	TotalStudyTimeFormatted string `json:"total_study_time_formatted"`
}

// QuizResult is returned when a quiz is submitted
type QuizResult struct {
	Score   int              `json:"score"`
	Total   int              `json:"total"`
	Message string           `json:"message"`
	Review  []QuestionReview `json:"review"`
}

// QuestionReview pairs a question with the user's choice after submission
type QuestionReview struct {
	QuizQuestion
	UserAnswer string `json:"user_answer"`
	Correct    bool   `json:"correct"`
}

// DocumentInfo describes the loaded document without its raw content
type DocumentInfo struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	MIMEType string    `json:"mime_type"`
	Summary  string    `json:"summary"`
}

// PublicQuestion is a quiz question with its answer withheld
type PublicQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// QuizState is the quiz as shown to the client. Result is set once submitted.
type QuizState struct {
	Questions []PublicQuestion `json:"questions"`
	Result    *QuizResult      `json:"result,omitempty"`
}

// SessionState is a snapshot of one study session
type SessionState struct {
	View         View          `json:"view"`
	Document     *DocumentInfo `json:"document"`
	Messages     []ChatMessage `json:"messages"`
	Answering    bool          `json:"answering"`
	VoiceEnabled bool          `json:"voice_enabled"`
	Quiz         *QuizState    `json:"quiz,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
