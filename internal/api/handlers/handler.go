package handlers

import (
	"errors"
	"net/http"

	"studybuddy/internal/gemini"
	"studybuddy/internal/ingest"
	"studybuddy/internal/models"
	"studybuddy/internal/study"
	"studybuddy/internal/studytime"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionIDKey is the gin context key holding the browser session id.
const SessionIDKey = "sessionID"

// User-facing messages
const (
	MsgUnsupportedFile = "Unsupported file type. Please upload a TXT, PDF, or image file."
	MsgEmptyDocument   = "The document appears to be empty or its content could not be read. Please try another file."
	MsgProcessFailed   = "Failed to process the document. Please try again."
	MsgMissingKey      = "API key is not configured. Please ensure the API_KEY environment variable is set."
	MsgNoDocument      = "Please upload a document first."
	MsgChatFailed      = "Failed to get a response from the AI."
	MsgSpeechFailed    = "Failed to generate audio."
	MsgSentenceFailed  = "Failed to generate or play audio for sentence."
	MsgQuizFailed      = "Sorry, I couldn't generate a quiz. Please try again."
	MsgQuizNoDocument  = "Cannot start quiz without document content. Please upload a file first."
	MsgTurnInProgress  = "Please wait for the current answer to finish."
	MsgEmptyMessage    = "Please enter a message."
	MsgNoQuiz          = "There is no quiz in progress."
	MsgQuizNotGraded   = "Please submit your answers before finishing the quiz."
	MsgFileTooLarge    = "The file is too large."
	MsgBadRequest      = "Invalid request."
)

// Handler contains the API handlers dependencies
type Handler struct {
	Service        *study.Service
	Sessions       *study.Registry
	Tracker        *studytime.Tracker
	MaxUploadBytes int64
	Log            *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(service *study.Service, sessions *study.Registry, tracker *studytime.Tracker, maxUploadBytes int64, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Service:        service,
		Sessions:       sessions,
		Tracker:        tracker,
		MaxUploadBytes: maxUploadBytes,
		Log:            log.Named("api"),
	}
}

// session returns the study session of the requesting browser.
func (h *Handler) session(c *gin.Context) *study.Session {
	return h.Sessions.Get(c.GetString(SessionIDKey))
}

// peekSession is session for read-only requests: an unknown id gets a
// fresh session that is not registered.
func (h *Handler) peekSession(c *gin.Context) *study.Session {
	id := c.GetString(SessionIDKey)
	if sess, ok := h.Sessions.Lookup(id); ok {
		return sess
	}
	return study.NewSession(id)
}

// respondError maps an error to its user-facing message and status and
// aborts the request. fallback is used for model and unexpected failures.
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	status, msg := classify(err, fallback)
	if status >= http.StatusInternalServerError {
		h.Log.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("session_id", c.GetString(SessionIDKey)),
			zap.Error(err))
	} else {
		h.Log.Debug("request rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: msg})
}

func classify(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType, MsgUnsupportedFile
	case errors.Is(err, ingest.ErrEmptyDocument), errors.Is(err, ingest.ErrUnreadableDocument):
		return http.StatusUnprocessableEntity, MsgEmptyDocument
	case errors.Is(err, gemini.ErrMissingCredential):
		return http.StatusServiceUnavailable, MsgMissingKey
	case errors.Is(err, study.ErrNoDocument):
		return http.StatusConflict, MsgNoDocument
	case errors.Is(err, study.ErrTurnInProgress):
		return http.StatusConflict, MsgTurnInProgress
	case errors.Is(err, study.ErrEmptyQuestion):
		return http.StatusBadRequest, MsgEmptyMessage
	case errors.Is(err, study.ErrNoQuiz):
		return http.StatusNotFound, MsgNoQuiz
	case errors.Is(err, study.ErrQuizNotSubmitted):
		return http.StatusConflict, MsgQuizNotGraded
	case errors.Is(err, study.ErrInvalidView):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, gemini.ErrModel):
		return http.StatusBadGateway, fallback
	}
	return http.StatusInternalServerError, fallback
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
