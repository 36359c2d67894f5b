package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"

	"studybuddy/internal/audio"
	"studybuddy/internal/chat"
	"studybuddy/internal/models"
	"studybuddy/internal/speech"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

type SpeechRequest struct {
	Text string `json:"text" binding:"required"`
}

// Server-sent event names of a chat turn
const (
	EventStart       = "start"
	EventChunk       = "chunk"
	EventAudio       = "audio"
	EventSpeechError = "speech_error"
	EventError       = "error"
	EventDone        = "done"
)

type StartEvent struct {
	Question  models.ChatMessage `json:"question"`
	MessageID uuid.UUID          `json:"message_id"`
}

type ChunkEvent struct {
	MessageID uuid.UUID `json:"message_id"`
	Text      string    `json:"text"`
}

// AudioEvent carries one spoken sentence as a base64 WAV file.
type AudioEvent struct {
	MessageID uuid.UUID `json:"message_id"`
	Seq       int       `json:"seq"`
	WAV       string    `json:"wav"`
}

type SpeechErrorEvent struct {
	Sentence string `json:"sentence"`
	Error    string `json:"error"`
}

type ErrorEvent struct {
	Error   string             `json:"error"`
	Message models.ChatMessage `json:"message"`
}

// eventWriter serializes SSE writes from the stream and the speech worker.
type eventWriter struct {
	mu sync.Mutex
	c  *gin.Context
}

func (w *eventWriter) send(event string, data any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SSEvent(event, data)
	w.c.Writer.Flush()
}

// HandleChat streams the answer to a question as server-sent events. With
// voice enabled every completed sentence is synthesized in order and sent
// as an audio event, and the session accepts no new question until the
// last of them has been sent.
func (h *Handler) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: MsgEmptyMessage})
		return
	}

	sess := h.session(c)
	turn, err := h.Service.BeginAsk(sess, req.Message)
	if err != nil {
		h.respondError(c, err, MsgChatFailed)
		return
	}
	id := turn.Answer.ID
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	w := &eventWriter{c: c}
	w.send(EventStart, StartEvent{Question: turn.Question, MessageID: id})

	sinks := []chat.Sink{chat.Funcs{Fragment: func(f string) {
		w.send(EventChunk, ChunkEvent{MessageID: id, Text: f})
	}}}

	var msg models.ChatMessage
	if sess.VoiceEnabled() {
		seq := 0
		player := audio.PlayerFunc(func(_ context.Context, clip *audio.Clip) error {
			seq++
			w.send(EventAudio, AudioEvent{MessageID: id, Seq: seq, WAV: base64.StdEncoding.EncodeToString(clip.WAV())})
			return nil
		})
		onError := func(sentence string, _ error) {
			w.send(EventSpeechError, SpeechErrorEvent{Sentence: sentence, Error: MsgSentenceFailed})
		}
		queue := speech.NewQueue(ctx, h.Service, player, onError, h.Log)
		msg, err = h.Service.StreamSpokenAnswer(ctx, sess, turn, queue, sinks...)
	} else {
		msg, err = h.Service.StreamAnswer(ctx, sess, turn, sinks...)
	}
	if err != nil {
		_, text := classify(err, MsgChatFailed)
		w.send(EventError, ErrorEvent{Error: text, Message: msg})
		return
	}
	w.send(EventDone, msg)
}

// HandleSpeech returns text read aloud as a WAV file.
func (h *Handler) HandleSpeech(c *gin.Context) {
	var req SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Error: MsgBadRequest})
		return
	}
	clip, err := h.Service.Speak(c.Request.Context(), req.Text)
	if err != nil {
		h.respondError(c, err, MsgSpeechFailed)
		return
	}
	c.Data(http.StatusOK, "audio/wav", clip.WAV())
}
