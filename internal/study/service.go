package study

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"studybuddy/internal/audio"
	"studybuddy/internal/chat"
	"studybuddy/internal/ingest"
	"studybuddy/internal/models"
	"studybuddy/internal/speech"

	"go.uber.org/zap"
)

// Gateway is the model API.
type Gateway interface {
	Summarize(ctx context.Context, content, mimeType string) (string, error)
	ChatStream(ctx context.Context, summary, question string, history []models.ChatMessage) iter.Seq2[string, error]
	SynthesizeSpeech(ctx context.Context, text string) (string, error)
	GenerateQuiz(ctx context.Context, content, mimeType string) ([]models.QuizQuestion, error)
}

// Reader extracts content from uploaded files.
type Reader interface {
	Read(ctx context.Context, f ingest.File) (ingest.Result, error)
}

// Archiver keeps a copy of uploaded files.
type Archiver interface {
	ArchiveDocument(ctx context.Context, sessionID, documentID, filename, contentType string, data []byte) (string, error)
}

// Service runs study operations against a session.
type Service struct {
	reader  Reader
	gateway Gateway
	archive Archiver
	log     *zap.Logger
}

// NewService wires a service. archive may be nil.
func NewService(reader Reader, gateway Gateway, archive Archiver, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{reader: reader, gateway: gateway, archive: archive, log: log.Named("study")}
}

// Upload ingests and summarizes a file and loads it into the session. On any
// failure the session keeps its previous document and chat.
func (s *Service) Upload(ctx context.Context, sess *Session, f ingest.File) (*Document, error) {
	res, err := s.reader.Read(ctx, f)
	if err != nil {
		return nil, err
	}

	summary, err := s.gateway.Summarize(ctx, res.Content, res.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("summarizing %s: %w", f.Name, err)
	}

	doc := NewDocument(summary, res)
	sess.LoadDocument(doc)
	s.log.Info("document loaded",
		zap.String("session_id", sess.ID),
		zap.String("name", doc.Name),
		zap.String("mime_type", doc.MIMEType))

	if s.archive != nil {
		url, err := s.archive.ArchiveDocument(ctx, sess.ID, doc.ID.String(), f.Name, res.MIMEType, f.Data)
		if err != nil {
			s.log.Warn("failed to archive document", zap.String("name", f.Name), zap.Error(err))
		} else {
			s.log.Debug("document archived", zap.String("url", url))
		}
	}
	return doc, nil
}

// BeginAsk records the question and returns the turn to stream into.
func (s *Service) BeginAsk(sess *Session, question string) (Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Turn{}, ErrEmptyQuestion
	}
	return sess.BeginTurn(question)
}

// StreamAnswer streams the answer for turn into the session and every sink.
// A failed stream leaves the apology message in place of the answer.
func (s *Service) StreamAnswer(ctx context.Context, sess *Session, turn Turn, sinks ...chat.Sink) (models.ChatMessage, error) {
	return s.streamAnswer(ctx, sess, turn, nil, sinks...)
}

// StreamSpokenAnswer is StreamAnswer with every completed sentence handed to
// q. The turn stays pending until q has spoken all of them and been closed,
// so BeginAsk on the same session fails with ErrTurnInProgress while the
// answer is still being read aloud.
func (s *Service) StreamSpokenAnswer(ctx context.Context, sess *Session, turn Turn, q *speech.Queue, sinks ...chat.Sink) (models.ChatMessage, error) {
	sinks = append(sinks, &chat.SentenceSink{Speak: func(sentence string) { q.Enqueue(sentence) }})
	return s.streamAnswer(ctx, sess, turn, func() {
		q.Close()
		q.Wait()
	}, sinks...)
}

func (s *Service) streamAnswer(ctx context.Context, sess *Session, turn Turn, drain func(), sinks ...chat.Sink) (models.ChatMessage, error) {
	id := turn.Answer.ID
	stream := s.gateway.ChatStream(ctx, turn.Document.Summary, turn.Question.Content, turn.History)
	render := chat.Funcs{Fragment: func(f string) { sess.AppendToMessage(id, f) }}

	text, err := chat.NewTurn().Run(ctx, stream, append([]chat.Sink{render}, sinks...)...)
	if drain != nil {
		drain()
	}
	if err != nil {
		sess.FailTurn(id)
		s.log.Error("chat turn failed", zap.String("session_id", sess.ID), zap.Error(err))
		return models.ChatMessage{ID: id, Role: models.RoleModel, Content: ApologyMessage}, err
	}
	if !sess.CompleteTurn(id) {
		s.log.Debug("dropped late answer", zap.String("session_id", sess.ID), zap.Stringer("message_id", id))
	}
	return models.ChatMessage{ID: id, Role: models.RoleModel, Content: text}, nil
}

// Ask is BeginAsk followed by StreamAnswer.
func (s *Service) Ask(ctx context.Context, sess *Session, question string, sinks ...chat.Sink) (models.ChatMessage, error) {
	turn, err := s.BeginAsk(sess, question)
	if err != nil {
		return models.ChatMessage{}, err
	}
	return s.StreamAnswer(ctx, sess, turn, sinks...)
}

// Speak synthesizes text into a playable clip.
func (s *Service) Speak(ctx context.Context, text string) (*audio.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuestion
	}
	data, err := s.gateway.SynthesizeSpeech(ctx, text)
	if err != nil {
		return nil, err
	}
	return audio.DecodeBase64PCM(data, audio.SampleRate, audio.Channels)
}

// SynthesizeSpeech lets the service feed a speech.Queue.
func (s *Service) SynthesizeSpeech(ctx context.Context, text string) (string, error) {
	return s.gateway.SynthesizeSpeech(ctx, text)
}

// StartQuiz generates a quiz from the loaded document and switches to the
// quiz view. A failed generation leaves the session unchanged.
func (s *Service) StartQuiz(ctx context.Context, sess *Session) (*models.QuizState, error) {
	doc, err := sess.Document()
	if err != nil {
		return nil, err
	}
	content, mimeType := doc.QuizSource()
	if strings.TrimSpace(content) == "" {
		return nil, ErrNoDocument
	}

	questions, err := s.gateway.GenerateQuiz(ctx, content, mimeType)
	if err != nil {
		return nil, fmt.Errorf("generating quiz: %w", err)
	}
	if err := sess.StartQuiz(doc.ID, questions); err != nil {
		return nil, err
	}
	s.log.Info("quiz started", zap.String("session_id", sess.ID), zap.Int("questions", len(questions)))
	return sess.Quiz()
}

func (s *Service) SubmitQuiz(sess *Session, answers map[int]string) (models.QuizResult, error) {
	return sess.SubmitQuiz(answers)
}

func (s *Service) FinishQuiz(sess *Session) (models.QuizResult, error) {
	result, err := sess.FinishQuiz()
	if err != nil {
		return result, err
	}
	s.log.Info("quiz finished",
		zap.String("session_id", sess.ID),
		zap.Int("score", result.Score),
		zap.Int("total", result.Total))
	return result, nil
}
