package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"studybuddy/internal/config"
	"studybuddy/internal/models"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	ttsgenai "google.golang.org/genai"
)

const (
	// ModelName is the Gemini model used for summaries, chat and quizzes
	ModelName = "gemini-2.5-flash"
	// TTSModelName is the Gemini model used for speech
	TTSModelName = "gemini-2.5-flash-preview-tts"
	// VoiceName is the prebuilt voice used for every sentence
	VoiceName = "Kore"
)

var (
	// ErrMissingCredential is returned by every call when no API key is configured.
	ErrMissingCredential = errors.New("gemini API key is not configured")
	// ErrModel matches every failure reported by the model API.
	ErrModel = errors.New("model request failed")
	// ErrInvalidQuiz is returned when the quiz payload does not match the schema.
	ErrInvalidQuiz = errors.New("could not generate a valid quiz from the document")
	// ErrStreamConsumed is yielded when a chat stream is ranged over twice.
	ErrStreamConsumed = errors.New("chat stream already consumed")
)

// Error wraps any transport, authentication or schema failure of one call.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "gemini " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrModel.
func (e *Error) Is(target error) bool { return target == ErrModel }

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrMissingCredential) {
		return err
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// Client talks to Gemini. The SDK clients are created on first use so a
// missing key only fails the calls that need it.
type Client struct {
	apiKey   string
	model    string
	ttsModel string
	voice    string
	log      *zap.Logger

	mu     sync.Mutex
	client *genai.Client
	tts    *ttsgenai.Client
}

// NewClient creates a client from config. It does not contact the API.
func NewClient(cfg config.GeminiConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		ttsModel: cfg.TTSModel,
		voice:    cfg.Voice,
		log:      log.Named("gemini"),
	}
	if c.model == "" {
		c.model = ModelName
	}
	if c.ttsModel == "" {
		c.ttsModel = TTSModelName
	}
	if c.voice == "" {
		c.voice = VoiceName
	}
	return c
}

// Close closes the Gemini client
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *Client) generativeModel(ctx context.Context) (*genai.GenerativeModel, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredential
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		c.client = client
	}
	// A fresh model per call: GenerativeModel carries per-request settings.
	return c.client.GenerativeModel(c.model), nil
}

// Summarize returns a concise summary of a document. Image content is base64.
func (c *Client) Summarize(ctx context.Context, content, mimeType string) (string, error) {
	model, err := c.generativeModel(ctx)
	if err != nil {
		return "", wrap("summarize", err)
	}

	var parts []genai.Part
	if isImage(mimeType) {
		data, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return "", wrap("summarize", fmt.Errorf("decoding image: %w", err))
		}
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: data}, genai.Text(imageSummaryPrompt))
	} else {
		parts = append(parts, genai.Text(textSummaryPrompt(content)))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", wrap("summarize", err)
	}
	summary := responseText(resp)
	if strings.TrimSpace(summary) == "" {
		return "", wrap("summarize", errors.New("no content generated"))
	}
	c.log.Debug("document summarized", zap.String("mime_type", mimeType), zap.Int("summary_len", len(summary)))
	return summary, nil
}

// ChatStream answers a question about the summary. The returned sequence
// issues the request when it is first ranged over and can be consumed once.
func (c *Client) ChatStream(ctx context.Context, summary, question string, history []models.ChatMessage) iter.Seq2[string, error] {
	var started atomic.Bool
	return func(yield func(string, error) bool) {
		if started.Swap(true) {
			yield("", ErrStreamConsumed)
			return
		}

		model, err := c.generativeModel(ctx)
		if err != nil {
			yield("", wrap("chat", err))
			return
		}
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(chatSystemInstruction)}}

		cs := model.StartChat()
		cs.History = toContents(RecentHistory(history))
		it := cs.SendMessageStream(ctx, genai.Text(ChatPrompt(summary, question)))

		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield("", wrap("chat", err))
				return
			}
			text := responseText(resp)
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// GenerateQuiz builds a ten question quiz from the original document content.
func (c *Client) GenerateQuiz(ctx context.Context, content, mimeType string) ([]models.QuizQuestion, error) {
	model, err := c.generativeModel(ctx)
	if err != nil {
		return nil, wrap("quiz", err)
	}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = quizSchema

	var parts []genai.Part
	if isImage(mimeType) {
		data, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, wrap("quiz", fmt.Errorf("decoding image: %w", err))
		}
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: data}, genai.Text(imageQuizPrompt))
	} else {
		parts = append(parts, genai.Text(QuizPrompt(content)))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, wrap("quiz", err)
	}
	questions, err := ParseQuiz(responseText(resp))
	if err != nil {
		c.log.Warn("invalid quiz payload", zap.Error(err))
		return nil, wrap("quiz", err)
	}
	return questions, nil
}

var quizSchema = &genai.Schema{
	Type:        genai.TypeArray,
	Description: "A list of 10 multiple-choice quiz questions.",
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"question": {Type: genai.TypeString, Description: "The quiz question."},
			"options": {
				Type:        genai.TypeArray,
				Description: "A list of exactly 4 potential answers.",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"answer": {Type: genai.TypeString, Description: "The correct answer, which must be one of the provided options."},
		},
		Required: []string{"question", "options", "answer"},
	},
}

func toContents(history []models.ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		role := "user"
		if msg.Role == models.RoleModel {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}
	return contents
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
