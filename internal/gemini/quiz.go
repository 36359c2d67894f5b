package gemini

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"studybuddy/internal/models"
)

const (
	// QuizLength is the number of questions requested per quiz
	QuizLength = 10
	// OptionsPerQuestion is the number of answer options per question
	OptionsPerQuestion = 4
)

var codeBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*\\])\\s*```")

// ParseQuiz decodes and validates a quiz payload. Extra questions beyond
// QuizLength are dropped unchecked.
func ParseQuiz(text string) ([]models.QuizQuestion, error) {
	jsonText := extractJSONArray(text)
	if jsonText == "" {
		return nil, fmt.Errorf("%w: no JSON array in response", ErrInvalidQuiz)
	}

	var questions []models.QuizQuestion
	if err := json.Unmarshal([]byte(jsonText), &questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: quiz contained no questions", ErrInvalidQuiz)
	}
	questions = limitQuizSize(questions, QuizLength)
	for i := range questions {
		if err := validateQuestion(&questions[i]); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidQuiz, i+1, err)
		}
	}
	return questions, nil
}

func validateQuestion(q *models.QuizQuestion) error {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return fmt.Errorf("empty question text")
	}
	if len(q.Options) != OptionsPerQuestion {
		return fmt.Errorf("expected %d options, got %d", OptionsPerQuestion, len(q.Options))
	}
	if !slices.Contains(q.Options, q.Answer) {
		return fmt.Errorf("answer %q is not one of the options", q.Answer)
	}
	return nil
}

// extractJSONArray pulls the quiz array out of a response that may be
// wrapped in markdown fences or surrounded by prose.
func extractJSONArray(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") {
		return text
	}
	if m := codeBlockPattern.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return ""
}

func limitQuizSize(questions []models.QuizQuestion, maxQuestions int) []models.QuizQuestion {
	if len(questions) <= maxQuestions {
		return questions
	}
	return questions[:maxQuestions]
}
