package gemini

import (
	"strings"

	"studybuddy/internal/models"
)

// HistoryWindow is how many prior turns accompany a question.
const HistoryWindow = 6

// RecentHistory prepares chat history for the model. Conversations must start
// with a user turn, so a leading model message (the upload greeting) is
// dropped together with empty turns, and only the last HistoryWindow turns
// are kept.
func RecentHistory(history []models.ChatMessage) []models.ChatMessage {
	filtered := make([]models.ChatMessage, 0, len(history))
	for i, msg := range history {
		if i == 0 && msg.Role == models.RoleModel {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		filtered = append(filtered, msg)
	}
	if len(filtered) > HistoryWindow {
		filtered = filtered[len(filtered)-HistoryWindow:]
	}
	return filtered
}
