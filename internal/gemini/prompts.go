package gemini

import "fmt"

const summaryInstruction = "You are an AI Study Buddy. Concisely summarize the key information from %s. " +
	"This summary will be used as the context for a user to ask questions. " +
	"Focus on extracting factual information, key terms, and main concepts."

var imageSummaryPrompt = fmt.Sprintf(summaryInstruction, "this image")

func textSummaryPrompt(content string) string {
	return fmt.Sprintf(summaryInstruction, "the following text") + ` Text: """` + content + `"""`
}

// chatSystemInstruction keeps answers grounded on the summary sent with each question.
const chatSystemInstruction = `You are an expert AI Study Buddy.

**RULES:**
1.  Base all your answers strictly on the information given in the user's prompt which contains the document summary.
2.  Do not use any external knowledge or information.
3.  If the answer cannot be found in the document summary, you MUST explicitly say: "` + RefusalSentence + `"
4.  Keep your answers concise and to the point.`

// RefusalSentence is what the model must answer when the summary has no answer.
const RefusalSentence = "I cannot answer that based on the provided document."

// ChatPrompt builds the final user turn: the summary and the question travel
// together so the grounding text survives history truncation.
func ChatPrompt(summary, question string) string {
	return fmt.Sprintf(`Based on the provided document summary, please answer the following question.

**DOCUMENT SUMMARY:**
"""
%s
"""

**QUESTION:**
%s`, summary, question)
}

const quizInstruction = "generate a 10-question multiple-choice quiz to test understanding. " +
	"Each question must have exactly 4 options. One of the options must be the correct answer."

var imageQuizPrompt = "Based on the content of this image, " + quizInstruction

// QuizPrompt asks for a quiz over raw document text.
func QuizPrompt(content string) string {
	return fmt.Sprintf(`Based on the following document content, %s

**DOCUMENT CONTENT:**
"""
%s
"""`, quizInstruction, content)
}
