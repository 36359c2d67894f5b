package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"studybuddy/internal/models"

	"github.com/spf13/cobra"
)

func quizCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quiz <file>",
		Short: "Take a multiple-choice quiz on a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if _, err := a.load(ctx, args[0]); err != nil {
				return err
			}
			state, err := a.service.StartQuiz(ctx, a.session)
			if err != nil {
				return describe(err, "Sorry, I couldn't generate a quiz. Please try again.")
			}

			answers := askQuestions(cmd.InOrStdin(), cmd.OutOrStdout(), state.Questions)
			if _, err := a.service.SubmitQuiz(a.session, answers); err != nil {
				return err
			}
			result, err := a.service.FinishQuiz(a.session)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

// askQuestions reads one option number per question. Anything else leaves
// the question unanswered.
func askQuestions(in io.Reader, out io.Writer, questions []models.PublicQuestion) map[int]string {
	scanner := bufio.NewScanner(in)
	answers := make(map[int]string, len(questions))
	for i, q := range questions {
		fmt.Fprintf(out, "\n%d. %s\n", i+1, q.Question)
		for j, opt := range q.Options {
			fmt.Fprintf(out, "   %d) %s\n", j+1, opt)
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		n, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err == nil && n >= 1 && n <= len(q.Options) {
			answers[i] = q.Options[n-1]
		}
	}
	return answers
}

func printResult(out io.Writer, result models.QuizResult) {
	fmt.Fprintf(out, "\n%s\n", result.Message)
	for i, r := range result.Review {
		mark := "✗"
		if r.Correct {
			mark = "✓"
		}
		fmt.Fprintf(out, "%s %d. %s (answer: %s)\n", mark, i+1, r.Question, r.Answer)
	}
}
