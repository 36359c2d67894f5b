package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "studybuddy",
		Short:         "Study a document with Gemini from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(summarizeCmd(), quizCmd(), chatCmd(), speakCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
