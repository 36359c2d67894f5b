package main

import (
	"bufio"
	"fmt"
	"strings"

	"studybuddy/internal/chat"
	"studybuddy/internal/speech"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func chatCmd() *cobra.Command {
	var voice bool
	var wavDir string

	cmd := &cobra.Command{
		Use:   "chat <file>",
		Short: "Ask questions about a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if _, err := a.load(ctx, args[0]); err != nil {
				return err
			}
			for _, m := range a.session.Snapshot().Messages {
				fmt.Fprintln(out, m.Content)
			}

			var queue *speech.Queue
			if voice {
				player, err := a.player(wavDir)
				if err != nil {
					return err
				}
				queue = speech.NewQueue(ctx, a.service, player, func(sentence string, err error) {
					a.log.Warn("Failed to generate or play audio for sentence.", zap.String("sentence", sentence), zap.Error(err))
				}, a.log)
				defer func() {
					queue.Close()
					queue.Wait()
				}()
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "\n> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}

				sinks := []chat.Sink{chat.Funcs{Fragment: func(f string) { fmt.Fprint(out, f) }}}
				if queue != nil {
					sinks = append(sinks, &chat.SentenceSink{Speak: func(s string) { queue.Enqueue(s) }})
				}
				if _, err := a.service.Ask(ctx, a.session, question, sinks...); err != nil {
					fmt.Fprintln(out, "\nSorry, I encountered an error while generating a response. Please try again.")
					a.log.Debug("chat turn failed", zap.Error(err))
					continue
				}
				fmt.Fprintln(out)
			}
		},
	}
	cmd.Flags().BoolVar(&voice, "voice", false, "read answers aloud sentence by sentence")
	cmd.Flags().StringVar(&wavDir, "wav-dir", "", "write spoken sentences as WAV files here when AUDIO_PLAYER is unset")
	return cmd
}
