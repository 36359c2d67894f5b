package main

import (
	"strings"

	"studybuddy/internal/audio"

	"github.com/spf13/cobra"
)

func speakCmd() *cobra.Command {
	var wavDir string

	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Read text aloud with the configured voice",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			player, err := a.player(wavDir)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			data, err := a.gemini.SynthesizeSpeech(ctx, strings.Join(args, " "))
			if err != nil {
				return describe(err, "Failed to generate audio.")
			}
			return audio.PlayBase64(ctx, player, data)
		},
	}
	cmd.Flags().StringVar(&wavDir, "wav-dir", "", "write the audio as a WAV file here when AUDIO_PLAYER is unset")
	return cmd
}
