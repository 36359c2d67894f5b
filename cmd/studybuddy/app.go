package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"studybuddy/internal/audio"
	"studybuddy/internal/config"
	"studybuddy/internal/gemini"
	"studybuddy/internal/ingest"
	"studybuddy/internal/logger"
	"studybuddy/internal/study"

	"go.uber.org/zap"
)

// app is the wiring shared by every subcommand.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	gemini  *gemini.Client
	service *study.Service
	session *study.Session
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Keep the terminal for answers unless asked otherwise.
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	log, err := logger.New(cfg.Env, level)
	if err != nil {
		return nil, err
	}

	client := gemini.NewClient(cfg.Gemini, log)
	reader := ingest.New(ingest.PopplerRenderer{Path: cfg.PdftoppmPath}, log)
	return &app{
		cfg:     cfg,
		log:     log,
		gemini:  client,
		service: study.NewService(reader, client, nil, log),
		session: study.NewSession("cli"),
	}, nil
}

func (a *app) Close() {
	a.gemini.Close()
	a.log.Sync()
}

// load reads path from disk and loads it into the CLI session.
func (a *app) load(ctx context.Context, path string) (*study.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := a.service.Upload(ctx, a.session, ingest.File{Name: filepath.Base(path), Data: data})
	if err != nil {
		return nil, describe(err, "Failed to process the document. Please try again.")
	}
	return doc, nil
}

// player plays through the configured command, or writes WAV files to dir
// when no command is configured.
func (a *app) player(dir string) (audio.Player, error) {
	if a.cfg.AudioPlayer != "" {
		return audio.NewCommandPlayer(a.cfg.AudioPlayer)
	}
	if dir == "" {
		return nil, errors.New("set AUDIO_PLAYER or pass --wav-dir to hear answers")
	}
	return &audio.DirPlayer{Dir: dir}, nil
}

// describe turns known failures into the messages the web client shows.
func describe(err error, fallback string) error {
	switch {
	case errors.Is(err, gemini.ErrMissingCredential):
		return errors.New("API key is not configured. Please ensure the API_KEY environment variable is set.")
	case errors.Is(err, ingest.ErrUnsupportedFileType):
		return errors.New("Unsupported file type. Please upload a TXT, PDF, or image file.")
	case errors.Is(err, ingest.ErrEmptyDocument), errors.Is(err, ingest.ErrUnreadableDocument):
		return errors.New("The document appears to be empty or its content could not be read. Please try another file.")
	}
	return fmt.Errorf("%s (%w)", fallback, err)
}
