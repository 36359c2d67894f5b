package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studybuddy/internal/api"
	"studybuddy/internal/api/handlers"
	"studybuddy/internal/config"
	"studybuddy/internal/gemini"
	"studybuddy/internal/ingest"
	"studybuddy/internal/logger"
	"studybuddy/internal/r2"
	"studybuddy/internal/study"
	"studybuddy/internal/studytime"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

const storeName = "studybuddy_session"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	geminiClient := gemini.NewClient(cfg.Gemini, zlog)
	defer geminiClient.Close()
	if cfg.Gemini.APIKey == "" {
		zlog.Warn("GEMINI_API_KEY is not set, model requests will fail")
	}

	r2Client, err := r2.NewClient(ctx, cfg.R2, zlog)
	if err != nil {
		return err
	}
	// A nil *r2.Client must not end up inside the interface.
	var archive study.Archiver
	if r2Client != nil {
		archive = r2Client
	}

	store, err := studytime.Open(ctx, cfg.StudyTime)
	if err != nil {
		return err
	}
	defer store.Close()
	zlog.Info("study time store ready", zap.String("backend", cfg.StudyTime.Backend))

	reader := ingest.New(ingest.PopplerRenderer{Path: cfg.PdftoppmPath}, zlog)
	service := study.NewService(reader, geminiClient, archive, zlog)
	registry := study.NewRegistry()
	go registry.Run(ctx, time.Minute)
	tracker := studytime.NewTracker(store, registry, zlog)
	go tracker.Run(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.MaxUploadBytes()

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		if cfg.IsProduction() {
			return errors.New("SESSION_SECRET must be set in production")
		}
		zlog.Warn("SESSION_SECRET is not set, using a random key; sessions end on restart")
		secret = securecookie.GenerateRandomKey(32)
	}
	sessionStore := cookie.NewStore(secret)
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(study.SessionIdleTimeout / time.Second),
		Secure:   cfg.IsProduction(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(storeName, sessionStore))

	handler := handlers.NewHandler(service, registry, tracker, cfg.MaxUploadBytes(), zlog)
	api.SetupRoutes(router, handler, cfg.FrontendURL, zlog)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}
	zlog.Info("shutting down server")
	cancel()

	// Give server 5 seconds to shut down gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	zlog.Info("server exited properly")
	return nil
}
