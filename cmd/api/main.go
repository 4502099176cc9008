package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"casino-miniapp/internal/config"
	"casino-miniapp/internal/gateway"
	"casino-miniapp/internal/handlers"
	"casino-miniapp/internal/services"
	"casino-miniapp/internal/telegram"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisService, err := services.NewRedisService(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisService.Close()

	jwtService := services.NewJWTService(cfg)
	if cfg.BotToken == "" {
		log.Warn().Msg("BOT_TOKEN is empty, every Telegram launch will be rejected")
	}
	validator := telegram.NewValidator(cfg.BotToken, cfg.InitDataMaxAge)

	backend := gateway.NewHTTPClient(cfg.APIBaseURL, cfg.RequestTimeout)

	hub := handlers.NewWebSocketHub(handlers.DefaultHubConfig())
	go hub.Run(ctx)

	sessions := services.NewSessionManager(backend, hub)
	defer sessions.CloseAll()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Redis:           redisService,
		JWT:             jwtService,
		Auth:            handlers.NewAuthHandler(redisService, jwtService, sessions, validator),
		Game:            handlers.NewGameHandler(sessions, redisService),
		User:            handlers.NewUserHandler(redisService, sessions),
		WebSocket:       handlers.NewWebSocketHandler(hub, sessions, redisService),
		ActionRateLimit: cfg.ActionRateLimit,
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("backend", cfg.APIBaseURL).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
