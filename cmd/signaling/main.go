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
	"github.com/mossy-p/whiteboard-signaling/config"
	"github.com/mossy-p/whiteboard-signaling/internal/handlers"
	"github.com/mossy-p/whiteboard-signaling/internal/logger"
	"github.com/mossy-p/whiteboard-signaling/internal/middleware"
	"github.com/mossy-p/whiteboard-signaling/internal/relay"
	"github.com/mossy-p/whiteboard-signaling/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

func main() {
	configDir := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configDir)
	if err != nil {
		boot := logger.New("info", true)
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to open store")
	}
	defer st.Close()
	log.Info().Str("backend", cfg.Store.Backend).Msg("store ready")

	var reg prometheus.Registerer
	if !cfg.Metrics.Disabled {
		reg = prometheus.DefaultRegisterer
	}
	hub := relay.NewHub(st, log, relay.Options{
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
		SendBuffer:      cfg.WebSocket.SendBuffer,
		Registerer:      reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, st, hub, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting whiteboard relay")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	hub.Close()
}

func newRouter(cfg *config.Config, st store.Store, hub *relay.Hub, log zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": hub.Registry().Len()})
	})

	if !cfg.Metrics.Disabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	rooms := handlers.NewRooms(st, hub, log)
	auth := middleware.JWTAuth(cfg.JWTSecret)

	apiGroup := router.Group("/api")
	{
		// Login endpoint (public)
		apiGroup.POST("/auth/login", handlers.Login(cfg.JWTSecret, log))
		apiGroup.GET("/ice", handlers.ICEConfig(cfg.ICE.STUNServer))

		apiGroup.POST("/rooms", auth, rooms.CreateRoom)
		apiGroup.POST("/rooms/:roomId/join", rooms.JoinRoom)
		apiGroup.PUT("/rooms/:roomId/pages", rooms.SavePages)
		apiGroup.PUT("/rooms/:roomId/title", auth, rooms.UpdateTitle)
	}

	// Rooms are joined with a join-room event once the socket is open
	router.GET("/ws/whiteboard",
		middleware.OptionalJWT(cfg.JWTSecret),
		handlers.HandleSignaling(hub, cfg.RequireAuth, log))

	return router
}
