package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TrackTalk/cache"
	"TrackTalk/config"
	"TrackTalk/core/catalog"
	"TrackTalk/core/comment"
	"TrackTalk/core/identity"
	"TrackTalk/core/playlist"
	"TrackTalk/core/share"
	"TrackTalk/db"
	"TrackTalk/logger"
	"TrackTalk/repository"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutputPath,
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Connect to the database
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect to database with GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	// Connect to Redis
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()
	logger.Info("connected to Redis")

	// Initialize database schema
	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database", logger.ErrorField(err))
	}

	userRepo := repository.NewMySQLUserRepository(db.DB)
	playlistRepo := repository.NewMySQLPlaylistRepository(db.DB)
	shareRepo := repository.NewMySQLShareRepository(db.DB)
	commentRepo := repository.NewGormCommentRepository(db.GormDB)

	catalogClient := catalog.NewClient(cfg.CatalogAPIURL)
	shareCache := cache.NewShareCache(db.RedisClient, cfg.ShareCacheTTL)

	identityResolver := identity.NewResolver(catalogClient, userRepo)
	shareService := share.NewService(shareRepo, playlistRepo, shareCache)
	commentService := comment.NewService(commentRepo, playlistRepo)
	playlistService := playlist.NewService(playlistRepo, commentRepo, userRepo)

	apiHandler := NewAPIHandler(cfg, catalogClient, identityResolver, shareService, commentService, playlistService, userRepo, playlistRepo)

	server.Handler = newRouter(apiHandler)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

// newRouter builds the full route table.
func newRouter(apiHandler *APIHandler) *mux.Router {
	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/api/health", healthHandler).Methods(http.MethodGet)

	// Playlist endpoints (owner surface)
	router.HandleFunc("/api/playlists", apiHandler.RequireAuth(apiHandler.GetPlaylistsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists", apiHandler.RequireAuth(apiHandler.CreatePlaylistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{playlistId}", apiHandler.RequireAuth(apiHandler.GetPlaylistDetailHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{playlistId}/viewed", apiHandler.RequireAuth(apiHandler.MarkPlaylistViewedHandler)).Methods(http.MethodPost)

	// Comment endpoints
	router.HandleFunc("/api/playlists/{playlistId}/comments", apiHandler.RequireAuth(apiHandler.GetPlaylistCommentsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{playlistId}/comments", apiHandler.RequireAuth(apiHandler.AddPlaylistCommentHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{playlistId}/comments/tracks", apiHandler.RequireAuth(apiHandler.GetGroupedTrackCommentsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{playlistId}/tracks/{trackId}/comments", apiHandler.RequireAuth(apiHandler.GetTrackCommentsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{playlistId}/tracks/{trackId}/comments", apiHandler.RequireAuth(apiHandler.AddTrackCommentHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/comments/{commentId}", apiHandler.RequireAuth(apiHandler.UpdateCommentHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/comments/{commentId}", apiHandler.RequireAuth(apiHandler.DeleteCommentHandler)).Methods(http.MethodDelete)

	// Share management endpoints (owner surface)
	router.HandleFunc("/api/playlists/{playlistId}/share", apiHandler.RequireAuth(apiHandler.CreateShareHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/playlists/{playlistId}/share", apiHandler.RequireAuth(apiHandler.GetShareHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/playlists/{playlistId}/share", apiHandler.RequireAuth(apiHandler.UpdateShareHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/playlists/{playlistId}/share", apiHandler.RequireAuth(apiHandler.RevokeShareHandler)).Methods(http.MethodDelete)

	// Public shared-playlist endpoints
	router.HandleFunc("/api/shared/{shareToken}", apiHandler.OptionalAuth(apiHandler.SharedPlaylistHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/shared/{shareToken}/comments", apiHandler.OptionalAuth(apiHandler.SharedCommentsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/shared/{shareToken}/comments", apiHandler.OptionalAuth(apiHandler.AddSharedCommentHandler)).Methods(http.MethodPost)

	return router
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
