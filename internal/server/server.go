package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/reviewdb/apiserver/config"
	"github.com/reviewdb/apiserver/internal/db"
	"github.com/reviewdb/apiserver/internal/handlers"
	"github.com/reviewdb/apiserver/internal/mailer"
	"github.com/reviewdb/apiserver/internal/mq"
	"github.com/reviewdb/apiserver/internal/services"
	"github.com/reviewdb/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      mq.Backend
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	userRepo := store.NewUserRepository(dbConn)
	categoryRepo := store.NewCategoryRepository(dbConn)
	genreRepo := store.NewGenreRepository(dbConn)
	titleRepo := store.NewTitleRepository(dbConn)
	reviewRepo := store.NewReviewRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)

	userService := services.NewUserService(userRepo)
	categoryService := services.NewTaxonomyService(categoryRepo)
	genreService := services.NewTaxonomyService(genreRepo)
	titleService := services.NewTitleService(titleRepo)
	reviewService := services.NewReviewService(reviewRepo)
	commentService := services.NewCommentService(commentRepo)

	jwtSecret := strings.TrimSpace(cfg.JWT.Secret)
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	dispatcher, queue, err := buildDispatcher(ctx, cfg, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	requireAuth := handlers.RequireAuth(jwtSecret)
	optionalAuth := handlers.OptionalAuth(jwtSecret)

	adminWritable := handlers.AdminOrReadOnly()
	ownerWritable := handlers.OwnerOrReadOnly()
	adminOnly := handlers.AdminOnly()

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.StripSlashes,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, dispatcher, logger, jwtSecret)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, adminOnly, requireAuth)
	})
	router.Route("/categories", func(r chi.Router) {
		handlers.TaxonomyRouter(r, categoryService, adminWritable, "category", optionalAuth)
	})
	router.Route("/genres", func(r chi.Router) {
		handlers.TaxonomyRouter(r, genreService, adminWritable, "genre", optionalAuth)
	})
	router.Route("/titles", func(r chi.Router) {
		handlers.TitleRouter(r, titleService, adminWritable, cfg.Catalog.MaxYear, optionalAuth)
		r.Route("/{titleID}/reviews", func(r chi.Router) {
			handlers.ReviewRouter(r, reviewService, commentService, titleService, ownerWritable, optionalAuth)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
	}, nil
}

// buildDispatcher selects how confirmation emails leave the process: onto
// the configured broker, or into the log when no broker is configured.
func buildDispatcher(ctx context.Context, cfg config.Config, logger *slog.Logger) (mailer.Dispatcher, mq.Backend, error) {
	if cfg.RabbitMQ.URL == "" && cfg.PubSub.ProjectID == "" {
		logger.Warn("no mail broker configured, confirmation codes go to the log")
		return mailer.NewLogDispatcher(logger), nil, nil
	}

	backend, err := mq.OpenBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return mailer.NewQueueDispatcher(backend, cfg.Mailer.Queue), backend, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	return s.httpServer.Close()
}
