package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/learnloop-ai/learnloop/internal/api/handlers"
	appMiddleware "github.com/learnloop-ai/learnloop/internal/api/middlewares"
	"github.com/learnloop-ai/learnloop/internal/config"
	"github.com/learnloop-ai/learnloop/internal/core"
	"github.com/learnloop-ai/learnloop/internal/core/embed"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(
	cfg *config.Config,
	dbclient core.DbClient,
	objclient core.ObjectClient,
	ing handlers.Ingestor,
	embedder *embed.Service,
	llmProvider core.LLMProvider,
	log *zap.Logger,
) *Server {
	authHandler := handlers.NewAuthHandler(dbclient, cfg.JWTSecret)
	notebookHandler := handlers.NewNotebookHandler(dbclient)
	materialHandler := handlers.NewMaterialHandler(dbclient, objclient, ing, log)
	chatHandler := handlers.NewChatHandler(dbclient, embedder, llmProvider)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTAuth(cfg.JWTSecret))

			protected.Route("/notebooks", func(nb chi.Router) {
				nb.Post("/", notebookHandler.Create)
				nb.Get("/", notebookHandler.List)

				nb.Route("/{notebookID}", func(one chi.Router) {
					one.Get("/", notebookHandler.Get)
					one.Patch("/", notebookHandler.Rename)
					one.Delete("/", notebookHandler.Delete)

					one.Post("/materials", materialHandler.Upload)
					one.Get("/materials", materialHandler.List)

					one.Post("/chat", chatHandler.Query)
					one.Get("/search", chatHandler.Search)
				})
			})

			protected.Route("/materials/{materialID}", func(mat chi.Router) {
				mat.Get("/", materialHandler.Get)
				mat.Get("/status", materialHandler.Status)
				mat.Delete("/", materialHandler.Delete)
			})
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
