package handler

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/personagpt/backend/internal/handler/chat"
	middlewarePkg "github.com/personagpt/backend/internal/middleware"
	chatService "github.com/personagpt/backend/internal/service/chat"
	"github.com/personagpt/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. staticDir may be empty to
// run API-only.
func NewRouter(chatSvc *chatService.Service, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(chatSvc)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	registerStatic(r, staticDir)

	// Registered after the mounts; chi copies these into every subrouter.
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// registerStatic serves the bundled frontend when the directory exists.
func registerStatic(r chi.Router, dir string) {
	if dir == "" {
		return
	}

	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		log.Printf("[http] static assets disabled: %v", err)
		return
	}

	fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
	r.Get("/static/*", fileServer.ServeHTTP)
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, index)
	})
}
