package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/handler/chat"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/handler/speech"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/handler/web"
	chatService "github.com/zhouzirui/hanyu-tutor/backend/internal/service/chat"
	speechService "github.com/zhouzirui/hanyu-tutor/backend/internal/service/speech"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/service/tutor"
	"github.com/zhouzirui/hanyu-tutor/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. speechSvc may be nil when speech is not
// configured; the direct synthesis endpoint is then absent.
func NewRouter(chatSvc *chatService.Service, orchestrator *tutor.Orchestrator, speechSvc *speechService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	web.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": chatSvc.Count(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		chat.New(chatSvc, orchestrator).RegisterRoutes(api)

		if speechSvc != nil {
			speech.New(speechSvc, orchestrator.Profile().VoiceID).RegisterRoutes(api)
		}
	})

	return r
}
