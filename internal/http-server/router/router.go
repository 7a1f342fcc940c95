package router

import (
	"net/http"

	"video-batcher/internal/http-server/handler/batch"
	"video-batcher/internal/http-server/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Handler struct {
	BatchHandler *batch.BatchHandler
}

func SetupRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.BatchHandler.CreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.BatchHandler.GetSession)
				r.Delete("/", h.BatchHandler.ResetSession)
				r.Post("/assets/{kind}", h.BatchHandler.UploadAssets)
				r.Put("/captions", h.BatchHandler.SetCaptions)
				r.Post("/batches", h.BatchHandler.StartBatch)
			})
		})

		r.Route("/batches/{id}", func(r chi.Router) {
			r.Get("/", h.BatchHandler.GetBatch)
			r.Delete("/", h.BatchHandler.DeleteBatch)
			r.Get("/archives/{part}", h.BatchHandler.DownloadArchive)
		})

		r.Post("/preview", h.BatchHandler.Preview)
		r.Get("/health", h.BatchHandler.Health)
	})

	return r
}
