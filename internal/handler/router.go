package handler

import (
	"log/slog"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"
)

// RouterOptions configure NewRouter
type RouterOptions struct {
	ServiceName string
	// AllowedOrigins defaults to every origin
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter mounts the API. events may be nil.
func NewRouter(opts RouterOptions, nodes *NodeHandler, assets *AssetHandler, events http.Handler) *chi.Mux {
	if opts.ServiceName == "" {
		opts.ServiceName = "geobridge"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		Debug:          false,
	}).Handler)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(otelchi.Middleware(opts.ServiceName, otelchi.WithChiRoutes(r)))

	r.Route("/api", func(r chi.Router) {
		r.Get("/nodes", nodes.ListNodes)
		r.Get("/nodes/{id}", nodes.GetNode)
		r.Post("/nodes/{id}/retrieve", nodes.Retrieve)
		r.Get("/assets", assets.ListAssets)
		r.Get("/assets/*", assets.GetAsset)
		if events != nil {
			r.Get("/events", events.ServeHTTP)
		}
	})

	return r
}

// requestLogger puts a logger tagged with the request id into the request
// context, where the service layer picks it up
func requestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.NewContextWithLogger(r.Context(), base,
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
