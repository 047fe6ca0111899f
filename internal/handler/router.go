package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// RouterOptions carries the cross-cutting settings of the HTTP surface.
type RouterOptions struct {
	AllowedOrigins []string
	Middlewares    []mux.MiddlewareFunc
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(highlightHandler *HighlightHandler, opts RouterOptions) http.Handler {
	router := mux.NewRouter()
	for _, mw := range opts.Middlewares {
		router.Use(mw)
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"pdf-annotation-sync"}`))
	}).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	// Highlight routes
	api.HandleFunc("/highlights", highlightHandler.ListHighlights).Methods("GET")
	api.HandleFunc("/highlights", highlightHandler.CreateHighlight).Methods("POST")
	api.HandleFunc("/highlights/{docId}/{id}", highlightHandler.UpdateHighlight).Methods("PUT")
	api.HandleFunc("/highlights/{docId}/{id}", highlightHandler.DeleteHighlight).Methods("DELETE")

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{
			"http://localhost:5173", // Vite dev server
			"http://localhost:4173", // Vite preview
			"http://localhost:3000", // Alternative dev port
		}
	}

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
		},
		MaxAge: 300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
