package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pubsub2inbox/internal/middleware"
)

// Router returns the HTTP routes of the service
func (app *App) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.Recover(app.Logger), middleware.Logging(app.Logger))

	router.HandleFunc("/", app.HandlePush).Methods(http.MethodPost)
	router.HandleFunc("/health", app.HandleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(app.Metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router
}
