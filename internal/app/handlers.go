package app

import (
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"pubsub2inbox/internal/common/logging"
	"pubsub2inbox/internal/event"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxPushBody bounds a push request; Pub/Sub messages are at most 10MB and
// base64 grows them by a third
const maxPushBody = 14 << 20

// HandlePush accepts a Pub/Sub push delivery. 204 acknowledges the message,
// 500 makes Pub/Sub retry it. Requests that are not push envelopes get 400.
func (app *App) HandlePush(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
	if err != nil {
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}

	ev, err := event.FromPushRequest(body)
	if err != nil {
		app.Logger.Warn("Rejected push request", logging.Err(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := app.deliver(r.Context(), ev); err != nil {
		http.Error(w, "event processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status     string `json:"status"`
	Processors int    `json:"processors"`
	Outputs    int    `json:"outputs"`
}

// HandleHealth reports that the pipeline is loaded
func (app *App) HandleHealth(w http.ResponseWriter, r *http.Request) {
	def := app.Engine.Definition()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:     "ok",
		Processors: len(def.Processors),
		Outputs:    len(def.Outputs),
	})
}
