// Package api exposes the worker over http.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/comfyimg/worker-comfyui/internal/handler"
	"github.com/comfyimg/worker-comfyui/internal/health"
	"github.com/comfyimg/worker-comfyui/internal/job"
	"github.com/comfyimg/worker-comfyui/internal/logger"
	"github.com/comfyimg/worker-comfyui/internal/tracing"
	"github.com/comfyimg/worker-comfyui/internal/worker"
	"github.com/gorilla/mux"
)

// maxRequestSize bounds the request envelope, inline base64 images included
const maxRequestSize = 100 << 20 // 100 MiB

// API is a http api
type API struct {
	Worker         *worker.Worker
	HealthChecker  *health.Checker
	Log            *logger.Logger
	Tracer         *tracing.Tracer
	HandlerTimeout time.Duration
}

// Utility methods for logging
func (a *API) logError(r *http.Request, message string, err error) {
	a.Log.Errorw(message, handler.LogFields(r, "error", err)...)
}

// Router returns a http router
func (a *API) Router() http.Handler {
	router := mux.NewRouter()

	router.NotFoundHandler = handler.Handler(a.notFoundHandler)

	// Healthcheck
	router.Handle("/health", handler.Health(a.HealthChecker)).Methods("GET")

	// Job submission
	router.Handle("/run", handler.Handler(a.runHandler)).Methods("POST")

	// Set up handlers for adding a request id, handling panics, request logging, tracing,
	// metrics, setting CORS headers, and handler execution timeout
	routeMatcher := &handler.MuxRouteMatcher{Router: router}
	return handler.AddRequestID(handler.Recovery(a.Log, handler.Logger(a.Log, handler.Tracer(a.Tracer, handler.Metrics(handler.CORS([]string{"POST"}, http.TimeoutHandler(router, a.HandlerTimeout, "Something went wrong. Timed out.")), routeMatcher), routeMatcher))))
}

// runHandler accepts a job envelope, runs it through the pipeline, and
// responds with the response envelope. Pipeline failures are not http
// errors, they come back as success=false with an error-kind output.
func (a *API) runHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	var request job.Request

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err := decoder.Decode(&request); err != nil {
		a.logError(r, "error decoding job envelope", err)
		return handler.BadRequest("Invalid job envelope")
	}

	response := a.Worker.Process(r.Context(), request)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		a.logError(r, "error encoding job response", err)
		return handler.InternalServerError()
	}

	return nil
}

// Handle not found errors
var notFoundError = &handler.Error{
	Message: "page not found",
	Code:    http.StatusNotFound,
}

func (a *API) notFoundHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return notFoundError
}
