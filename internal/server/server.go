// Package server exposes the tool registry over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"realestate/internal/apperr"
	"realestate/internal/tools"
)

const (
	DefaultShutdownTimeout = 10 * time.Second
	maxBodyBytes           = 1 << 20
)

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type WebAPI struct {
	router   *chi.Mux
	logger   *zerolog.Logger
	server   *http.Server
	shutdown time.Duration
}

func NewWebAPI(logger zerolog.Logger, registry *tools.Registry, config Config) *WebAPI {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	h := &handler{registry: registry}

	router := chi.NewRouter()
	router.Use(requestLogger(&logger))
	router.Use(middleware.Recoverer)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/tools", h.listTools)
		r.Post("/tools/{name}", h.callTool)
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return &WebAPI{
		router:   router,
		logger:   &logger,
		shutdown: config.ShutdownTimeout,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (w *WebAPI) Handler() http.Handler {
	return w.router
}

// Start serves until ctx is done, then shuts down gracefully.
func (w *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		w.logger.Info().Msg("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdown)
		defer cancel()

		if err := w.server.Shutdown(shutdownCtx); err != nil {
			w.logger.Error().Err(err).Msg("graceful shutdown failed")
			return w.server.Close()
		}
	}
	return nil
}

type handler struct {
	registry *tools.Registry
}

func (h *handler) listTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"tools": h.registry.List()})
}

func (h *handler) callTool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	args, err := decodeArgs(r)
	if err != nil {
		payload := apperr.ToPayload(err)
		writeJSON(ctx, w, http.StatusBadRequest, tools.Result{Tool: name, Error: &payload})
		return
	}

	result, err := h.registry.Execute(ctx, name, args)
	status := http.StatusOK
	if err != nil {
		status = statusFor(apperr.KindOf(err))
	}
	writeJSON(ctx, w, status, result)
}

func decodeArgs(r *http.Request) (map[string]any, error) {
	args := make(map[string]any)
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperr.Validation("body", "request body must be a JSON object: %v", err)
	}
	return args, nil
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindRegionNotFound, apperr.KindUnknownCategory:
		return http.StatusNotFound
	case apperr.KindAmbiguousRegion:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindTimedOut:
		return http.StatusGatewayTimeout
	case apperr.KindCanceled:
		return http.StatusServiceUnavailable
	case apperr.KindAuthFailure, apperr.KindTransient, apperr.KindPermanent, apperr.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to encode response")
	}
}
