package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// Server exposes a ports.ProtocolEngine as a JSON API.
type Server struct {
	Engine  ports.ProtocolEngine
	Streams *StreamManager
	Logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithStreams shares a StreamManager whose Hooks are installed on the engine.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		if sm != nil {
			s.Streams = sm
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine ports.ProtocolEngine, opts ...Option) (http.Handler, error) {
	server := &Server{
		Engine: engine,
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Streams == nil {
		server.Streams = NewStreamManager(server.Logger)
	}

	doc, err := GetSwagger()
	if err != nil {
		return nil, err
	}
	validate, err := requestValidator(doc, server.Logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		spec, err := rawSpec()
		if err != nil {
			http.Error(w, "Failed to load spec", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(spec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)

	r.Group(func(r chi.Router) {
		r.Use(validate)
		r.Post("/detect", server.Detect)
		r.Get("/protocols", server.ListProtocols)
		r.Post("/protocols/{protocolId}/start", server.StartProtocol)
		r.Get("/active", server.ListActive)
		r.Post("/active/{activeId}/next", server.NextAction)
		r.Post("/active/{activeId}/steps/{stepId}/complete", server.CompleteStep)
		r.Get("/active/{activeId}/progress", server.DisplayProgress)
		r.Post("/active/{activeId}/finish", server.FinishProtocol)
		r.Get("/stats", server.Statistics)
		r.Post("/cleanup", server.Cleanup)
		r.Get("/events", server.SubscribeEvents)
	})

	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Playbook API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

type detectRequest struct {
	Input   *string        `json:"input"`
	Context map[string]any `json:"context"`
}

type startRequest struct {
	Context map[string]any `json:"context"`
}

type completeRequest struct {
	Result any `json:"result"`
}

type finishRequest struct {
	Success *bool `json:"success"`
}

type progressResponse struct {
	Display string `json:"display"`
}

// Detect handles POST /detect.
func (s *Server) Detect(w http.ResponseWriter, r *http.Request) {
	var body detectRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Input == nil {
		writeError(w, http.StatusBadRequest, errors.New("input is required"))
		return
	}
	matches := s.Engine.Detect(r.Context(), *body.Input, domain.ContextFrom(body.Context))
	if matches == nil {
		matches = []domain.Protocol{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// ListProtocols handles GET /protocols.
func (s *Server) ListProtocols(w http.ResponseWriter, r *http.Request) {
	var category *string
	if err := runtime.BindQueryParameter("form", true, false, "category", r.URL.Query(), &category); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid format for parameter category: %w", err))
		return
	}
	filter := ""
	if category != nil {
		filter = *category
	}
	writeJSON(w, http.StatusOK, s.Engine.ListProtocols(r.Context(), filter))
}

// StartProtocol handles POST /protocols/{protocolId}/start.
func (s *Server) StartProtocol(w http.ResponseWriter, r *http.Request) {
	protocolID, ok := s.pathParam(w, r, "protocolId")
	if !ok {
		return
	}
	var body startRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	exec, err := s.Engine.Start(r.Context(), protocolID, domain.ContextFrom(body.Context))
	if err != nil {
		s.engineError(w, "Start", err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.StartedView(exec))
}

// ListActive handles GET /active.
func (s *Server) ListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.ListActive(r.Context()))
}

// NextAction handles POST /active/{activeId}/next.
func (s *Server) NextAction(w http.ResponseWriter, r *http.Request) {
	activeID, ok := s.pathParam(w, r, "activeId")
	if !ok {
		return
	}
	action, err := s.Engine.Next(r.Context(), activeID)
	if err != nil {
		s.engineError(w, "Next", err)
		return
	}
	writeJSON(w, http.StatusOK, action)
}

// CompleteStep handles POST /active/{activeId}/steps/{stepId}/complete.
func (s *Server) CompleteStep(w http.ResponseWriter, r *http.Request) {
	activeID, ok := s.pathParam(w, r, "activeId")
	if !ok {
		return
	}
	stepID, ok := s.pathParam(w, r, "stepId")
	if !ok {
		return
	}
	var body completeRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Engine.CompleteStep(r.Context(), activeID, stepID, body.Result); err != nil {
		s.engineError(w, "CompleteStep", err)
		return
	}
	display, err := s.Engine.DisplayProgress(r.Context(), activeID)
	if err != nil {
		s.engineError(w, "DisplayProgress", err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Display: display})
}

// DisplayProgress handles GET /active/{activeId}/progress.
func (s *Server) DisplayProgress(w http.ResponseWriter, r *http.Request) {
	activeID, ok := s.pathParam(w, r, "activeId")
	if !ok {
		return
	}
	display, err := s.Engine.DisplayProgress(r.Context(), activeID)
	if err != nil {
		s.engineError(w, "DisplayProgress", err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Display: display})
}

// FinishProtocol handles POST /active/{activeId}/finish. Success defaults to true.
func (s *Server) FinishProtocol(w http.ResponseWriter, r *http.Request) {
	activeID, ok := s.pathParam(w, r, "activeId")
	if !ok {
		return
	}
	var body finishRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	success := body.Success == nil || *body.Success
	if err := s.Engine.Finish(r.Context(), activeID, success); err != nil {
		s.engineError(w, "Finish", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Statistics handles GET /stats.
func (s *Server) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Engine.Statistics(r.Context())
	if err != nil {
		s.engineError(w, "Statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Cleanup handles POST /cleanup.
func (s *Server) Cleanup(w http.ResponseWriter, r *http.Request) {
	var hours *float64
	if err := runtime.BindQueryParameter("form", true, false, "maxAgeHours", r.URL.Query(), &hours); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid format for parameter maxAgeHours: %w", err))
		return
	}
	var maxAge time.Duration
	if hours != nil {
		maxAge = time.Duration(*hours * float64(time.Hour))
	}
	removed, err := s.Engine.Cleanup(r.Context(), maxAge)
	if err != nil {
		s.engineError(w, "Cleanup", err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"removed": removed})
}

// SubscribeEvents handles GET /events (SSE). Without activeId every execution is streamed.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var activeID *string
	if err := runtime.BindQueryParameter("form", true, false, "activeId", r.URL.Query(), &activeID); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid format for parameter activeId: %w", err))
		return
	}
	key := allExecutions
	if activeID != nil {
		key = *activeID
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(key)
	defer cancel()

	s.Logger.Info("SSE: Client subscribed", "active_id", key)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "playbook-http",
		"version":     strings.TrimSpace(playbook.Version),
		"api_version": apiVersion,
	})
}

// -- Helpers --

func (s *Server) pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid format for parameter %s: %w", name, err))
		return "", false
	}
	return value, true
}

func (s *Server) engineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrProtocolNotFound),
		errors.Is(err, domain.ErrExecutionNotFound),
		errors.Is(err, domain.ErrStepNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		s.Logger.Error(op+" failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

// decodeBody tolerates an empty body for endpoints whose payload is optional.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
