package remote

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-ebook-batch/dispatcher"
)

const maxRequestBytes = 1 << 20

// Handler serves a Processor at POST /process and a liveness probe at
// GET /healthz.
type Handler struct {
	processor dispatcher.Processor
	mux       *http.ServeMux
}

// NewHandler wraps processor.
func NewHandler(processor dispatcher.Processor) *Handler {
	h := &Handler{processor: processor, mux: http.NewServeMux()}
	h.mux.HandleFunc("/process", h.process)
	h.mux.HandleFunc("/healthz", h.healthz)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Handle registers an extra route, such as a metrics endpoint.
func (h *Handler) Handle(pattern string, handler http.Handler) {
	h.mux.Handle(pattern, handler)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Books) == 0 {
		writeError(w, http.StatusBadRequest, "no books provided for processing")
		return
	}

	start := time.Now()
	result, err := h.processor.Process(r.Context(), req.Books)
	if err != nil {
		slog.Error("process request failed", slog.Int("books", len(req.Books)), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		writeError(w, http.StatusInternalServerError, "processor returned no result")
		return
	}

	slog.Info("process request served",
		slog.Int("books", len(req.Books)),
		slog.Int("results", len(result.Results)),
		slog.Duration("duration", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
