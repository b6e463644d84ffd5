package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/internal/notify"
	"github.com/Aman-CERP/termsearch/internal/store"
	"github.com/Aman-CERP/termsearch/pkg/searcher"
	"github.com/Aman-CERP/termsearch/pkg/version"
)

// recentOnStatus is how many history entries /status returns.
const recentOnStatus = 20

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	n, err := notify.Decode(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = termerrors.New(termerrors.ErrCodeBodyTooLarge, "notification body too large", err).
				WithDetail("limit_bytes", strconv.FormatInt(tooLarge.Limit, 10))
		}
		writeError(w, err)
		return
	}

	// A notification that started must finish even if the sender hangs up;
	// a half-applied change set is worse than a late reply.
	if err := s.deps.Processor.Process(context.WithoutCancel(r.Context()), n); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type statusResponse struct {
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Processed     int64             `json:"processed"`
	Failed        int64             `json:"failed"`
	Index         *store.IndexStats `json:"index,omitempty"`
	Circuit       string            `json:"circuit,omitempty"`
	Recent        []notify.Entry    `json:"recent"`
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Version:       version.Short(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Recent:        []notify.Entry{},
	}
	if h := s.deps.History; h != nil {
		resp.Processed, resp.Failed = h.Totals()
		resp.Recent = h.Recent(recentOnStatus)
	}
	if s.deps.IndexStats != nil {
		resp.Index = s.deps.IndexStats()
	}
	if s.deps.Breaker != nil {
		resp.Circuit = s.deps.Breaker.State().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) graphNodes(w http.ResponseWriter, r *http.Request) {
	q := searcher.Query{
		GraphID: chi.URLParam(r, "graphID"),
		Kind:    store.Kind(r.URL.Query().Get("kind")),
		NodeID:  r.URL.Query().Get("node"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, termerrors.ValidationError("limit must be an integer", err))
			return
		}
		q.Limit = limit
	}

	res, err := s.deps.Searcher.Search(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	switch {
	case termerrors.GetCode(err) == termerrors.ErrCodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case termerrors.GetCategory(err) == termerrors.CategoryValidation:
		return http.StatusBadRequest
	case termerrors.IsRetryable(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	body, mErr := termerrors.FormatJSON(err)
	if mErr != nil {
		http.Error(w, err.Error(), code)
		return
	}
	if code == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http_response_encode_failed", slog.String("error", err.Error()))
	}
}
