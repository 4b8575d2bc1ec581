package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const probeTTL = 30 * time.Second

// healthHandler reports liveness and store health. The store check writes,
// reads back and deletes a unique probe key so it exercises the same path
// conversation state takes.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status string `json:"status"`
		Store  string `json:"store"`
	}

	ctx := r.Context()
	result := health{Status: "ok", Store: "ok"}

	key := "health:probe:" + uuid.NewString()
	value := []byte(`{"probe":true}`)
	if err := s.store.Set(ctx, key, value, probeTTL); err != nil {
		slog.Error("Server.healthHandler: probe write failed", "error", err)
		result.Status, result.Store = "degraded", "unreachable"
		writeJSONResponse(w, http.StatusServiceUnavailable, result)
		return
	}
	got, err := s.store.Get(ctx, key)
	if err != nil || !bytes.Equal(got, value) {
		slog.Error("Server.healthHandler: probe read failed", "error", err)
		result.Status, result.Store = "degraded", "inconsistent"
		writeJSONResponse(w, http.StatusServiceUnavailable, result)
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Warn("Server.healthHandler: probe cleanup failed", "error", err)
	}

	writeJSONResponse(w, http.StatusOK, result)
}
