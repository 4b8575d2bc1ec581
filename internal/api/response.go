package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// webhookResponse is the JSON envelope returned to webhook callers. Reply
// carries the direct turn reply (validation or error text) when there is
// one; everything else reaches the user through the messaging transport.
type webhookResponse struct {
	Success bool   `json:"success"`
	Reply   string `json:"reply,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response any) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		statusCode = http.StatusInternalServerError
		data = []byte(`{"success":false,"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", err)
	}
}
