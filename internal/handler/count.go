package handler

import (
	"encoding/json"
	"net/http"

	"MultiDB/internal/logger"
	"MultiDB/internal/model"
)

type CountRequest struct {
	Model   string         `json:"model"`
	DB      string         `json:"db"`
	Filters map[string]any `json:"filters"`
}

// CountHandler counts the rows a routed query matches on the chosen
// database.
func CountHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	qs := model.Objects(req.Model)
	if req.DB != "" {
		qs = qs.Using(req.DB)
	}
	for key, val := range req.Filters {
		qs = qs.Filter(key, val)
	}

	count, err := qs.Count(r.Context())
	if err != nil {
		writeQueryError(w, "/api/count", err)
		return
	}

	logger.Debug("count", map[string]any{
		"model": req.Model,
		"db":    qs.DB(),
		"count": count,
	})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"count": count})
}
