package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"MultiDB/internal/db"
	"MultiDB/internal/logger"
	"MultiDB/internal/model"
)

// IndexRequest describes a routed list query: which model, which
// database, and the query-set description to run there.
type IndexRequest struct {
	Model   string         `json:"model"`
	DB      string         `json:"db"`
	Filters map[string]any `json:"filters"`
	Order   []string       `json:"order"`
	Limit   uint64         `json:"limit"`
	Offset  uint64         `json:"offset"`
}

func IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		logger.Warn("method_not_allowed", map[string]any{
			"endpoint": "/api/index",
			"method":   r.Method,
		})
		http.Error(w, "Only POST allowed", http.StatusMethodNotAllowed)
		return
	}

	var req IndexRequest

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Warn("invalid_json", map[string]any{
			"endpoint": "/api/index",
			"error":    err.Error(),
		})
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	logger.Info("request", map[string]any{
		"endpoint": "/api/index",
		"payload":  json.RawMessage(body),
	})

	qs := buildQuerySet(req)
	items, err := qs.All(r.Context())
	if err != nil {
		writeQueryError(w, "/api/index", err)
		return
	}

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, item.Fields())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"items": out, "db": qs.DB()}); err != nil {
		logger.Error("write_response_failed", map[string]any{
			"endpoint": "/api/index",
			"error":    err.Error(),
		})
	}
}

func buildQuerySet(req IndexRequest) model.QuerySet {
	qs := model.Objects(req.Model)
	if req.DB != "" {
		qs = qs.Using(req.DB)
	}
	for key, val := range req.Filters {
		qs = qs.Filter(key, val)
	}
	if len(req.Order) > 0 {
		qs = qs.OrderBy(req.Order...)
	}
	if req.Limit > 0 {
		qs = qs.Limit(req.Limit)
	}
	if req.Offset > 0 {
		qs = qs.Offset(req.Offset)
	}
	return qs
}

func writeQueryError(w http.ResponseWriter, endpoint string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, db.ErrUnknownDatabase):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	}
	logger.Error("query_failed", map[string]any{
		"endpoint": endpoint,
		"error":    err.Error(),
	})
	http.Error(w, err.Error(), status)
}
