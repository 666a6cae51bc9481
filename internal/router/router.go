package router

import (
	"net/http"

	"MultiDB/internal/config"
	"MultiDB/internal/handler"
	"MultiDB/internal/logger"
)

// InitRoutes registers the API routes on the default mux.
func InitRoutes(cors config.CORSConfig) {
	http.HandleFunc("/api/index", withCORS(cors, withLogging(handler.IndexHandler)))
	http.HandleFunc("/api/count", withCORS(cors, withLogging(handler.CountHandler)))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		level := "info"
		if sw.status >= 500 {
			level = "error"
		} else if sw.status >= 400 {
			level = "warn"
		}
		fields := map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": sw.status,
		}
		switch level {
		case "error":
			logger.Error("response", fields)
		case "warn":
			logger.Warn("response", fields)
		default:
			logger.Info("response", fields)
		}
	}
}
