package messaging

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const maxMessageBytes = 16 << 20

// NewRouter exposes the dispatcher over HTTP
//
//	POST /messages  body: Request, reply: Response
//	GET  /healthz
func NewRouter(d *Dispatcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Response{"status": StatusOK})
	})

	r.Post("/messages", func(w http.ResponseWriter, req *http.Request) {
		var msg Request
		body := http.MaxBytesReader(w, req.Body, maxMessageBytes)
		if err := json.NewDecoder(body).Decode(&msg); err != nil {
			writeJSON(w, http.StatusBadRequest, failure(fmt.Errorf("invalid message: %w", err)))
			return
		}
		if msg.Type == "" {
			writeJSON(w, http.StatusBadRequest, failure(fmt.Errorf("message type is required")))
			return
		}

		writeJSON(w, http.StatusOK, d.Handle(req.Context(), msg))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logrus.Warnf("Failed to write response: %v", err)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logrus.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
		}).Debug("Handled request")
	})
}
