package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/ingest"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/logger"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/metrics"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/pipeline"
	"github.com/Vignesh-Rajamani/iot-sensor-monitor/internal/ws"
)

var tracer = otel.Tracer("api")

type Deps struct {
	Log  *logger.Logger
	Pipe *pipeline.Pipeline
}
type Config struct{ Addr string }

type Server struct{ d Deps; c Config }

func NewServer(d Deps, c Config) *Server { return &Server{d: d, c: c} }

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.c.Addr,
		Handler:           s.d.Log.HTTP(s.Router()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() { <-ctx.Done(); _ = srv.Shutdown(context.Background()) }()
	s.d.Log.Info().Str("addr", s.c.Addr).Msg("http listening")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { metrics.Handler().ServeHTTP(w, r) })
	r.Get("/api/data", s.handleRecent)
	r.Post("/api/data", s.handleSubmit)
	r.Post("/api/upload", s.handleUpload)
	r.Get("/api/anomalies", s.handleAnomalies)
	r.Get("/api/alerts", s.handleAlerts)
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "GET /api/data")
	defer span.End()
	writeJSON(w, http.StatusOK, s.d.Pipe.RecentReadings(100))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "POST /api/data")
	defer span.End()

	raw, err := decodePayload(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	span.SetAttributes(attribute.Int("fields", len(raw)))
	if err := s.d.Pipe.Submit("http", raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "POST /api/upload")
	defer span.End()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file provided"})
		return
	}
	defer func() { _ = file.Close() }()

	if hdr.Filename == "" || !strings.HasSuffix(strings.ToLower(hdr.Filename), ".csv") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid file format"})
		return
	}

	res, err := ingest.ReadCSV(file, func(raw map[string]any) error {
		return s.d.Pipe.Submit("upload", raw)
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.Int("processed", res.Processed), attribute.Int("failed", res.Failed))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "success",
		"records_processed": res.Processed,
		"records_failed":    res.Failed,
	})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "GET /api/anomalies")
	defer span.End()
	writeJSON(w, http.StatusOK, s.d.Pipe.RecentAlerts(50))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	_, span := tracer.Start(r.Context(), "GET /api/alerts")
	defer span.End()
	writeJSON(w, http.StatusOK, s.d.Pipe.RecentAlerts(20))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws.Serve(s.d.Log, s.d.Pipe, w, r)
}

// decodePayload accepts a JSON object body or classic form fields.
func decodePayload(r *http.Request) (map[string]any, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	raw := make(map[string]any, len(r.PostForm))
	for k := range r.PostForm {
		raw[k] = r.PostForm.Get(k)
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
