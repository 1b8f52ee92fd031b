// Package server exposes the clip pipeline over HTTP: upload an animated
// GIF and a polygon, download the reshaped result. The polygon editor and
// any other UI live entirely client-side; this surface only moves bytes.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/yaml.v3"

	giftools "github.com/Simmo-os/gif-tools"
)

// Config configures the clip service.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string `yaml:"listen"`

	// MaxUploadBytes caps the size of an uploaded GIF.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// DefaultSizeBudget applies when a request does not carry its own
	// budget. Zero disables size fitting.
	DefaultSizeBudget int `yaml:"default_size_budget"`
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 32 * 1024 * 1024
	}
}

// LoadConfig reads a YAML config file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.defaults()
	return &cfg, nil
}

// Service handles clip and poster requests.
type Service struct {
	cfg    *Config
	logger *slog.Logger
}

// New creates the service. A nil config gets defaults; a nil logger is
// replaced with slog.Default.
func New(cfg *Config, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, logger: logger}
}

// Router builds the chi router for the service.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/clip", s.handleClip)
	r.Post("/v1/poster", s.handlePoster)
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// clipRequest is the parsed multipart payload shared by both endpoints.
type clipRequest struct {
	image   []byte
	polygon giftools.Polygon
	width   int
	height  int
	budget  int
}

func (s *Service) parseRequest(r *http.Request) (*clipRequest, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("missing image field: %w", err)
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	var polygon giftools.Polygon
	if err := json.Unmarshal([]byte(r.FormValue("polygon")), &polygon); err != nil {
		return nil, fmt.Errorf("parse polygon: %w", err)
	}

	req := &clipRequest{image: image, polygon: polygon, budget: s.cfg.DefaultSizeBudget}
	for name, dst := range map[string]*int{
		"width": &req.width, "height": &req.height, "budget": &req.budget,
	} {
		if v := r.FormValue(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", name, err)
			}
			*dst = n
		}
	}
	return req, nil
}

func (s *Service) handleClip(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := giftools.ClipGIF(r.Context(), req.image, &giftools.ExportOptions{
		TargetWidth:  req.width,
		TargetHeight: req.height,
		Polygon:      req.polygon,
		SizeBudget:   req.budget,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("clip served",
		"bytes", len(res.Data), "width", res.Width, "height", res.Height,
		"attempts", res.Attempts, "status", res.Status.String())

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("X-Export-Status", res.Status.String())
	w.Header().Set("X-Export-Attempts", strconv.Itoa(res.Attempts))
	_, _ = w.Write(res.Data)
}

func (s *Service) handlePoster(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := giftools.NewDecoder(req.image)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer d.Close()

	h, err := d.Header()
	if err != nil {
		s.writeError(w, err)
		return
	}
	frames, err := giftools.ReadFrames(d)
	if err != nil {
		s.writeError(w, err)
		return
	}

	maxDim := req.width
	if req.height > maxDim {
		maxDim = req.height
	}
	blob, err := giftools.Poster(frames, h.Width(), h.Height(), req.polygon, maxDim)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(blob)
}

// writeError maps pipeline errors to HTTP statuses: caller mistakes are 400s,
// everything else is a 500.
func (s *Service) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, giftools.ErrInvalidImage),
		errors.Is(err, giftools.ErrDecodingFailed),
		errors.Is(err, giftools.ErrDegeneratePolygon),
		errors.Is(err, giftools.ErrInvalidEncodeParams):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("clip failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
