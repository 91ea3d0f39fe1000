// pkg/server/server.go

package server

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/gst-invoice-generator/pkg/config"
	"github.com/gst-invoice-generator/pkg/document"
	"github.com/gst-invoice-generator/pkg/history"
	"github.com/gst-invoice-generator/pkg/invoice"
	"github.com/gst-invoice-generator/pkg/logging"
	"github.com/gst-invoice-generator/pkg/report"
)

//go:embed templates/*.html
var templateFS embed.FS

// Filler turns a template file and a key/value map into a document.
type Filler interface {
	Fill(path string, values map[string]string) ([]byte, error)
}

// Merger appends document next after master.
type Merger interface {
	Append(master, next []byte) ([]byte, error)
}

// Mirror receives a copy of every logged history row.
type Mirror interface {
	Insert(ctx context.Context, row history.Row) error
}

// pinger is implemented by mirrors that can report their own reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the invoice form, the merged document and the batch PDF.
type Server struct {
	cfg    config.Config
	logger *logrus.Logger

	state   *invoice.StateStore
	history *history.Log
	filler  Filler
	merger  Merger
	batch   report.Batch
	mirror  Mirror

	validate *validator.Validate
	pages    *template.Template
	now      func() time.Time

	// mu serialises the file writes of a successful submission.
	mu sync.Mutex
}

type Option func(*Server)

func WithFiller(f Filler) Option { return func(s *Server) { s.filler = f } }

func WithMerger(m Merger) Option { return func(s *Server) { s.merger = m } }

func WithMirror(m Mirror) Option { return func(s *Server) { s.mirror = m } }

func WithBatch(b report.Batch) Option { return func(s *Server) { s.batch = b } }

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// New wires a Server from cfg. The docx collaborators default to the
// document package implementations.
func New(cfg config.Config, logger *logrus.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		state:    invoice.NewStateStore(cfg.StateFile, cfg.DefaultLastInvoice()),
		history:  history.NewLog(cfg.HistoryFile),
		filler:   document.NewFiller(logger),
		merger:   document.NewMerger(),
		validate: validator.New(),
		pages:    template.Must(template.ParseFS(templateFS, "templates/*.html")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	r.HandleFunc("/", s.index).Methods("GET", "POST")
	r.HandleFunc("/download", s.download).Methods("GET")
	r.HandleFunc("/make_pdf", s.makePDF).Methods("GET", "POST")
	r.HandleFunc("/history.xlsx", s.exportHistory).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods("GET")
	r.HandleFunc("/readyz", s.ready).Methods("GET")
	return r
}

// ready answers 204 unless the configured mirror fails its ping.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.mirror.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.WithError(err).Warn("mirror not ready")
			http.Error(w, "mirror unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		logging.LogError(s.logger, "server", "render", name, nil, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// serverError logs err and answers 500. Write failures end up here.
func (s *Server) serverError(w http.ResponseWriter, funcName, context string, data any, err error) {
	logging.LogError(s.logger, "server", funcName, context, data, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func attachment(w http.ResponseWriter, filename, contentType string, body []byte) {
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}
