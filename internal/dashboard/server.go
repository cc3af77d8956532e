// Package dashboard serves the results, loading and failure views of scans
// over HTTP, backed by the scan API.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fish-not-phish/pixurebyte/internal/apiclient"
	"github.com/fish-not-phish/pixurebyte/internal/metrics"
	"github.com/fish-not-phish/pixurebyte/internal/poller"
	"github.com/fish-not-phish/pixurebyte/internal/report"
	"github.com/fish-not-phish/pixurebyte/internal/schema"
)

// API is the part of the scan API the dashboard reads from.
type API interface {
	FetchScan(ctx context.Context, teamID, scanID string) (*schema.Scan, error)
	FetchSnapshot(ctx context.Context, url string) (string, error)
	Overview(ctx context.Context, teamID string) (schema.Overview, error)
	Timeseries(ctx context.Context, teamID string, windowDays int) (schema.Timeseries, error)
	StatusBreakdown(ctx context.Context, teamID string) (schema.CategoryList, error)
	TopDomains(ctx context.Context, teamID string, limit int) (schema.CategoryList, error)
}

// PrintFunc converts a rendered HTML page to PDF.
type PrintFunc func(ctx context.Context, html string) ([]byte, error)

type Options struct {
	// PollInterval is the gap between status checks while a loading request
	// is held open.
	PollInterval time.Duration
	// LoadingHold is how long a loading request waits for a terminal status
	// before answering with the auto-refreshing processing page.
	LoadingHold time.Duration
	WindowDays  int
	Print       PrintFunc
	Metrics     *metrics.Metrics
	Logger      *zap.SugaredLogger
	Now         func() time.Time
}

// RefreshSeconds is the meta refresh period of the processing page.
const RefreshSeconds = 5

type Server struct {
	api  API
	opts Options
	log  *zap.SugaredLogger
}

func New(api API, opts Options) *Server {
	if opts.PollInterval <= 0 {
		opts.PollInterval = poller.DefaultInterval
	}
	if opts.LoadingHold <= 0 {
		opts.LoadingHold = 25 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{api: api, opts: opts, log: log}
}

// Routes returns the dashboard router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}

	r.Route("/team/{teamId}", func(r chi.Router) {
		r.Use(validIDs)
		r.Get("/analytics", s.analytics)
		r.Route("/scan/{scanId}", func(r chi.Router) {
			r.Use(validIDs)
			r.Get("/loading", s.loading)
			r.Get("/results", s.results)
			r.Get("/failed", s.failed)
			r.Get("/report.pdf", s.reportPDF)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Infow("dashboard listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debugw("http request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "elapsed", time.Since(start))
	})
}

// validIDs rejects team and scan ids that are not UUIDs.
func validIDs(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		for _, key := range []string{"teamId", "scanId"} {
			v := rctx.URLParam(key)
			if v == "" {
				continue
			}
			if _, err := uuid.Parse(v); err != nil {
				http.Error(w, "invalid "+key, http.StatusBadRequest)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func handleOf(r *http.Request) poller.ScanHandle {
	return poller.ScanHandle{TeamID: chi.URLParam(r, "teamId"), ScanID: chi.URLParam(r, "scanId")}
}

// loading holds the request while polling the scan and redirects once it
// completes or fails. If the hold expires first the processing page is
// returned and the browser retries on its own.
func (s *Server) loading(w http.ResponseWriter, r *http.Request) {
	h := handleOf(r)
	redirect := make(chan string, 1)
	nav := poller.NavigatorFunc(func(path string) { redirect <- path })

	p := poller.New(s.api, nav,
		poller.WithInterval(s.opts.PollInterval),
		poller.WithMaxWait(s.opts.LoadingHold),
		poller.WithLogger(s.log),
		poller.WithMetrics(s.opts.Metrics),
	)
	task := p.Start(r.Context(), h)
	defer task.Stop()

	select {
	case path := <-redirect:
		http.Redirect(w, r, path, http.StatusSeeOther)
		return
	case <-task.Done():
	}
	select {
	case path := <-redirect:
		http.Redirect(w, r, path, http.StatusSeeOther)
		return
	default:
	}
	if r.Context().Err() != nil {
		return
	}
	s.renderPage(w, http.StatusOK, processingPage, pageData{Handle: h, Refresh: RefreshSeconds})
}

func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	h := handleOf(r)
	view, ok := s.completedView(w, r, h)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, view); err != nil {
		s.log.Errorw("render results", "scan", h.ScanID, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) failed(w http.ResponseWriter, r *http.Request) {
	h := handleOf(r)
	scan, err := s.api.FetchScan(r.Context(), h.TeamID, h.ScanID)
	if err != nil {
		s.apiError(w, err)
		return
	}
	if scan.Status != schema.StatusFailed {
		http.Redirect(w, r, poller.LoadingPath(h), http.StatusSeeOther)
		return
	}
	s.renderPage(w, http.StatusOK, failedPage, pageData{Handle: h, URL: scan.URL})
}

func (s *Server) reportPDF(w http.ResponseWriter, r *http.Request) {
	if s.opts.Print == nil {
		http.Error(w, "PDF export is not enabled", http.StatusNotImplemented)
		return
	}
	h := handleOf(r)
	view, ok := s.completedView(w, r, h)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, view); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	pdf, err := s.opts.Print(r.Context(), buf.String())
	if err != nil {
		s.log.Errorw("print pdf", "scan", h.ScanID, "error", err)
		http.Error(w, "PDF export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="scan-`+h.ScanID+`.pdf"`)
	_, _ = w.Write(pdf)
}

// completedView fetches the scan and builds its view. Scans that are not
// complete are redirected to the matching page and ok is false.
func (s *Server) completedView(w http.ResponseWriter, r *http.Request, h poller.ScanHandle) (report.View, bool) {
	scan, err := s.api.FetchScan(r.Context(), h.TeamID, h.ScanID)
	if err != nil {
		s.apiError(w, err)
		return report.View{}, false
	}
	switch scan.Status {
	case schema.StatusComplete:
	case schema.StatusFailed:
		http.Redirect(w, r, poller.FailedPath(h), http.StatusSeeOther)
		return report.View{}, false
	default:
		http.Redirect(w, r, poller.LoadingPath(h), http.StatusSeeOther)
		return report.View{}, false
	}

	opts := report.Options{Now: s.opts.Now(), WindowDays: s.opts.WindowDays}
	if (len(scan.Scripts) == 0 || len(scan.Links) == 0) && scan.FullCode != "" {
		snap, err := s.api.FetchSnapshot(r.Context(), scan.FullCode)
		if err != nil {
			s.log.Warnw("snapshot unavailable", "scan", h.ScanID, "error", err)
		}
		opts.Snapshot = snap
	}
	return report.BuildView(*scan, opts), true
}

type analyticsOut struct {
	Overview   schema.Overview     `json:"overview"`
	Timeseries schema.Timeseries   `json:"timeseries"`
	Status     schema.CategoryList `json:"status"`
	TopDomains schema.CategoryList `json:"top_domains"`
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	team := chi.URLParam(r, "teamId")
	window := queryInt(r, "window_days", 30)
	limit := queryInt(r, "limit", 10)

	var out analyticsOut
	var err error
	if out.Overview, err = s.api.Overview(ctx, team); err != nil {
		s.apiError(w, err)
		return
	}
	if out.Timeseries, err = s.api.Timeseries(ctx, team, window); err != nil {
		s.apiError(w, err)
		return
	}
	if out.Status, err = s.api.StatusBreakdown(ctx, team); err != nil {
		s.apiError(w, err)
		return
	}
	if out.TopDomains, err = s.api.TopDomains(ctx, team, limit); err != nil {
		s.apiError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) apiError(w http.ResponseWriter, err error) {
	switch {
	case apiclient.IsNotFound(err):
		http.Error(w, "not found", http.StatusNotFound)
	case apiclient.IsUnauthorized(err), errors.Is(err, apiclient.ErrNotAuthenticated):
		http.Error(w, "not authenticated", http.StatusUnauthorized)
	default:
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			s.log.Warnw("api request failed", "upstream", apiErr.StatusText(), "error", err)
		} else {
			s.log.Warnw("api request failed", "error", err)
		}
		http.Error(w, "upstream error", http.StatusBadGateway)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
