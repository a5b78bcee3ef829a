package server

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"sync"

	"dimfilter/binding"
	"dimfilter/config"
	"dimfilter/models"
	"dimfilter/server/fastview"
	"dimfilter/server/root_view"

	"github.com/ONSdigital/dp-healthcheck/healthcheck"
	"github.com/ONSdigital/log.go/v2/log"
	"github.com/gorilla/mux"
)

// HealthChecker defines the required methods from Healthcheck
type HealthChecker interface {
	Handler(w http.ResponseWriter, req *http.Request)
	Start(ctx context.Context)
	Stop()
	AddAndGetCheck(name string, checker healthcheck.Checker) (check *healthcheck.Check, err error)
}

// HTTPServer defines the required methods from the HTTP server
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Server is the host shell of a single widget: it owns the bound data source, serves the page
// and its websocket, exposes the widget's operations over http, and logs what the binding
// reports.
type Server struct {
	cfg         *config.Config
	controller  *binding.Controller
	healthCheck HealthChecker
	router      *mux.Router
	httpServer  HTTPServer
	hub         *planHub

	mu     sync.Mutex
	source *models.DataSource
}

// New wires a server around the passed controller. Plans, notifications and diagnostics are
// consumed until ctx is done.
func New(
	ctx context.Context,
	cfg *config.Config,
	controller *binding.Controller,
	healthCheck HealthChecker,
) (*Server, error) {
	s := &Server{
		cfg:         cfg,
		controller:  controller,
		healthCheck: healthCheck,
		hub:         newPlanHub(ctx.Done(), controller.Plans()),
	}

	if _, err := healthCheck.AddAndGetCheck("widget binding", s.bindingChecker); err != nil {
		return nil, fmt.Errorf("failed to add binding checker: %w", err)
	}

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           s.router,
		ReadHeaderTimeout: cfg.GracefulShutdownTimeout,
	}

	go s.forwardNotifications(ctx)
	go s.logDiagnostics(ctx)
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.StrictSlash(true).Path("/health").HandlerFunc(s.healthCheck.Handler)
	r.Path("/").Methods(http.MethodGet).HandlerFunc(s.serveIndex)
	r.Path("/ws").Methods(http.MethodGet).HandlerFunc(s.serveWebsocket)
	r.Path("/plan").Methods(http.MethodGet).HandlerFunc(s.getPlan)
	r.Path("/datasource").Methods(http.MethodPost).HandlerFunc(s.postDataSource)
	r.Path("/datasource/state").Methods(http.MethodPut).HandlerFunc(s.putDataSourceState)
	r.Path("/rows").Methods(http.MethodPost).HandlerFunc(s.postRow)
	r.Path("/rows/{row:[0-9]+}/measures/{measure}").Methods(http.MethodPut).HandlerFunc(s.putMeasure)
	r.Path("/rows/{row:[0-9]+}/toggle").Methods(http.MethodPost).HandlerFunc(s.postToggle)
	r.Path("/selections").Methods(http.MethodPost).HandlerFunc(s.postSelection)
	return r
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Bind makes ds the widget's data source. A nil ds leaves the current binding untouched.
func (s *Server) Bind(ds *models.DataSource) error {
	if ds == nil {
		return models.ErrDataUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.controller.Bind(ds); err != nil {
		return err
	}
	s.source = ds
	return nil
}

// Plans subscribes to the widget's plans, starting from the latest. Call the returned func to
// unsubscribe.
func (s *Server) Plans() (<-chan binding.RenderPlan, func()) {
	return s.hub.Subscribe()
}

// Source returns the bound data source, or nil.
func (s *Server) Source() *models.DataSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Start the health checker and the http server
func (s *Server) Start(ctx context.Context, svcErrors chan error) {
	log.Info(ctx, "starting widget host", log.Data{"bind_addr": s.cfg.BindAddr})
	s.healthCheck.Start(ctx)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			svcErrors <- fmt.Errorf("failure in http listen and serve: %w", err)
		}
	}()
}

// Close gracefully shuts the server down in the required order, with timeout
func (s *Server) Close(ctx context.Context) error {
	timeout := s.cfg.GracefulShutdownTimeout
	log.Info(ctx, "commencing graceful shutdown", log.Data{"graceful_shutdown_timeout": timeout})
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.healthCheck.Stop()

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(ctx, "failed to shutdown http server", err)
		shutdownErr = err
	}

	// Last, since open websockets are still reading plans until the server stops.
	s.controller.Close()
	log.Info(ctx, "widget host stopped")
	return shutdownErr
}

// serveIndex serves the main page, rendered from the latest plan.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	// The views only need parsing here; their update channels go unused.
	rv, err := root_view.NewRootView(r.Context(), nil, s.cfg.BatchWindow)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	vm, err := rv.Model(s.hub.Latest())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderTemplate(w, rv, vm); err != nil {
		log.Error(r.Context(), "failed to render index", err)
		_, _ = w.Write([]byte(err.Error()))
	}
}

// serveWebsocket synchronizes one page with the widget until it disconnects. Each page gets its
// own subscription to the plans, and its own views.
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plans, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	rv, err := root_view.NewRootView(ctx, plans, s.cfg.BatchWindow)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cli, err := fastview.NewClient(
		rv.Updates(),
		s.onMessage(ctx),
		w,
		r,
		fastview.WithPubResolution(s.cfg.PublishResolution))
	if err != nil {
		log.Error(ctx, "websocket upgrade failed", err)
		return
	}

	log.Info(ctx, "page connected", log.Data{"remote_addr": r.RemoteAddr})
	if err := cli.Sync(); err != nil {
		log.Warn(ctx, "page disconnected with error", log.Data{"remote_addr": r.RemoteAddr, "error": err.Error()})
		return
	}
	log.Info(ctx, "page disconnected", log.Data{"remote_addr": r.RemoteAddr})
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}

// forwardNotifications hands selection changes to the hosting environment, which for this host
// is the log.
func (s *Server) forwardNotifications(ctx context.Context) {
	for n := range s.controller.Notifications() {
		log.Info(ctx, n.Event, log.Data{
			"row_key":       n.RowKey,
			"dimension_key": n.DimensionKey,
			"member_id":     n.MemberID,
			"row_index":     n.RowIndex,
			"selected":      n.Selected,
		})
	}
}

func (s *Server) logDiagnostics(ctx context.Context) {
	for d := range s.controller.Diagnostics() {
		data := log.Data(d.LogData())
		switch d.Kind {
		case models.FetchFailed, models.DataUnavailable:
			log.Warn(ctx, "binding diagnostic", data)
		default:
			log.Info(ctx, "binding diagnostic", data)
		}
	}
}

// bindingChecker reports the widget as healthy once it is ready, and as warning while it is
// loading or waiting for configuration.
func (s *Server) bindingChecker(ctx context.Context, state *healthcheck.CheckState) error {
	status := s.controller.Status()
	switch status {
	case binding.StatusReady:
		return state.Update(healthcheck.StatusOK, "widget ready", 0)
	case binding.Unbound:
		return state.Update(healthcheck.StatusCritical, "no data source bound", 0)
	default:
		return state.Update(healthcheck.StatusWarning, "widget "+status.String(), 0)
	}
}
