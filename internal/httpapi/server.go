package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"tab-inspector/internal/config"
	"tab-inspector/internal/usecase"
	"tab-inspector/pkg/logg"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	serverName        = "HTTPServer"
	readHeaderTimeout = 5 * time.Second
)

// Server exposes tracked tabs, snapshots and highlighting over HTTP.
type Server struct {
	addr    string
	service *usecase.Service
	logger  *zap.Logger
	router  chi.Router
	srv     *http.Server
}

type ServerParams struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Usecase *usecase.Service
}

func NewServer(params ServerParams) *Server {
	s := &Server{
		addr:    params.Config.HTTPConfig.Addr,
		service: params.Usecase,
		logger:  params.Logger.With(zap.String(logg.Layer, serverName)),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/tabs", func(r chi.Router) {
		r.Get("/", s.handleListTabs)

		r.Route("/{tabID}", func(r chi.Router) {
			r.Get("/", s.handleGetTab)
			r.Get("/snapshot", s.handleLatestSnapshot)
			r.Post("/snapshot", s.handleTakeSnapshot)
			r.Get("/html", s.handlePageHTML)
			r.Get("/highlight", s.handleActiveHighlight)
			r.Post("/highlight", s.handleHighlight)
			r.Delete("/highlight", s.handleClearHighlight)
			r.Post("/highlight/redraw", s.handleRedrawHighlight)
			r.Get("/screenshot", s.handleScreenshot)
		})
	})

	s.router = r
	s.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener synchronously so that a busy port fails startup,
// then serves in the background.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("Request served",
			zap.String(logg.Method, r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(started)))
	})
}
