// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"loan-checker/internal/common/config"
	"loan-checker/internal/common/database"
	apperrors "loan-checker/internal/common/errors"
	"loan-checker/internal/common/logger"
	"loan-checker/internal/common/stream"
	"loan-checker/internal/models"
	"loan-checker/internal/presentation"
	"loan-checker/internal/server/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generator starts an assessment stream. *generation.Service implements it.
type Generator interface {
	Generate(ctx context.Context, input map[string]interface{}) (*stream.Handle[models.PartialObject], error)
}

type Deps struct {
	Generator Generator
	Forms     *presentation.Registry
	Redis     *database.RedisClient // optional
	Logger    logger.Logger
}

// Server serves the loan application page and its JSON/SSE API.
type Server struct {
	cfg       *config.Config
	generator Generator
	forms     *presentation.Registry
	redis     *database.RedisClient
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
	engine    *gin.Engine
}

func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Generator == nil || deps.Forms == nil {
		return nil, fmt.Errorf("server requires a generator and a form registry")
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	s := &Server{
		cfg:       cfg,
		generator: deps.Generator,
		forms:     deps.Forms,
		redis:     deps.Redis,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log.WithFields(map[string]interface{}{"component": "server"}),
	}

	engine, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

// Handler returns the gin engine.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.CORS(s.cfg.Server.AllowedOrigins))

	page, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	r.SetHTMLTemplate(page)

	r.GET("/health", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/", s.index)

	limited := s.rateLimit()

	api := r.Group("/api")
	{
		api.POST("/forms", s.createForm)
		api.GET("/forms/:id", s.getForm)
		api.POST("/forms/:id/submit", limited, s.submitForm)
		api.POST("/forms/:id/dismiss", s.dismissForm)
		api.POST("/generate", limited, s.generate)
	}

	return r, nil
}

func (s *Server) rateLimit() gin.HandlerFunc {
	var store middleware.WindowCounter
	if s.cfg.RateLimit.Enabled && s.redis != nil {
		store = s.redis
	}
	return middleware.NewRateLimiter(
		store,
		s.cfg.RateLimit.Requests,
		config.GetDuration(s.cfg.RateLimit.Window),
		s.logger,
	).Middleware()
}

// Run serves on the configured port until ctx is cancelled, then shuts down
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(s.cfg.Server.ShutdownTimeout))
	defer cancel()

	s.logger.Info("http server shutting down", nil)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
