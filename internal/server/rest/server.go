// Package rest serves the public JSON API over gin.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/pilosopo/internal/logging"
	"github.com/dmitrijs2005/pilosopo/internal/server/backends"
	"github.com/dmitrijs2005/pilosopo/internal/server/models"
	"github.com/dmitrijs2005/pilosopo/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const shutdownTimeout = 5 * time.Second

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Users is the account and profile surface.
type Users interface {
	Register(ctx context.Context, req services.RegisterRequest) (*services.RegisterResult, error)
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResult, error)
	ListProfiles(ctx context.Context) ([]models.ProfileView, error)
	GetProfile(ctx context.Context, id string) (*models.ProfileView, error)
	FilterProfiles(ctx context.Context, provider string) ([]models.ProfileView, error)
	SortProfilesByUsernameDesc(ctx context.Context) ([]models.ProfileView, error)
	UpdateProfile(ctx context.Context, id string, req services.UpdateRequest) (*services.UpdateResult, error)
	DeleteProfile(ctx context.Context, id string) (*services.DeleteResult, error)
}

// History is the lookup-history surface.
type History interface {
	Append(ctx context.Context, req services.AppendRequest) (*models.HistoryEntry, error)
	List(ctx context.Context, ownerID string) ([]*models.HistoryEntry, error)
	Buffered() int
}

// Status feeds the health endpoint.
type Status interface {
	Availability() backends.Availability
	RecordStoreState() string
}

// Options configures the HTTP surface.
type Options struct {
	Address       string
	Environment   string
	WebKeyPresent bool
	CORSOrigins   []string
}

type Server struct {
	opts    Options
	users   Users
	history History
	status  Status
	logger  logging.Logger
	now     func() time.Time
}

func NewServer(opts Options, users Users, history History, status Status, l logging.Logger) *Server {
	return &Server{
		opts:    opts,
		users:   users,
		history: history,
		status:  status,
		logger:  l.With("module", "http_server"),
		now:     time.Now,
	}
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Type"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.opts.CORSOrigins) == 0 || (len(s.opts.CORSOrigins) == 1 && s.opts.CORSOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.opts.CORSOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

// Handler builds the routed engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.accessLog())
	r.Use(cors.New(s.corsConfig()))

	users := r.Group("/users")
	{
		users.POST("", s.register)
		users.POST("/login", s.login)
		users.GET("", s.listUsers)
		users.GET("/filter", s.filterUsers)
		users.GET("/sort/desc", s.sortUsers)
		users.GET("/:id", s.getUser)
		users.PUT("/:id", s.updateUser)
		users.DELETE("/:id", s.deleteUser)
	}

	history := r.Group("/api/history")
	{
		history.POST("", s.appendHistory)
		history.GET("", s.listHistory)
	}

	r.GET("/health", s.health)
	return r
}

// accessLog tags the request with an id and logs one line per request.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Header(RequestIDHeader, id)
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
		}
		s.logger.Info(c.Request.Context(), "http request", args...)
	}
}

// Run serves until ctx is cancelled, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.opts.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
