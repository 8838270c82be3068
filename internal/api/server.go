package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/offline"
	"github.com/mmcdole/lifetrack/internal/search"
	"github.com/mmcdole/lifetrack/internal/tracker"
)

// Sync is the offline manager surface the API exposes.
type Sync interface {
	IsOnline() bool
	ForceOffline() bool
	SetForceOffline(force bool)
	UserID() string
	PendingSync() []domain.PendingOperation
	SyncPendingData(ctx context.Context) (int, error)
	Status() offline.Status
	PreloadedAt() (time.Time, bool)
}

// Server serves the local HTTP API.
type Server struct {
	sync     Sync
	commands *tracker.Commands
	queries  *tracker.Queries
	search   *search.Service
	goals    tracker.Goals
	logger   *slog.Logger
	now      func() time.Time
}

// NewServer creates a server over the tracker services.
func NewServer(
	sync Sync,
	commands *tracker.Commands,
	queries *tracker.Queries,
	searchSvc *search.Service,
	goals tracker.Goals,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		sync:     sync,
		commands: commands,
		queries:  queries,
		search:   searchSvc,
		goals:    goals,
		logger:   logger,
		now:      time.Now,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/status", getStatus(s.sync))
	r.GET("/pending", getPending(s.sync))
	r.POST("/sync", postSync(s.sync))
	r.POST("/connectivity", postConnectivity(s.sync))
	r.POST("/preload", postPreload(s.commands))
	r.GET("/stats", getStats(s.queries, s.goals, s.now))
	r.GET("/search", getSearch(s.search))

	ds := r.Group("/datasets")
	{
		ds.GET("", listDatasets())
		ds.GET("/:name", getRecords(s.commands, s.queries))
		ds.POST("/:name", createRecord(s.commands))
		ds.PATCH("/:name/:id", updateRecord(s.commands))
		ds.DELETE("/:name/:id", deleteRecord(s.commands))
	}

	r.POST("/habits/:id/toggle", toggleHabit(s.commands))

	return r
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("api stopped")
	return nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), NewErrorResponse(err.Error()))
}
