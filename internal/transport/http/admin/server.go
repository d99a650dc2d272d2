package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tickwatch/internal/logger"
	"tickwatch/internal/store/checklog"
	"tickwatch/internal/watcher"

	"github.com/gin-gonic/gin"
)

// History exposes the persisted check log to the API.
type History interface {
	Recent(ctx context.Context, limit int) ([]checklog.CheckRecord, error)
}

// Controller is the subset of the watch controller the API drives.
type Controller interface {
	Start(interval time.Duration) (time.Duration, error)
	Stop() bool
	CheckOnce(ctx context.Context) (bool, error)
	Status() watcher.Status
}

// ServerConfig describes the admin HTTP dependencies.
type ServerConfig struct {
	Addr         string
	Controller   Controller
	History      History
	HistoryLimit int
}

// Server exposes the watch controller over a small JSON API.
type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("admin http server requires a controller")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9994"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/watch")
	registerRoutes(api, cfg)

	return &Server{addr: cfg.Addr, router: router}, nil
}

func registerRoutes(api *gin.RouterGroup, cfg ServerConfig) {
	ctrl := cfg.Controller

	api.POST("/start", func(c *gin.Context) {
		var req struct {
			IntervalSeconds int `json:"interval_seconds"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if req.IntervalSeconds < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "interval_seconds must be > 0"})
			return
		}
		effective, err := ctrl.Start(time.Duration(req.IntervalSeconds) * time.Second)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"running":          true,
			"interval_seconds": int(effective.Seconds()),
		})
	})

	api.POST("/stop", func(c *gin.Context) {
		if !ctrl.Stop() {
			c.JSON(http.StatusOK, gin.H{"running": false, "message": "not running"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"running": false, "message": "stopped"})
	})

	api.POST("/check", func(c *gin.Context) {
		available, err := ctrl.CheckOnce(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"available": available})
	})

	api.GET("/status", func(c *gin.Context) {
		st := ctrl.Status()
		resp := gin.H{
			"running":          st.Running,
			"interval_seconds": int(st.Interval.Seconds()),
			"silent":           st.Silent,
			"notified":         st.Notified,
		}
		if st.Last != nil {
			last := gin.H{
				"checked_at":  st.Last.CheckedAt,
				"trigger":     st.Last.Trigger,
				"available":   st.Last.Available,
				"status_code": st.Last.StatusCode,
			}
			if st.Last.Err != "" {
				last["error"] = st.Last.Err
			}
			resp["last"] = last
		}
		c.JSON(http.StatusOK, resp)
	})

	if cfg.History != nil {
		history := cfg.History
		maxLimit := cfg.HistoryLimit
		api.GET("/history", func(c *gin.Context) {
			limit := maxLimit
			if raw := c.Query("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n <= 0 {
					c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
					return
				}
				if n < limit {
					limit = n
				}
			}
			recs, err := history.Recent(c.Request.Context(), limit)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"checks": recs})
		})
	}
}

// requestLogger traces manual API calls so admin actions are attributable.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		client := c.ClientIP()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), client, time.Since(start))
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
