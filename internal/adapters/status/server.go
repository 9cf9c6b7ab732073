package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jersme/enviro/internal/adapters/display"
	"github.com/jersme/enviro/internal/domain"
)

// LatestSource returns the most recent Reading, if any.
type LatestSource interface {
	Latest() (domain.Reading, bool)
}

type BoardSource interface {
	State() display.BoardState
}

// Sources lists what the server exposes. Nil entries answer 404.
type Sources struct {
	Metrics http.Handler
	Latest  LatestSource
	Board   BoardSource
	State   func() string
	Session string
}

// Server is the HTTP status endpoint of a running monitor.
type Server struct {
	srv    *http.Server
	engine *gin.Engine
}

func New(addr string, src Sources) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "session": src.Session})
	})

	if src.Metrics != nil {
		r.GET("/metrics", gin.WrapH(src.Metrics))
	}

	r.GET("/state", func(c *gin.Context) {
		if src.State == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no controller"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": src.State()})
	})

	r.GET("/readings/latest", func(c *gin.Context) {
		if src.Latest == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no reading store"})
			return
		}
		reading, ok := src.Latest.Latest()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no reading yet"})
			return
		}
		c.JSON(http.StatusOK, reading)
	})

	r.GET("/display", func(c *gin.Context) {
		if src.Board == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no board display"})
			return
		}
		c.JSON(http.StatusOK, src.Board.State())
	})

	return &Server{
		engine: r,
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler { return s.engine }

// Start serves in the background; listen errors are reported through onErr.
func (s *Server) Start(onErr func(error)) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && onErr != nil {
			onErr(err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
