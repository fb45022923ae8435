package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/nclack/mirror/internal/logger"
	"github.com/nclack/mirror/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// HistoryReader is the read side of the transfer history.
type HistoryReader interface {
	GetRecent(limit int) ([]model.History, error)
	GetUnresolved() ([]model.History, error)
}

type Server struct {
	echo     *echo.Echo
	daemon   *Daemon
	histRepo HistoryReader
	port     int
	stopCh   chan struct{}
}

func NewServer(d *Daemon, histRepo HistoryReader, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		daemon:   d,
		histRepo: histRepo,
		port:     port,
		stopCh:   make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/outstanding", s.handleOutstanding)
	s.echo.POST("/stop", s.handleStop)

	g := s.echo.Group("/history")
	g.GET("", s.handleHistory)
	g.GET("/unresolved", s.handleUnresolved)
}

func (s *Server) Start() {
	go func() {
		addr := "127.0.0.1:" + strconv.Itoa(s.port)
		logger.Log.Info("control server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("control server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// StopCh fires when a client asks the daemon to shut down.
func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	snap, err := s.daemon.Snapshot(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleOutstanding(c echo.Context) error {
	return c.JSON(http.StatusOK, s.daemon.Outstanding())
}

func (s *Server) handleStop(c echo.Context) error {
	select {
	case s.stopCh <- struct{}{}:
	default:
		// already stopping
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleHistory(c echo.Context) error {
	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil && parsed > 0 {
			n = parsed
		}
	}

	histories, err := s.histRepo.GetRecent(n)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, histories)
}

func (s *Server) handleUnresolved(c echo.Context) error {
	histories, err := s.histRepo.GetUnresolved()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, histories)
}
