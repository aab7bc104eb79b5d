// internal/di/service.go
package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/multierr"
)

// =============================================================================
// Gantry Service
// =============================================================================

// GantryService runs the long-lived parts of the process: the HTTP API, the
// remote command subscription, the safety monitor and data acquisition.
type GantryService struct {
	container *Container
	addr      string
	echo      *echo.Echo
	loops     sync.WaitGroup
	started   time.Time
}

func NewGantryService(container *Container, addr string) *GantryService {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	container.API.Register(e)

	return &GantryService{
		container: container,
		addr:      addr,
		echo:      e,
	}
}

// Echo exposes the router, mainly for tests.
func (s *GantryService) Echo() *echo.Echo {
	return s.echo
}

// Start 서비스 시작. Background loops stop when ctx is cancelled.
func (s *GantryService) Start(ctx context.Context) error {
	c := s.container
	s.started = time.Now()

	// MQTT 명령 토픽 구독
	if err := c.CommandHandler.Subscribe(c.MessagePublisher); err != nil {
		return err
	}

	s.loops.Add(2)
	go func() {
		defer s.loops.Done()
		c.Monitor.Run(ctx)
	}()
	go func() {
		defer s.loops.Done()
		c.DAQ.Run(ctx)
	}()

	if s.addr != "" {
		go func() {
			c.Logger.Infof("🌐 HTTP API listening on %s", s.addr)
			if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.Logger.Errorf("HTTP server stopped: %v", err)
			}
		}()
	}

	c.Logger.Infof("🚀 Gantry service started (simulation=%t, log level %s)", c.Config.IsSimulation(), c.Config.GetLogLevel())
	return nil
}

// Shutdown stops the HTTP server, halts all axes and waits for the background
// loops and any running remote sequence. Cancel the Start context first.
func (s *GantryService) Shutdown(ctx context.Context) error {
	c := s.container

	var errs error
	if err := s.echo.Shutdown(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := c.Axes.StopAll(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("stop axes: %w", err))
	}

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		c.CommandHandler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = multierr.Append(errs, fmt.Errorf("background loops: %w", ctx.Err()))
	}

	c.Logger.Infof("Gantry service stopped after %s", time.Since(s.started).Round(time.Second))
	return errs
}

// GetHealthStatus 헬스 체크 상태 반환
func (s *GantryService) GetHealthStatus() map[string]interface{} {
	c := s.container
	return map[string]interface{}{
		"mqtt_connected": c.MessagePublisher.IsConnected(),
		"estop_state":    c.Supervisor.EStopState(),
		"simulation":     c.Config.IsSimulation(),
		"timestamp":      time.Now().Format(time.RFC3339),
		"status":         "running",
	}
}
