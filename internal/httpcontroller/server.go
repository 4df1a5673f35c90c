// internal/httpcontroller/server.go
package httpcontroller

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gocache "github.com/patrickmn/go-cache"
	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
	"github.com/third-eye-sec/thirdeye/internal/logging"
	"github.com/third-eye-sec/thirdeye/internal/stream"
)

// Server encapsulates the Echo server and its collaborators.
type Server struct {
	Echo      *echo.Echo
	DS        datastore.Interface
	Settings  *conf.Settings
	Broadcast *stream.Broadcast

	cache     *gocache.Cache
	webLogger *slog.Logger
}

// New initializes the HTTP server with the given datastore and frame
// hand-off.
func New(settings *conf.Settings, dataStore datastore.Interface, broadcast *stream.Broadcast) *Server {
	ttl := time.Duration(settings.WebServer.CacheTTL) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Second
	}

	s := &Server{
		Echo:      echo.New(),
		DS:        dataStore,
		Settings:  settings,
		Broadcast: broadcast,
		cache:     gocache.New(ttl, 2*ttl),
		webLogger: newWebLogger(settings),
	}

	s.Echo.HideBanner = true
	s.Echo.Use(middleware.Recover())
	s.initRoutes()
	return s
}

// newWebLogger routes web server logs into their own rotating file when
// one is configured, and shares the main structured logger otherwise.
func newWebLogger(settings *conf.Settings) *slog.Logger {
	if settings.WebServer.LogFile != "" {
		fileLogger, _, err := logging.NewFileLogger(settings.WebServer.LogFile, "webserver", slog.LevelInfo)
		if err == nil {
			return fileLogger
		}
		slog.Error("failed to open web server log file", "path", settings.WebServer.LogFile, "error", err)
	}
	if l := logging.ForService("webserver"); l != nil {
		return l
	}
	return slog.Default().With("service", "webserver")
}

// Start begins listening and serving HTTP requests.
func (s *Server) Start() {
	go func() {
		addr := fmt.Sprintf(":%s", s.Settings.WebServer.Port)
		s.webLogger.Info("web server starting", "addr", addr)
		if err := s.Echo.Start(addr); err != nil {
			s.webLogger.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.Echo.Close()
}

// initRoutes registers all route handlers.
func (s *Server) initRoutes() {
	s.Echo.GET("/video-feed", s.handleVideoFeed)
	s.Echo.GET("/health", s.handleHealth)

	v1 := s.Echo.Group("/api/v1")
	v1.GET("/detections/recent", s.handleRecentDetections)
	v1.GET("/alerts/recent", s.handleRecentAlerts)
	v1.GET("/occupancy", s.handleOccupancy)
}
