package httpcontroller

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
)

const (
	mjpegBoundary = "thirdeyeframe"
	// streamInterval caps the consumer frame rate; the producer is not
	// affected either way.
	streamInterval = 66 * time.Millisecond
	streamQuality  = 80

	defaultRecentLimit = 25
	maxRecentLimit     = 500
)

// handleVideoFeed streams the latest processed frames as multipart MJPEG.
// Each iteration copies the current frame out of the hand-off and encodes
// it on this goroutine's time, so slow consumers never stall the pipeline.
func (s *Server) handleVideoFeed(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	res.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		f := s.Broadcast.Latest()
		if f == nil {
			continue
		}
		jpeg, err := f.EncodeJPEG(streamQuality)
		if cerr := f.Close(); cerr != nil {
			s.webLogger.Error("failed to release stream frame", "error", cerr)
		}
		if err != nil {
			s.webLogger.Error("failed to encode stream frame", "error", err)
			continue
		}

		if _, err := fmt.Fprintf(res, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, len(jpeg)); err != nil {
			return nil // client went away
		}
		if _, err := res.Write(jpeg); err != nil {
			return nil
		}
		if _, err := fmt.Fprint(res, "\r\n"); err != nil {
			return nil
		}
		res.Flush()
	}
}

// healthResponse is the /health JSON body.
type healthResponse struct {
	Healthy       bool       `json:"healthy"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}

// handleHealth reports pipeline liveness from the latest heartbeat row.
func (s *Server) handleHealth(c echo.Context) error {
	hb, err := s.DS.LatestHeartBeat()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := healthResponse{}
	if hb != nil {
		resp.LastHeartbeat = &hb.CreateTS
		maxIdle := time.Duration(s.Settings.Heartbeat.MaxIdleSec) * time.Second
		resp.Healthy = time.Since(hb.CreateTS) < maxIdle
	}
	return c.JSON(http.StatusOK, resp)
}

// handleRecentDetections serves the newest object detections, cached.
func (s *Server) handleRecentDetections(c echo.Context) error {
	limit := parseLimit(c.QueryParam("limit"))
	key := fmt.Sprintf("detections:%d", limit)

	if cached, ok := s.cache.Get(key); ok {
		return c.JSON(http.StatusOK, cached)
	}

	detections, err := s.DS.RecentObjectDetections(limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.cache.SetDefault(key, detections)
	return c.JSON(http.StatusOK, detections)
}

// handleRecentAlerts serves the newest alerts, cached.
func (s *Server) handleRecentAlerts(c echo.Context) error {
	limit := parseLimit(c.QueryParam("limit"))
	key := fmt.Sprintf("alerts:%d", limit)

	if cached, ok := s.cache.Get(key); ok {
		return c.JSON(http.StatusOK, cached)
	}

	alerts, err := s.DS.RecentAlerts(limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.cache.SetDefault(key, alerts)
	return c.JSON(http.StatusOK, alerts)
}

// occupancyResponse is the /api/v1/occupancy JSON body.
type occupancyResponse struct {
	Status      string     `json:"status"`
	FoundOwners []string   `json:"found_owners"`
	UpdateTS    *time.Time `json:"update_ts,omitempty"`
}

// handleOccupancy serves the current occupancy record, cached.
func (s *Server) handleOccupancy(c echo.Context) error {
	const key = "occupancy"

	if cached, ok := s.cache.Get(key); ok {
		return c.JSON(http.StatusOK, cached)
	}

	hoc, err := s.DS.LatestOccupancy()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := occupancyResponse{Status: datastore.OccupancyAway, FoundOwners: []string{}}
	if hoc != nil {
		resp.Status = hoc.Status
		resp.UpdateTS = hoc.UpdateTS
		if hoc.FoundOwners != nil {
			resp.FoundOwners = hoc.FoundOwners
		}
	}
	s.cache.SetDefault(key, resp)
	return c.JSON(http.StatusOK, resp)
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultRecentLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultRecentLimit
	}
	if n > maxRecentLimit {
		return maxRecentLimit
	}
	return n
}
