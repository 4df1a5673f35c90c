// Package heartbeat watches the capture pipeline's liveness. The sink
// records pings the analytics loop publishes over MQTT; the checker
// restarts the pipeline when pings stop arriving and prunes old liveness
// images once a day.
package heartbeat

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/third-eye-sec/thirdeye/internal/datastore"
	"github.com/third-eye-sec/thirdeye/internal/logging"
	"github.com/third-eye-sec/thirdeye/internal/mqtt"
)

const (
	dayDirLayout    = "2006-01-02"
	imageTimeLayout = "150405.000"
	markerSuffix    = "_HEART-BEAT.jpg"
	// Marker identifies heartbeat files during pruning.
	Marker = "HEART-BEAT"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("heartbeat")
	if logger == nil {
		logger = slog.Default().With("service", "heartbeat")
	}
}

// Sink receives liveness pings and persists at most one HeartBeat row per
// wall-clock minute. The ping payload is the publisher's snapshot JPEG; it
// is written to the per-day image directory on each minute boundary.
type Sink struct {
	ds         datastore.Interface
	client     mqtt.Client
	topic      string
	imagesPath string

	mu         sync.Mutex
	lastMinute time.Time

	// now is swapped out in tests
	now func() time.Time
}

// NewSink creates a heartbeat sink reading pings below the given topic.
func NewSink(ds datastore.Interface, client mqtt.Client, topic, imagesPath string) *Sink {
	return &Sink{
		ds:         ds,
		client:     client,
		topic:      topic,
		imagesPath: imagesPath,
		now:        time.Now,
	}
}

// Start subscribes to the ping topic. Pings flow through handlePing until
// the client disconnects.
func (s *Sink) Start() error {
	return s.client.Subscribe(s.topic+"/#", s.handlePing)
}

// handlePing runs on the MQTT callback goroutine. All failures are logged
// and dropped; a bad ping must not take the sink down.
func (s *Sink) handlePing(topic string, payload []byte) {
	source := topic[strings.LastIndex(topic, "/")+1:]
	now := s.now()
	minute := now.Truncate(time.Minute)

	s.mu.Lock()
	if !minute.After(s.lastMinute) {
		s.mu.Unlock()
		logger.Debug("ping received", "source", source, "persisted", false)
		return
	}
	s.lastMinute = minute
	s.mu.Unlock()

	filename, err := s.saveImage(now, payload)
	if err != nil {
		logger.Error("failed to save heartbeat image", "source", source, "error", err)
		filename = "N/A"
	}

	if err := s.ds.SaveHeartBeat(&datastore.HeartBeat{CreateTS: now, ImFilename: filename}); err != nil {
		logger.Error("failed to persist heartbeat", "source", source, "error", err)
		return
	}
	logger.Debug("ping received", "source", source, "persisted", true, "image", filename)
}

// saveImage writes the snapshot under the per-day directory and returns
// the file path.
func (s *Sink) saveImage(now time.Time, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "N/A", nil
	}
	dayDir := filepath.Join(s.imagesPath, now.Format(dayDirLayout))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dayDir, now.Format(imageTimeLayout)+markerSuffix)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
