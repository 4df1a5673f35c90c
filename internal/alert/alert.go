// Package alert decides whether intruder detections become an alert. The
// decision runs off the frame loop: throttling against the previous alert,
// occupancy suppression, image capture, notification and the final status
// flip all happen here.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
	"github.com/third-eye-sec/thirdeye/internal/frame"
	"github.com/third-eye-sec/thirdeye/internal/logging"
	"github.com/third-eye-sec/thirdeye/internal/notify"
	"github.com/third-eye-sec/thirdeye/internal/telemetry"
)

const (
	dayDirLayout     = "2006-01-02"
	imageTimeLayout  = "150405.000"
	intruderSuffix   = "_INTRUDER.jpg"
	alertTitle       = "Intruder detected"
	imageJPEGQuality = 90
)

// Suppression reasons recorded in metrics and logs.
const (
	ReasonThrottled  = "throttled"
	ReasonOwnersHome = "owners_home"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("alert")
	if logger == nil {
		logger = slog.Default().With("service", "alert")
	}
}

// Outcome describes what a check decided.
type Outcome struct {
	Triggered bool
	// Reason is set when the alert was suppressed.
	Reason string
}

// Engine runs alert checks against the datastore and notifier.
type Engine struct {
	ds       datastore.Interface
	notifier notify.Notifier
	metrics  *telemetry.Metrics
}

// NewEngine creates an alert engine.
func NewEngine(ds datastore.Interface, notifier notify.Notifier, metrics *telemetry.Metrics) *Engine {
	return &Engine{
		ds:       ds,
		notifier: notifier,
		metrics:  metrics,
	}
}

// Check runs the full alert decision for the intruder labels seen in the
// given frame. now is the frame's wall-clock time; all throttle and
// override arithmetic uses it.
func (e *Engine) Check(ctx context.Context, now time.Time, intruderLabels []string, snapshot *frame.Frame) (Outcome, error) {
	settings := conf.Setting()
	labels := distinct(intruderLabels)
	if len(labels) == 0 {
		return Outcome{}, nil
	}

	// override hours force alerting regardless of who is home
	if !hourOverridden(settings.Security.OverrideHours, now.Hour()) {
		owners, err := e.ds.OccupantsHomeWithin(settings.Security.OwnerAwayMinutes)
		if err != nil {
			return Outcome{}, fmt.Errorf("checking occupancy: %w", err)
		}
		if len(owners) > 0 {
			e.metrics.IncrementAlertsSuppressed(ReasonOwnersHome)
			logger.Debug("alert suppressed", "reason", ReasonOwnersHome, "owners", owners)
			return Outcome{Reason: ReasonOwnersHome}, nil
		}
	}

	// throttle against the previous alert regardless of its status, so a
	// pending row left by a concurrent or crashed check still counts
	prev, err := e.ds.LatestAlert()
	if err != nil {
		return Outcome{}, fmt.Errorf("loading latest alert: %w", err)
	}
	if prev != nil && now.Sub(prev.CreateTS) < time.Duration(settings.Security.SecBetweenAlerts)*time.Second {
		e.metrics.IncrementAlertsSuppressed(ReasonThrottled)
		logger.Debug("alert suppressed", "reason", ReasonThrottled,
			"since_last", now.Sub(prev.CreateTS).Seconds())
		return Outcome{Reason: ReasonThrottled}, nil
	}

	// the pending row is the dedup write: once it exists, every other
	// check inside the throttle window backs off
	rec := &datastore.Alert{
		Title:    alertTitle,
		Status:   datastore.AlertStatusPending,
		CreateTS: now,
		Metadata: datastore.AlertMetadata{
			Intruders:      labels,
			CheckedClasses: settings.Security.IntruderClasses,
			CorrelationID:  uuid.NewString(),
		},
	}
	if prev != nil {
		rec.Metadata.PrevAlert = prev.CreateTS.Format(time.RFC3339)
	}
	if err := e.ds.SaveAlert(rec); err != nil {
		return Outcome{}, fmt.Errorf("saving pending alert: %w", err)
	}

	// image and notification failures degrade the metadata, never the alert
	imagePath, err := e.saveSnapshot(settings, now, snapshot)
	if err != nil {
		logger.Error("failed to save alert image", "error", err)
		imagePath = ""
	}
	rec.Metadata.ImagePath = imagePath

	notifyResult := "sent"
	body := fmt.Sprintf("Intruders detected: %v", labels)
	if err := e.notifier.Send(ctx, alertTitle, body, imagePath); err != nil {
		logger.Error("failed to send alert notification", "error", err)
		notifyResult = fmt.Sprintf("failed: %v", err)
	}
	rec.Metadata.NotifyResult = notifyResult

	updateTS := time.Now()
	rec.UpdateTS = &updateTS
	rec.Status = datastore.AlertStatusTriggered
	if err := e.ds.UpdateAlert(rec); err != nil {
		return Outcome{}, fmt.Errorf("finalizing alert: %w", err)
	}

	e.metrics.IncrementAlertsTriggered()
	logger.Info("alert triggered", "intruders", labels, "image", imagePath,
		"correlation_id", rec.Metadata.CorrelationID)
	return Outcome{Triggered: true}, nil
}

// saveSnapshot writes the frame under the per-day image directory as
// HHMMSS.mmm_INTRUDER.jpg and returns the full path.
func (e *Engine) saveSnapshot(settings *conf.Settings, now time.Time, snapshot *frame.Frame) (string, error) {
	if snapshot == nil {
		return "", fmt.Errorf("no snapshot frame")
	}

	dayDir := filepath.Join(settings.Main.ImagesPath, now.Format(dayDirLayout))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return "", fmt.Errorf("creating image directory: %w", err)
	}

	path := filepath.Join(dayDir, now.Format(imageTimeLayout)+intruderSuffix)
	if err := snapshot.SaveJPEG(path, imageJPEGQuality); err != nil {
		return "", fmt.Errorf("writing alert image: %w", err)
	}
	return path, nil
}

// hourOverridden reports whether the hour falls in any override range.
func hourOverridden(ranges []conf.HourRange, hour int) bool {
	for _, r := range ranges {
		if r.Contains(hour) {
			return true
		}
	}
	return false
}

// distinct returns the unique labels preserving first-seen order.
func distinct(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
