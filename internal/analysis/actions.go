package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/third-eye-sec/thirdeye/internal/alert"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
	"github.com/third-eye-sec/thirdeye/internal/frame"
	"github.com/third-eye-sec/thirdeye/internal/mqtt"
	"github.com/third-eye-sec/thirdeye/internal/telemetry"
)

// heartbeatQuality is the JPEG quality of liveness ping snapshots. Pings
// are frequent and only need to show the scene, not evidence-grade detail.
const heartbeatQuality = 75

// detectionBatch is one tick's worth of detections, persisted together.
type detectionBatch struct {
	Motion  []datastore.MotionDetection
	Objects []datastore.ObjectDetection
}

// persistDetectionsAction saves a detection batch in the background.
type persistDetectionsAction struct {
	ds datastore.Interface
}

func (a *persistDetectionsAction) Name() string { return "persist detections" }

func (a *persistDetectionsAction) Execute(_ context.Context, data any) error {
	batch, ok := data.(*detectionBatch)
	if !ok {
		return fmt.Errorf("unexpected job payload %T", data)
	}
	return a.ds.SaveDetections(batch.Motion, batch.Objects)
}

// alertCheckJob carries what the decision engine needs from the tick that
// dispatched it; later ticks may have moved on by the time it runs. The
// job owns its snapshot copy and releases it after the check.
type alertCheckJob struct {
	Time     time.Time
	Labels   []string
	Snapshot *frame.Frame
}

// alertCheckAction runs the alert decision engine in the background.
type alertCheckAction struct {
	engine *alert.Engine
}

func (a *alertCheckAction) Name() string { return "alert check" }

func (a *alertCheckAction) Execute(ctx context.Context, data any) error {
	job, ok := data.(*alertCheckJob)
	if !ok {
		return fmt.Errorf("unexpected job payload %T", data)
	}
	defer func() {
		if err := job.Snapshot.Close(); err != nil {
			logger.Error("failed to release alert snapshot", "error", err)
		}
	}()
	outcome, err := a.engine.Check(ctx, job.Time, job.Labels, job.Snapshot)
	if err != nil {
		return err
	}
	if outcome.Triggered {
		logger.Info("alert raised", "intruders", job.Labels)
	} else if outcome.Reason != "" {
		logger.Info("alert suppressed", "reason", outcome.Reason)
	}
	return nil
}

// heartbeatPingAction encodes the frame and publishes it as a liveness
// ping. Encoding happens here rather than on the pipeline goroutine.
type heartbeatPingAction struct {
	client  mqtt.Client
	topic   string
	metrics *telemetry.Metrics
}

func (a *heartbeatPingAction) Name() string { return "heartbeat ping" }

func (a *heartbeatPingAction) Execute(ctx context.Context, data any) error {
	f, ok := data.(*frame.Frame)
	if !ok {
		return fmt.Errorf("unexpected job payload %T", data)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Error("failed to release heartbeat snapshot", "error", err)
		}
	}()
	payload, err := f.EncodeJPEG(heartbeatQuality)
	if err != nil {
		return fmt.Errorf("encoding heartbeat snapshot: %w", err)
	}
	if err := a.client.Publish(ctx, a.topic, payload); err != nil {
		return err
	}
	a.metrics.IncrementHeartbeatsPublished()
	return nil
}
