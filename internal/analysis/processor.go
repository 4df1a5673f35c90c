package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"github.com/third-eye-sec/thirdeye/internal/alert"
	"github.com/third-eye-sec/thirdeye/internal/analysis/jobqueue"
	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
	"github.com/third-eye-sec/thirdeye/internal/detector"
	"github.com/third-eye-sec/thirdeye/internal/frame"
	"github.com/third-eye-sec/thirdeye/internal/mqtt"
	"github.com/third-eye-sec/thirdeye/internal/stream"
	"github.com/third-eye-sec/thirdeye/internal/telemetry"
	"github.com/third-eye-sec/thirdeye/internal/tracker"
	"github.com/third-eye-sec/thirdeye/internal/vision"
)

// procWidth is the width frames are down-scaled to before analysis. The
// secure-zone polygon is configured in this coordinate space, so changing
// it invalidates existing zone configurations.
const procWidth = 400

// Processor drives one frame per tick through motion detection, object
// detection, tracking and the alert/persistence hand-off. All state is
// owned by the single goroutine calling ProcessFrame; only the job queue
// and the stream hand-off are shared.
type Processor struct {
	ds        datastore.Interface
	detector  detector.Interface
	engine    *alert.Engine
	queue     *jobqueue.JobQueue
	metrics   *telemetry.Metrics
	broadcast *stream.Broadcast
	client    mqtt.Client

	subtractor *vision.BackgroundSubtractor
	mask       *vision.ZoneMask
	trackers   map[string]*tracker.Tracker

	motionFrames   int
	isCheckAlert   bool
	lastAlertCheck time.Time
	currentDay     int
	frameTotal     uint64

	counter   int
	procTotal time.Duration

	now func() time.Time
}

// NewProcessor builds the pipeline state for the configured capture
// geometry. Failing to obtain the tracker id seeds is fatal: without them
// a restart could reuse object ids already written to storage.
func NewProcessor(settings *conf.Settings, ds datastore.Interface, det detector.Interface,
	engine *alert.Engine, queue *jobqueue.JobQueue, metrics *telemetry.Metrics,
	broadcast *stream.Broadcast, client mqtt.Client) (*Processor, error) {

	if settings.Capture.Width <= 0 || settings.Capture.Height <= 0 {
		return nil, fmt.Errorf("invalid capture geometry %dx%d", settings.Capture.Width, settings.Capture.Height)
	}
	smallHeight := settings.Capture.Height * procWidth / settings.Capture.Width

	var mask *vision.ZoneMask
	if len(settings.Security.SecureZone) >= 3 {
		var err error
		mask, err = vision.NewZoneMask(settings.Security.SecureZone, procWidth, smallHeight)
		if err != nil {
			return nil, fmt.Errorf("building secure zone mask: %w", err)
		}
	}

	now := time.Now()
	trackers, err := seedTrackers(ds, settings, now)
	if err != nil {
		return nil, err
	}

	return &Processor{
		ds:        ds,
		detector:  det,
		engine:    engine,
		queue:     queue,
		metrics:   metrics,
		broadcast: broadcast,
		client:    client,
		subtractor: vision.NewBackgroundSubtractor(settings.Motion.History,
			settings.Motion.VarThreshold, settings.Motion.DetectShadows),
		mask:         mask,
		trackers:     trackers,
		isCheckAlert: true,
		currentDay:   now.Day(),
		now:          time.Now,
	}, nil
}

// seedTrackers creates one tracker per tracked class, each starting from
// the next id after the highest already persisted for the current day.
func seedTrackers(ds datastore.Interface, settings *conf.Settings, day time.Time) (map[string]*tracker.Tracker, error) {
	trackers := make(map[string]*tracker.Tracker, len(settings.Detection.TrackClasses))
	for _, label := range settings.Detection.TrackClasses {
		maxID, err := ds.MaxObjectID(day, label)
		if err != nil {
			return nil, fmt.Errorf("seeding tracker for %s: %w", label, err)
		}
		trackers[label] = tracker.New(maxID+1, settings.Detection.MaxMatchDist)
	}
	return trackers, nil
}

// ProcessFrame runs one pipeline tick. It takes ownership of the frame.
// Collaborator failures are logged and dropped so a slow or broken
// downstream can never stall the capture cadence.
func (p *Processor) ProcessFrame(ctx context.Context, f *frame.Frame) {
	settings := conf.Setting()
	start := p.now()

	f.Mirror()
	if settings.Capture.FlipVertical {
		f.FlipVertical()
	}

	small := f.Resize(procWidth)
	if p.mask != nil {
		if err := p.mask.Apply(small); err != nil {
			logger.Error("failed to apply secure zone mask", "error", err)
		}
	}

	gray := small.Gray()
	fg := p.subtractor.Apply(gray)
	defer func() {
		if err := gray.Close(); err != nil {
			logger.Error("failed to release gray frame", "error", err)
		}
		if err := fg.Close(); err != nil {
			logger.Error("failed to release foreground mask", "error", err)
		}
	}()

	var motions []datastore.MotionDetection
	var objects []datastore.ObjectDetection

	if p.subtractor.Ready() {
		candidates := motionCandidates(fg, settings.Motion.MinArea)
		if len(candidates) == 0 {
			// motion must be consecutive, not cumulative
			p.motionFrames = 0
		} else {
			p.motionFrames++
			if p.motionFrames >= settings.Motion.MinFrames {
				p.motionFrames = 0
				for _, r := range candidates {
					motions = append(motions, datastore.MotionDetection{
						Detection: datastore.Detection{CreateTS: start, X: r.X, Y: r.Y, W: r.W, H: r.H, Area: int(r.Area)},
					})
				}
				objects = p.detectObjects(ctx, settings, small, start)
			}
		}
	}
	p.metrics.IncrementMotionDetections(len(motions))

	intruders := intruderLabels(objects, settings.Security.IntruderClasses)
	p.checkAlerts(settings, intruders, f, small, start)

	if len(motions)+len(objects) > 0 {
		batch := &detectionBatch{Motion: motions, Objects: objects}
		if err := p.queue.Enqueue(&persistDetectionsAction{ds: p.ds}, batch); err != nil {
			logger.Error("failed to enqueue detection batch", "error", err)
		}
	}

	published, discarded := f, small
	if settings.Debug {
		published, discarded = small, f
	}
	p.publishHeartbeat(settings, published)
	p.broadcast.Publish(published)
	if err := discarded.Close(); err != nil {
		logger.Error("failed to release frame", "error", err)
	}

	p.instrument(settings, start)
}

// detectObjects runs the object detector on the down-scaled frame and
// feeds the surviving boxes through the per-class trackers.
func (p *Processor) detectObjects(ctx context.Context, settings *conf.Settings, small *frame.Frame, ts time.Time) []datastore.ObjectDetection {
	results, err := p.detector.Detect(ctx, small)
	if err != nil {
		logger.Error("object detection failed", "error", err)
		return nil
	}

	// group detections by class, preserving detection order
	byLabel := make(map[string][]detector.Detection)
	var labels []string
	for _, d := range results {
		if !contains(settings.Detection.TrackClasses, d.Label) {
			continue
		}
		if _, seen := byLabel[d.Label]; !seen {
			labels = append(labels, d.Label)
		}
		byLabel[d.Label] = append(byLabel[d.Label], d)
	}

	var objects []datastore.ObjectDetection
	for _, label := range labels {
		tr := p.trackers[label]
		if tr == nil {
			continue
		}
		group := byLabel[label]
		boxes := make([]tracker.Box, len(group))
		for i, d := range group {
			boxes[i] = d.Box
		}
		for i, tb := range tr.Update(boxes) {
			obj := datastore.NewObjectDetection(ts, tb.X, tb.Y, tb.W, tb.H, label, tb.ObjectID, group[i].Score)
			objects = append(objects, obj)
			p.metrics.IncrementObjectDetections(label)
			if settings.Debug {
				annotate(small, obj)
			}
		}
	}
	return objects
}

// checkAlerts manages the alert-check gate and dispatches the decision
// engine asynchronously. The gate is mutated only here, on the pipeline
// goroutine, so it needs no lock.
func (p *Processor) checkAlerts(settings *conf.Settings, intruders []string, f, small *frame.Frame, now time.Time) {
	if len(intruders) == 0 {
		return
	}

	minGap := time.Duration(settings.Security.SecBetweenAlertChecks) * time.Second
	if !p.isCheckAlert && !p.lastAlertCheck.IsZero() && now.Sub(p.lastAlertCheck) > minGap {
		p.isCheckAlert = true
	}
	if !p.isCheckAlert {
		return
	}

	snapshot := f
	if settings.Debug {
		snapshot = small
	}
	job := &alertCheckJob{Time: now, Labels: intruders, Snapshot: snapshot.Clone()}
	if err := p.queue.Enqueue(&alertCheckAction{engine: p.engine}, job); err != nil {
		logger.Error("failed to enqueue alert check", "error", err)
		if cerr := job.Snapshot.Close(); cerr != nil {
			logger.Error("failed to release alert snapshot", "error", cerr)
		}
		return
	}
	p.isCheckAlert = false
	p.lastAlertCheck = now
}

// publishHeartbeat enqueues a liveness ping with the current frame every
// configured number of processed frames.
func (p *Processor) publishHeartbeat(settings *conf.Settings, f *frame.Frame) {
	p.frameTotal++
	if p.client == nil || !settings.Heartbeat.Enabled || settings.Heartbeat.IntervalFrames <= 0 {
		return
	}
	if p.frameTotal%uint64(settings.Heartbeat.IntervalFrames) != 0 {
		return
	}
	topic := settings.Heartbeat.Topic + "/" + settings.Main.Name
	action := &heartbeatPingAction{client: p.client, topic: topic, metrics: p.metrics}
	snapshot := f.Clone()
	if err := p.queue.Enqueue(action, snapshot); err != nil {
		logger.Error("failed to enqueue heartbeat ping", "error", err)
		if cerr := snapshot.Close(); cerr != nil {
			logger.Error("failed to release heartbeat snapshot", "error", cerr)
		}
	}
}

// instrument accumulates per-frame latency, logs the rolling average every
// N frames and handles day rollover, which is the only tracker reset
// trigger.
func (p *Processor) instrument(settings *conf.Settings, start time.Time) {
	elapsed := p.now().Sub(start)
	p.metrics.ObserveFrameProcess(elapsed.Seconds())

	n := settings.Main.AvgProcTimeN
	if n <= 0 {
		n = 100
	}
	if p.counter == 0 || p.counter%n != 0 {
		p.procTotal += elapsed
		p.counter++
		return
	}

	logger.Info("average frame processing time",
		"avg", p.procTotal/time.Duration(n), "frames", n)
	p.counter = 0
	p.procTotal = 0

	if day := start.Day(); day != p.currentDay {
		p.currentDay = day
		p.resetTrackers(settings)
		logger.Info("new day arrived, object trackers reset", "day", day)
	}
}

// resetTrackers reinitializes every class tracker with a fresh id
// sequence for the new day.
func (p *Processor) resetTrackers(settings *conf.Settings) {
	trackers := make(map[string]*tracker.Tracker, len(settings.Detection.TrackClasses))
	for _, label := range settings.Detection.TrackClasses {
		trackers[label] = tracker.New(0, settings.Detection.MaxMatchDist)
	}
	p.trackers = trackers
}

// motionCandidates returns the foreground contours large enough to
// qualify as motion.
func motionCandidates(fg gocv.Mat, minArea int) []vision.Region {
	var candidates []vision.Region
	for _, r := range vision.Regions(fg) {
		if r.Area >= float64(minArea) {
			candidates = append(candidates, r)
		}
	}
	return candidates
}

// intruderLabels filters tracked detections down to the intruder subset.
func intruderLabels(objects []datastore.ObjectDetection, intruderClasses []string) []string {
	var labels []string
	for _, obj := range objects {
		if contains(intruderClasses, obj.Label) {
			labels = append(labels, obj.Label)
		}
	}
	return labels
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// annotate draws the bounding box, centroid and id of a tracked object
// onto the debug frame.
func annotate(f *frame.Frame, obj datastore.ObjectDetection) {
	green := color.RGBA{G: 255, A: 255}
	gocv.Rectangle(&f.Mat, image.Rect(obj.X, obj.Y, obj.X+obj.W, obj.Y+obj.H), green, 2)
	gocv.Circle(&f.Mat, image.Pt(obj.CX, obj.CY), 4, green, -1)
	gocv.PutText(&f.Mat, obj.Label+" "+strconv.Itoa(obj.ObjID),
		image.Pt(obj.X, obj.Y-5), gocv.FontHersheySimplex, 0.5, green, 1)
}

// Close releases the native vision resources held by the pipeline. Called
// once, after the frame loop and the job queue have stopped.
func (p *Processor) Close() error {
	var errs []error
	if err := p.subtractor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing background model: %w", err))
	}
	if p.mask != nil {
		if err := p.mask.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing secure zone mask: %w", err))
		}
	}
	return errors.Join(errs...)
}
