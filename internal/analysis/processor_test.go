package analysis

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/third-eye-sec/thirdeye/internal/alert"
	"github.com/third-eye-sec/thirdeye/internal/analysis/jobqueue"
	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
	"github.com/third-eye-sec/thirdeye/internal/detector"
	"github.com/third-eye-sec/thirdeye/internal/frame"
	"github.com/third-eye-sec/thirdeye/internal/notify"
	"github.com/third-eye-sec/thirdeye/internal/stream"
	"github.com/third-eye-sec/thirdeye/internal/tracker"
)

// installSettings makes a minimal configuration the current snapshot.
// Tests using it must not run in parallel.
func installSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Main.Name = "test-node"
	settings.Main.ImagesPath = t.TempDir()
	settings.Main.AvgProcTimeN = 1000
	settings.Capture.Width = 400
	settings.Capture.Height = 100
	settings.Motion.History = 3
	settings.Motion.VarThreshold = 4
	settings.Motion.MinArea = 4
	settings.Motion.MinFrames = 2
	settings.Detection.Confidence = 0.5
	settings.Detection.TrackClasses = []string{"person", "cat"}
	settings.Detection.MaxMatchDist = 30
	settings.Security.IntruderClasses = []string{"person"}
	settings.Security.SecBetweenAlertChecks = 60
	settings.Security.SecBetweenAlerts = 60
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "thirdeye.db")

	conf.UpdateSettings(settings)
	return settings
}

func openStore(t *testing.T, settings *conf.Settings) datastore.Interface {
	t.Helper()
	ds := datastore.New(settings)
	require.NotNil(t, ds)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

// scriptedDetector returns a fixed detection set on every call.
type scriptedDetector struct {
	results []detector.Detection
	calls   int
	err     error
}

func (d *scriptedDetector) Detect(_ context.Context, _ *frame.Frame) ([]detector.Detection, error) {
	d.calls++
	return d.results, d.err
}

func newTestProcessor(t *testing.T, settings *conf.Settings, ds datastore.Interface, det detector.Interface) (*Processor, *jobqueue.JobQueue) {
	t.Helper()

	notifier, err := notify.New(settings.Notify)
	require.NoError(t, err)
	engine := alert.NewEngine(ds, notifier, nil)

	queue := jobqueue.NewJobQueue()
	queue.Start()
	t.Cleanup(func() { _ = queue.StopWithTimeout(5 * time.Second) })

	proc, err := NewProcessor(settings, ds, det, engine, queue, nil, stream.New(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = proc.Close()
		_ = proc.broadcast.Close()
	})
	return proc, queue
}

// blackFrame builds an all-black frame at capture geometry. A bright blob
// registers as motion when blobX is non-negative; consecutive motion
// frames should place the blob at different positions, the way a moving
// object would.
func blackFrame(settings *conf.Settings, blobX int) *frame.Frame {
	f := frame.New(settings.Capture.Width, settings.Capture.Height, time.Now())
	if blobX >= 0 {
		white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		gocv.Rectangle(&f.Mat, image.Rect(blobX, 40, blobX+12, 52), white, -1)
	}
	return f
}

func TestProcessFrameWarmupSuppressesDetection(t *testing.T) {
	settings := installSettings(t)
	ds := openStore(t, settings)
	det := &scriptedDetector{}
	proc, _ := newTestProcessor(t, settings, ds, det)

	// the background model has not seen history frames yet, so even a
	// blob must not reach the detector
	proc.ProcessFrame(context.Background(), blackFrame(settings, 100))
	proc.ProcessFrame(context.Background(), blackFrame(settings, 150))

	assert.Equal(t, 0, det.calls)
}

func TestProcessFrameConsecutiveMotionGate(t *testing.T) {
	settings := installSettings(t)
	ds := openStore(t, settings)
	det := &scriptedDetector{results: []detector.Detection{
		{Box: tracker.Box{X: 190, Y: 40, W: 10, H: 10}, Label: "person", Score: 0.9},
	}}
	proc, queue := newTestProcessor(t, settings, ds, det)

	ctx := context.Background()
	for i := 0; i < settings.Motion.History; i++ {
		proc.ProcessFrame(ctx, blackFrame(settings, -1))
	}

	// first motion frame only increments the streak
	proc.ProcessFrame(ctx, blackFrame(settings, 100))
	assert.Equal(t, 0, det.calls)

	// second consecutive motion frame confirms motion and runs detection
	proc.ProcessFrame(ctx, blackFrame(settings, 150))
	assert.Equal(t, 1, det.calls)

	require.NoError(t, queue.StopWithTimeout(5*time.Second))

	objects, err := ds.RecentObjectDetections(10)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "person", objects[0].Label)
	assert.Equal(t, 0, objects[0].ObjID)
}

func TestProcessFrameMotionGapResetsStreak(t *testing.T) {
	settings := installSettings(t)
	ds := openStore(t, settings)
	det := &scriptedDetector{}
	proc, _ := newTestProcessor(t, settings, ds, det)

	ctx := context.Background()
	for i := 0; i < settings.Motion.History; i++ {
		proc.ProcessFrame(ctx, blackFrame(settings, -1))
	}

	proc.ProcessFrame(ctx, blackFrame(settings, 100))
	assert.Equal(t, 1, proc.motionFrames)

	// a single still frame resets the counter
	proc.ProcessFrame(ctx, blackFrame(settings, -1))
	assert.Equal(t, 0, proc.motionFrames)
}

func TestProcessFramePublishesLatest(t *testing.T) {
	settings := installSettings(t)
	ds := openStore(t, settings)
	proc, _ := newTestProcessor(t, settings, ds, &scriptedDetector{})

	proc.ProcessFrame(context.Background(), blackFrame(settings, -1))

	latest := proc.broadcast.Latest()
	require.NotNil(t, latest)
	defer latest.Close()
	assert.Equal(t, settings.Capture.Width, latest.Width())
}

func TestSeedTrackersFromPersistedIDs(t *testing.T) {
	settings := installSettings(t)
	ds := openStore(t, settings)

	require.NoError(t, ds.SaveDetections(nil, []datastore.ObjectDetection{
		datastore.NewObjectDetection(time.Now(), 1, 2, 3, 4, "person", 5, 0.9),
	}))

	trackers, err := seedTrackers(ds, settings, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 6, trackers["person"].NextID())
	assert.Equal(t, 0, trackers["cat"].NextID())
}

type failingStore struct {
	datastore.Interface
}

func (failingStore) MaxObjectID(time.Time, string) (int, error) {
	return 0, errors.New("database offline")
}

func TestSeedTrackersErrorIsFatal(t *testing.T) {
	settings := installSettings(t)
	ds := openStore(t, settings)

	_, err := seedTrackers(failingStore{ds}, settings, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seeding tracker")
}

func TestCheckAlertsGateClosesAfterDispatch(t *testing.T) {
	settings := installSettings(t)
	ds := openStore(t, settings)
	proc, _ := newTestProcessor(t, settings, ds, &scriptedDetector{})

	now := time.Now()
	f := blackFrame(settings, -1)
	defer f.Close()
	small := f.Resize(procWidth)
	defer small.Close()

	require.True(t, proc.isCheckAlert)
	proc.checkAlerts(settings, []string{"person"}, f, small, now)
	assert.False(t, proc.isCheckAlert)
	assert.Equal(t, now, proc.lastAlertCheck)

	// still closed inside the window
	proc.checkAlerts(settings, []string{"person"}, f, small, now.Add(30*time.Second))
	assert.False(t, proc.isCheckAlert)

	// reopens once the window has elapsed, and dispatch closes it again
	proc.checkAlerts(settings, []string{"person"}, f, small, now.Add(61*time.Second))
	assert.False(t, proc.isCheckAlert)
	assert.Equal(t, now.Add(61*time.Second), proc.lastAlertCheck)
}

func TestCheckAlertsNoIntrudersLeavesGateOpen(t *testing.T) {
	settings := installSettings(t)
	ds := openStore(t, settings)
	proc, _ := newTestProcessor(t, settings, ds, &scriptedDetector{})

	f := blackFrame(settings, -1)
	defer f.Close()
	small := f.Resize(procWidth)
	defer small.Close()
	proc.checkAlerts(settings, nil, f, small, time.Now())
	assert.True(t, proc.isCheckAlert)
}

func TestInstrumentDayRolloverResetsTrackers(t *testing.T) {
	settings := installSettings(t)
	ds := openStore(t, settings)

	require.NoError(t, ds.SaveDetections(nil, []datastore.ObjectDetection{
		datastore.NewObjectDetection(time.Now(), 1, 2, 3, 4, "person", 7, 0.9),
	}))

	proc, _ := newTestProcessor(t, settings, ds, &scriptedDetector{})
	require.Equal(t, 8, proc.trackers["person"].NextID())

	proc.counter = settings.Main.AvgProcTimeN
	tomorrow := time.Now().AddDate(0, 0, 1)
	proc.instrument(settings, tomorrow)

	assert.Equal(t, tomorrow.Day(), proc.currentDay)
	assert.Equal(t, 0, proc.trackers["person"].NextID())
}

func TestIntruderLabels(t *testing.T) {
	t.Parallel()

	objects := []datastore.ObjectDetection{
		datastore.NewObjectDetection(time.Now(), 1, 1, 2, 2, "person", 0, 0.9),
		datastore.NewObjectDetection(time.Now(), 5, 5, 2, 2, "bird", 0, 0.8),
		datastore.NewObjectDetection(time.Now(), 9, 9, 2, 2, "person", 1, 0.7),
	}

	labels := intruderLabels(objects, []string{"person", "cat"})
	assert.Equal(t, []string{"person", "person"}, labels)

	assert.Empty(t, intruderLabels(objects, []string{"dog"}))
	assert.Empty(t, intruderLabels(nil, []string{"person"}))
}

func TestMotionCandidatesFiltersByArea(t *testing.T) {
	t.Parallel()

	// 8x8 mask: one 3x3 blob (contour area 4) and one single pixel
	// (contour area 0)
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		8, 8, gocv.MatTypeCV8UC1)
	defer mask.Close()
	for y := 1; y <= 3; y++ {
		for x := 1; x <= 3; x++ {
			mask.SetUCharAt(y, x, 255)
		}
	}
	mask.SetUCharAt(6, 6, 255)

	candidates := motionCandidates(mask, 2)
	require.Len(t, candidates, 1)
	assert.Equal(t, 4.0, candidates[0].Area)
}
