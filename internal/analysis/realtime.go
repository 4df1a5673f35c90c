package analysis

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/third-eye-sec/thirdeye/internal/alert"
	"github.com/third-eye-sec/thirdeye/internal/analysis/jobqueue"
	"github.com/third-eye-sec/thirdeye/internal/capture"
	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
	"github.com/third-eye-sec/thirdeye/internal/detector"
	"github.com/third-eye-sec/thirdeye/internal/httpcontroller"
	"github.com/third-eye-sec/thirdeye/internal/mqtt"
	"github.com/third-eye-sec/thirdeye/internal/notify"
	"github.com/third-eye-sec/thirdeye/internal/stream"
	"github.com/third-eye-sec/thirdeye/internal/telemetry"
)

// RealtimeAnalysis starts the frame analytics pipeline and its supporting
// services, then waits for a termination signal.
func RealtimeAnalysis(settings *conf.Settings) error {
	// Print platform details at startup.
	if info, err := host.Info(); err != nil {
		fmt.Printf("Error retrieving host info: %v\n", err)
	} else {
		fmt.Printf("System details: %s %s %s\n", info.OS, info.Platform, info.PlatformVersion)
	}

	fmt.Printf("Starting analyzer in realtime mode. Source: %s, confidence: %v, tracked classes: %v\n",
		settings.Capture.Source,
		settings.Detection.Confidence,
		settings.Detection.TrackClasses)

	dataStore := datastore.New(settings)
	if dataStore == nil {
		return fmt.Errorf("no database output enabled in configuration")
	}
	if err := dataStore.Open(); err != nil {
		return err
	}
	defer closeDataStore(dataStore)

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	notifier, err := notify.New(settings.Notify)
	if err != nil {
		return fmt.Errorf("error initializing notifier: %w", err)
	}
	engine := alert.NewEngine(dataStore, notifier, metrics)

	labels, err := detector.LoadLabels(settings.Detection.LabelsPath)
	if err != nil {
		logger.Warn("failed to load labels file, tracked classes come from configuration only", "error", err)
	} else {
		logger.Info("loaded detection labels", "count", len(labels))
	}
	det := detector.NewHTTPDetector(settings.Detection.Endpoint, settings.Detection.Confidence)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var client mqtt.Client
	if settings.Heartbeat.Enabled {
		client = mqtt.NewClient(settings, metrics)
		if err := client.Connect(ctx); err != nil {
			// the client reconnects on its own; the pipeline runs without
			// liveness pings until then
			logger.Error("failed to connect to MQTT broker", "error", err)
		}
		defer client.Disconnect()
	}

	queue := jobqueue.NewJobQueue()
	queue.SetDropHandler(metrics.IncrementJobsDropped)
	queue.StartWithContext(ctx)

	broadcast := stream.New()

	proc, err := NewProcessor(settings, dataStore, det, engine, queue, metrics, broadcast, client)
	if err != nil {
		return fmt.Errorf("error initializing processor: %w", err)
	}

	source := capture.NewFFmpegSource(settings.Capture)
	if err := source.Open(ctx); err != nil {
		return fmt.Errorf("error opening capture source: %w", err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.Error("failed to close capture source", "error", err)
		}
	}()

	var httpServer *httpcontroller.Server
	if settings.WebServer.Enabled {
		httpServer = httpcontroller.New(settings, dataStore, broadcast)
		httpServer.Start()
		defer func() {
			if err := httpServer.Shutdown(); err != nil {
				logger.Error("failed to shut down web server", "error", err)
			}
		}()
	}

	var wg sync.WaitGroup
	quit := newQuitSignal()

	startTelemetryEndpoint(&wg, settings, quit.ch)
	startFrameLoop(ctx, &wg, proc, source, quit)
	monitorCtrlC(quit)

	<-quit.ch
	cancel()
	wg.Wait()

	if err := queue.StopWithTimeout(10 * time.Second); err != nil {
		logger.Error("job queue did not drain in time", "error", err)
	}
	if err := proc.Close(); err != nil {
		logger.Error("failed to release processor resources", "error", err)
	}
	if err := broadcast.Close(); err != nil {
		logger.Error("failed to release stream slot", "error", err)
	}
	return nil
}

// startFrameLoop runs the frame analytics loop on its own goroutine. A
// read failure ends the loop and signals shutdown; the process supervisor
// is responsible for restarting a dead pipeline.
func startFrameLoop(ctx context.Context, wg *sync.WaitGroup, proc *Processor, source capture.Source, quit *quitSignal) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-quit.ch:
				return
			default:
			}

			f, err := source.Read()
			if err != nil {
				logger.Error("capture read failed, stopping pipeline", "error", err)
				quit.Close()
				return
			}
			proc.ProcessFrame(ctx, f)
		}
	}()
}

func startTelemetryEndpoint(wg *sync.WaitGroup, settings *conf.Settings, quitChan <-chan struct{}) {
	if !settings.Telemetry.Enabled {
		return
	}
	endpoint, err := telemetry.NewEndpoint(settings)
	if err != nil {
		logger.Error("failed to initialize telemetry endpoint", "error", err)
		return
	}
	endpoint.Start(wg, quitChan)
}

// monitorCtrlC listens for SIGINT/SIGTERM and triggers shutdown.
func monitorCtrlC(quit *quitSignal) {
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("received shutdown signal")
		quit.Close()
	}()
}

// quitSignal is a shutdown channel that tolerates multiple goroutines
// racing to close it.
type quitSignal struct {
	ch   chan struct{}
	once sync.Once
}

func newQuitSignal() *quitSignal {
	return &quitSignal{ch: make(chan struct{})}
}

func (q *quitSignal) Close() {
	q.once.Do(func() { close(q.ch) })
}

func closeDataStore(store datastore.Interface) {
	if err := store.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	} else {
		logger.Info("database closed")
	}
}
