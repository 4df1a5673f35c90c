package heartbeat

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
	"github.com/third-eye-sec/thirdeye/internal/mqtt"
	"github.com/third-eye-sec/thirdeye/internal/notify"
	"github.com/third-eye-sec/thirdeye/internal/supervisor"
)

// RunMonitor starts the ping sink and the liveness checker and blocks
// until the process is interrupted. This is the supervisory process
// watching over the capture pipeline, so it must outlive transient
// collaborator failures.
func RunMonitor(settings *conf.Settings) error {
	if !settings.Heartbeat.Enabled {
		return fmt.Errorf("heartbeat monitoring is disabled in configuration")
	}

	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database output enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := mqtt.NewClient(settings, nil)
	if err := client.Connect(ctx); err != nil {
		// the client retries on its own; pings are missed until the
		// broker is reachable, which the checker will report
		logger.Error("failed to connect to MQTT broker", "error", err)
	}
	defer client.Disconnect()

	notifier, err := notify.New(settings.Notify)
	if err != nil {
		return fmt.Errorf("initializing notifier: %w", err)
	}

	return run(ctx, settings, ds, client, notifier, supervisor.New())
}

// run wires the sink and the checker and blocks until ctx is cancelled. A
// failed initial subscription is logged, not fatal: the subscription stays
// registered with the client and is replayed once the broker connection
// comes up, and the checker keeps watching either way.
func run(ctx context.Context, settings *conf.Settings, ds datastore.Interface,
	client mqtt.Client, notifier notify.Notifier, ctl supervisor.Controller) error {

	sink := NewSink(ds, client, settings.Heartbeat.Topic, settings.Main.ImagesPath)
	if err := sink.Start(); err != nil {
		logger.Error("heartbeat sink subscription failed, waiting for reconnect", "error", err)
	}

	checker := NewChecker(ds, notifier, ctl)
	logger.Info("heartbeat monitor started",
		"topic", settings.Heartbeat.Topic,
		"check_interval_sec", settings.Heartbeat.CheckIntervalSec)
	checker.Run(ctx)

	logger.Info("heartbeat monitor stopped")
	return nil
}
