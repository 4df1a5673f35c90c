package heartbeat

import (
	"context"
	"time"

	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
	"github.com/third-eye-sec/thirdeye/internal/notify"
	"github.com/third-eye-sec/thirdeye/internal/supervisor"
)

// restartPause gives the restarted pipeline time to come up before the
// next health evaluation.
const restartPause = 30 * time.Second

// Checker evaluates pipeline liveness on a fixed interval and drives
// recovery when pings stop.
type Checker struct {
	ds         datastore.Interface
	notifier   notify.Notifier
	supervisor supervisor.Controller

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration)
}

// NewChecker creates a liveness checker.
func NewChecker(ds datastore.Interface, notifier notify.Notifier, ctl supervisor.Controller) *Checker {
	return &Checker{
		ds:         ds,
		notifier:   notifier,
		supervisor: ctl,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Run loops until the context is cancelled. Every failure inside an
// iteration is logged and the loop continues; this process supervises the
// pipeline and must outlive transient trouble.
func (c *Checker) Run(ctx context.Context) {
	var lastPruneDay time.Time

	for {
		settings := conf.Setting()
		interval := time.Duration(settings.Heartbeat.CheckIntervalSec) * time.Second

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		logger.Debug("checking heart beat")
		c.checkOnce(ctx, settings)

		// prune once per calendar day, in local time to line up with
		// the day directory names
		today := localMidnight(time.Now())
		if today.After(lastPruneDay) {
			removed, err := PruneImages(settings.Main.ImagesPath, time.Now(), settings.Heartbeat.RetentionDays)
			if err != nil {
				logger.Error("heartbeat image pruning failed", "error", err)
			} else {
				lastPruneDay = today
				if removed > 0 {
					logger.Info("pruned heartbeat images", "removed", removed)
				}
			}
		}
	}
}

// localMidnight truncates to the local calendar day.
func localMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// checkOnce evaluates the latest heartbeat and triggers recovery when the
// pipeline looks stalled.
func (c *Checker) checkOnce(ctx context.Context, settings *conf.Settings) {
	last, err := c.ds.LatestHeartBeat()
	if err != nil {
		logger.Error("failed to load latest heartbeat", "error", err)
		return
	}

	if healthy(last, time.Now(), time.Duration(settings.Heartbeat.MaxIdleSec)*time.Second) {
		return
	}

	logger.Warn("video stream looks stalled, restarting backend",
		"service", settings.Heartbeat.Service)

	if err := c.notifier.Send(ctx, "Third Eye stream stalled",
		"Third Eye noticed a problem with the video stream. Backend process will be restarted", ""); err != nil {
		logger.Error("failed to send stall notification", "error", err)
	}

	if err := c.supervisor.Restart(ctx, settings.Heartbeat.Service); err != nil {
		logger.Error("failed to restart backend", "error", err)
	}

	// let the restarted pipeline publish its first pings
	c.sleep(ctx, restartPause)
}

// healthy reports whether the last heartbeat arrived within maxIdle. A
// missing heartbeat counts as unhealthy: a pipeline that never pinged is
// just as stalled as one that stopped.
func healthy(last *datastore.HeartBeat, now time.Time, maxIdle time.Duration) bool {
	if last == nil {
		return false
	}
	return now.Sub(last.CreateTS) < maxIdle
}
