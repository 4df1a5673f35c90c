package occupancy

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
)

// RunMonitor scans the local network for registered owner devices until
// the process is interrupted.
func RunMonitor(settings *conf.Settings) error {
	if settings.Occupancy.SubnetMask == "" {
		return fmt.Errorf("no subnet mask configured for occupancy scanning")
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

	monitor := NewMonitor(ds, NewNmapScanner())
	logger.Info("occupancy monitor started",
		"subnet", settings.Occupancy.SubnetMask,
		"owners", len(settings.Occupancy.Owners))
	monitor.Run(ctx)

	logger.Info("occupancy monitor stopped")
	return nil
}
