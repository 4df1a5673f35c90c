// Package occupancy tracks which registered owners are on the home
// network. A scanner lists MAC addresses on the subnet; the monitor maps
// them to owners and keeps the HomeOccupancy record current. The alert
// engine reads that record to decide whether anyone is home.
package occupancy

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/datastore"
	"github.com/third-eye-sec/thirdeye/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("occupancy")
	if logger == nil {
		logger = slog.Default().With("service", "occupancy")
	}
}

// Scanner lists the MAC addresses currently visible on the subnet.
type Scanner interface {
	Scan(ctx context.Context, subnet string) ([]string, error)
}

// Monitor runs the scan-and-upsert loop.
type Monitor struct {
	ds      datastore.Interface
	scanner Scanner

	// now is swapped out in tests
	now func() time.Time
}

// NewMonitor creates an occupancy monitor.
func NewMonitor(ds datastore.Interface, scanner Scanner) *Monitor {
	return &Monitor{
		ds:      ds,
		scanner: scanner,
		now:     time.Now,
	}
}

// Run scans on the configured interval until the context is cancelled.
// Scan and persistence failures are logged and the loop continues.
func (m *Monitor) Run(ctx context.Context) {
	for {
		settings := conf.Setting()

		if err := m.ScanOnce(ctx, settings); err != nil {
			logger.Error("occupancy scan failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(settings.Occupancy.ScanInterval) * time.Second):
		}
	}
}

// ScanOnce performs one scan and updates the occupancy record. Status
// flips append a new row; a repeated status touches the current row's
// update timestamp (and owner list while home).
func (m *Monitor) ScanOnce(ctx context.Context, settings *conf.Settings) error {
	macs, err := m.scanner.Scan(ctx, settings.Occupancy.SubnetMask)
	if err != nil {
		return err
	}

	owners := matchOwners(macs, settings.Occupancy.Owners)
	now := m.now()

	last, err := m.ds.LatestOccupancy()
	if err != nil {
		return err
	}

	if len(owners) == 0 {
		if last == nil || last.Status == datastore.OccupancyHome {
			hoc := &datastore.HomeOccupancy{CreateTS: now, UpdateTS: &now, Status: datastore.OccupancyAway}
			if err := m.ds.SaveOccupancy(hoc); err != nil {
				return err
			}
			logger.Info("occupancy status changed", "status", datastore.OccupancyAway)
			return nil
		}
		last.UpdateTS = &now
		if err := m.ds.UpdateOccupancy(last); err != nil {
			return err
		}
		logger.Debug("occupancy unchanged", "status", datastore.OccupancyAway)
		return nil
	}

	if last == nil || last.Status == datastore.OccupancyAway {
		hoc := &datastore.HomeOccupancy{
			CreateTS:    now,
			UpdateTS:    &now,
			Status:      datastore.OccupancyHome,
			FoundOwners: owners,
		}
		if err := m.ds.SaveOccupancy(hoc); err != nil {
			return err
		}
		logger.Info("occupancy status changed", "status", datastore.OccupancyHome, "owners", owners)
		return nil
	}

	last.UpdateTS = &now
	last.FoundOwners = owners
	if err := m.ds.UpdateOccupancy(last); err != nil {
		return err
	}
	logger.Debug("occupancy unchanged", "status", datastore.OccupancyHome, "owners", owners)
	return nil
}

// matchOwners maps visible MAC addresses to registered owner names,
// preserving registration order.
func matchOwners(macs []string, owners []conf.OwnerDevice) []string {
	visible := make(map[string]struct{}, len(macs))
	for _, m := range macs {
		visible[strings.ToLower(m)] = struct{}{}
	}

	var found []string
	for _, dev := range owners {
		if _, ok := visible[strings.ToLower(dev.MacAddr)]; ok {
			found = append(found, dev.Owner)
		}
	}
	return found
}
