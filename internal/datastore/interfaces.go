// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/third-eye-sec/thirdeye/internal/conf"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Interface abstracts the underlying database implementation and defines
// the persistence operations the pipeline needs.
type Interface interface {
	Open() error
	Close() error
	// detections
	MaxObjectID(day time.Time, label string) (int, error)
	SaveDetections(motion []MotionDetection, objects []ObjectDetection) error
	RecentObjectDetections(limit int) ([]ObjectDetection, error)
	// alerts
	LatestAlert() (*Alert, error)
	SaveAlert(alert *Alert) error
	UpdateAlert(alert *Alert) error
	RecentAlerts(limit int) ([]Alert, error)
	// liveness
	LatestHeartBeat() (*HeartBeat, error)
	SaveHeartBeat(hb *HeartBeat) error
	// occupancy
	OccupantsHomeWithin(minutes int) ([]string, error)
	LatestOccupancy() (*HomeOccupancy, error)
	SaveOccupancy(hoc *HomeOccupancy) error
	UpdateOccupancy(hoc *HomeOccupancy) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the configured output.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// MaxObjectID returns the highest object id persisted for the given label
// on the given calendar day, or -1 when no detection exists yet. The
// tracker seeds its id sequence from this value so restarts never reuse
// an id already written to storage.
func (ds *DataStore) MaxObjectID(day time.Time, label string) (int, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	var result struct {
		MaxID *int
	}
	err := ds.DB.Model(&ObjectDetection{}).
		Select("MAX(obj_id) as max_id").
		Where("label = ? AND create_ts >= ?", label, dayStart).
		Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("getting max object id for %s: %w", label, err)
	}
	if result.MaxID == nil {
		return -1, nil
	}
	return *result.MaxID, nil
}

// SaveDetections stores one frame's detections as a single transaction.
func (ds *DataStore) SaveDetections(motion []MotionDetection, objects []ObjectDetection) error {
	if len(motion) == 0 && len(objects) == 0 {
		return nil
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if len(motion) > 0 {
			if err := tx.Create(&motion).Error; err != nil {
				return fmt.Errorf("saving motion detections: %w", err)
			}
		}
		if len(objects) > 0 {
			if err := tx.Create(&objects).Error; err != nil {
				return fmt.Errorf("saving object detections: %w", err)
			}
		}
		return nil
	})
}

// RecentObjectDetections retrieves the most recent object detections.
func (ds *DataStore) RecentObjectDetections(limit int) ([]ObjectDetection, error) {
	var detections []ObjectDetection
	err := ds.DB.Order("create_ts DESC").Limit(limit).Find(&detections).Error
	if err != nil {
		return nil, fmt.Errorf("getting recent object detections: %w", err)
	}
	return detections, nil
}

// LatestAlert retrieves the most recently created alert, or nil when no
// alert has ever been raised.
func (ds *DataStore) LatestAlert() (*Alert, error) {
	var alert Alert
	err := ds.DB.Order("create_ts DESC").First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest alert: %w", err)
	}
	return &alert, nil
}

// SaveAlert persists a new alert row.
func (ds *DataStore) SaveAlert(alert *Alert) error {
	if err := ds.DB.Create(alert).Error; err != nil {
		return fmt.Errorf("saving alert: %w", err)
	}
	return nil
}

// UpdateAlert persists changes to an existing alert row.
func (ds *DataStore) UpdateAlert(alert *Alert) error {
	if err := ds.DB.Save(alert).Error; err != nil {
		return fmt.Errorf("updating alert %d: %w", alert.ID, err)
	}
	return nil
}

// RecentAlerts retrieves the most recently created alerts.
func (ds *DataStore) RecentAlerts(limit int) ([]Alert, error) {
	var alerts []Alert
	err := ds.DB.Order("create_ts DESC").Limit(limit).Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("getting recent alerts: %w", err)
	}
	return alerts, nil
}

// LatestHeartBeat retrieves the most recent heartbeat, or nil when none
// has been recorded yet.
func (ds *DataStore) LatestHeartBeat() (*HeartBeat, error) {
	var hb HeartBeat
	err := ds.DB.Order("create_ts DESC").First(&hb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest heartbeat: %w", err)
	}
	return &hb, nil
}

// SaveHeartBeat persists a liveness ping.
func (ds *DataStore) SaveHeartBeat(hb *HeartBeat) error {
	if err := ds.DB.Create(hb).Error; err != nil {
		return fmt.Errorf("saving heartbeat: %w", err)
	}
	return nil
}

// OccupantsHomeWithin returns the owners recorded as home within the last
// N minutes, or an empty list when the house looks unoccupied.
func (ds *DataStore) OccupantsHomeWithin(minutes int) ([]string, error) {
	minOccupancyTime := time.Now().Add(-time.Duration(minutes) * time.Minute)

	var hoc HomeOccupancy
	err := ds.DB.Where("status = ? AND update_ts >= ?", OccupancyHome, minOccupancyTime).
		Order("update_ts DESC").
		First(&hoc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting occupants home within %d minutes: %w", minutes, err)
	}
	return hoc.FoundOwners, nil
}

// LatestOccupancy retrieves the current occupancy row, or nil when the
// scanner has never reported.
func (ds *DataStore) LatestOccupancy() (*HomeOccupancy, error) {
	var hoc HomeOccupancy
	err := ds.DB.Order("id DESC").First(&hoc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest occupancy: %w", err)
	}
	return &hoc, nil
}

// SaveOccupancy appends a new occupancy row (status flip).
func (ds *DataStore) SaveOccupancy(hoc *HomeOccupancy) error {
	if err := ds.DB.Create(hoc).Error; err != nil {
		return fmt.Errorf("saving occupancy: %w", err)
	}
	return nil
}

// UpdateOccupancy persists changes to the current occupancy row.
func (ds *DataStore) UpdateOccupancy(hoc *HomeOccupancy) error {
	if err := ds.DB.Save(hoc).Error; err != nil {
		return fmt.Errorf("updating occupancy %d: %w", hoc.ID, err)
	}
	return nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&MotionDetection{}, &ObjectDetection{}, &Alert{}, &HeartBeat{}, &HomeOccupancy{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
