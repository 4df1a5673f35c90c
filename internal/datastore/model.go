// model.go this code defines the data model for the application
package datastore

import "time"

// Alert lifecycle states. An alert is created pending and moves to
// triggered exactly once; there is no failure state, a failed notification
// is recorded in the metadata of a triggered alert.
const (
	AlertStatusPending   = "pending"
	AlertStatusTriggered = "triggered"
)

// Home occupancy states.
const (
	OccupancyHome = "home"
	OccupancyAway = "away"
)

// Detection holds the fields shared by motion and object detections.
// Detections are append-only facts; once saved they are never mutated.
type Detection struct {
	ID       uint      `gorm:"primaryKey"`
	CreateTS time.Time `gorm:"index;not null"`
	X        int       `gorm:"not null"`
	Y        int       `gorm:"not null"`
	W        int       `gorm:"not null"`
	H        int       `gorm:"not null"`
	Area     int       `gorm:"not null"` // region or bounding box area
}

// MotionDetection is a confirmed motion region for one frame.
type MotionDetection struct {
	Detection
}

// ObjectDetection is a tracked object found on a frame. CX and CY are
// computed once at construction as the midpoint of the (x, y) and
// (x+w, y+h) corner sums with integer truncation and are never
// recomputed.
type ObjectDetection struct {
	Detection
	Label string  `gorm:"size:125;not null;index:idx_object_detections_label_ts,priority:1"`
	ObjID int     `gorm:"not null"`
	Score float64 `gorm:"not null"`
	CX    int     `gorm:"not null"`
	CY    int     `gorm:"not null"`
}

// NewObjectDetection builds an ObjectDetection with its centroid derived
// from the bounding box.
func NewObjectDetection(ts time.Time, x, y, w, h int, label string, objID int, score float64) ObjectDetection {
	return ObjectDetection{
		Detection: Detection{CreateTS: ts, X: x, Y: y, W: w, H: h, Area: w * h},
		Label:     label,
		ObjID:     objID,
		Score:     score,
		CX:        (x + w) / 2,
		CY:        (y + h) / 2,
	}
}

// AlertMetadata is the free-form payload attached to a finalized alert.
type AlertMetadata struct {
	Intruders      []string `json:"intruders"`
	NotifyResult   string   `json:"notify_result"`
	ImagePath      string   `json:"img_path"`
	PrevAlert      string   `json:"prev_alert"`
	CheckedClasses []string `json:"checked_intruder_objects"`
	CorrelationID  string   `json:"correlation_id"`
}

// Alert is a notification decision record. At most one alert is in the
// pending state system-wide at any instant; that row is the
// de-duplication guard for concurrent decision cycles.
type Alert struct {
	ID       uint          `gorm:"primaryKey"`
	Title    string        `gorm:"size:255;not null"`
	Status   string        `gorm:"size:25;not null"`
	CreateTS time.Time     `gorm:"index;not null"`
	UpdateTS *time.Time    `gorm:"index"`
	Metadata AlertMetadata `gorm:"serializer:json"`
}

// HeartBeat is a liveness ping recorded by the heartbeat sink.
// Append-only, queried newest first.
type HeartBeat struct {
	ID         uint      `gorm:"primaryKey"`
	CreateTS   time.Time `gorm:"index;not null"`
	ImFilename string    `gorm:"size:255;not null"`
}

// HomeOccupancy is the current occupancy state. History is retained as
// prior rows: a status flip appends a new row, a repeat observation only
// touches UpdateTS on the latest row.
type HomeOccupancy struct {
	ID          uint       `gorm:"primaryKey"`
	CreateTS    time.Time  `gorm:"index;not null"`
	UpdateTS    *time.Time `gorm:"index"`
	Status      string     `gorm:"size:10;not null"`
	FoundOwners []string   `gorm:"serializer:json"`
}
