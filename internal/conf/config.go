// config.go: settings structure for the Third Eye application and the
// functions to load, snapshot and save them.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// HourRange is an inclusive local-hour range. A range whose End is smaller
// than its Start wraps past midnight: {24, 4} wraps and matches hours 0-4,
// while {4, 24} does not wrap and never matches hour 0.
type HourRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Contains reports whether the given hour falls inside the range. The
// bounds are compared as configured; 24 is a valid bound that only hour 24
// itself can reach on the Start side.
func (r HourRange) Contains(hour int) bool {
	if r.End < r.Start {
		return hour >= r.Start || hour <= r.End
	}
	return hour >= r.Start && hour <= r.End
}

// OwnerDevice maps a MAC address seen on the local network to a home owner.
type OwnerDevice struct {
	MacAddr string `yaml:"macaddr"`
	Owner   string `yaml:"owner"`
	Device  string `yaml:"device"`
}

// CaptureSettings contains settings for the camera capture source.
type CaptureSettings struct {
	Source       string // capture device or stream URL passed to ffmpeg
	FfmpegPath   string // path to ffmpeg binary
	Width        int    // capture width in pixels
	Height       int    // capture height in pixels
	FlipVertical bool   // true if the camera is mounted upside down
}

// MotionSettings contains settings for the background subtraction motion detector.
type MotionSettings struct {
	History       int     // number of frames used to learn the background model
	VarThreshold  float64 // squared-deviation multiplier for foreground decision
	DetectShadows bool    // true to suppress shadow pixels
	MinArea       int     // minimum region area in pixels to qualify as motion
	MinFrames     int     // consecutive motion frames required to confirm motion
}

// DetectionSettings contains settings for object detection and tracking.
type DetectionSettings struct {
	Endpoint     string   // URL of the object detection inference service
	Confidence   float64  // minimum prediction confidence to keep a detection
	TrackClasses []string // object classes to detect and track
	MaxMatchDist float64  // max centroid distance to link boxes as the same object
	LabelsPath   string   // path to the class labels file
}

// SecuritySettings contains settings for the alert decision engine.
type SecuritySettings struct {
	SecureZone            [][2]int    // closed polygon in down-scaled frame coordinates
	IntruderClasses       []string    // classes that may trigger an alert
	SecBetweenAlertChecks int         // seconds the alert-check gate stays closed
	SecBetweenAlerts      int         // throttle window between triggered alerts
	OverrideHours         []HourRange // hours during which occupancy is ignored
	OwnerAwayMinutes      int         // occupancy recency window in minutes
}

// HeartbeatSettings contains settings for the liveness pipeline.
type HeartbeatSettings struct {
	Enabled          bool   // true to publish and monitor liveness pings
	Broker           string // MQTT broker (tcp://host:port)
	Topic            string // topic prefix for liveness pings
	Username         string // MQTT username
	Password         string // MQTT password
	IntervalFrames   int    // publish a ping every N processed frames
	MaxIdleSec       int    // pipeline considered stalled after this many seconds
	CheckIntervalSec int    // seconds between liveness checks
	RetentionDays    int    // trailing window of days to keep heartbeat images
	Service          string // service name passed to the process supervisor
}

// OccupancySettings contains settings for the home occupancy scanner.
type OccupancySettings struct {
	SubnetMask   string        // subnet to scan, e.g. 192.168.1.0/24
	Owners       []OwnerDevice // registered owner devices
	ScanInterval int           // seconds between scans
}

// NotifySettings contains settings for outbound notifications.
type NotifySettings struct {
	Enabled bool     // true to send notifications
	URLs    []string // shoutrrr service URLs (smtp, twilio, etc.)
}

// WebServerSettings contains settings for the streaming web server.
type WebServerSettings struct {
	Enabled  bool   // true to enable the web server
	Port     string // port for the web server
	CacheTTL int    // seconds to cache dashboard queries
	LogFile  string // rotating access/error log path, empty to share the main log
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus compatible telemetry endpoint
	Listen  string // IP address and port to listen on
}

// Settings contains all configuration options for Third Eye.
type Settings struct {
	Debug bool // true to enable debug mode with annotated frames

	Main struct {
		Name         string // name of this node, used as the liveness source id
		ImagesPath   string // base directory for saved intruder/heartbeat images
		AvgProcTimeN int    // instrumentation interval in processed frames
		LogFile      string // rotating log file path, empty logs to stdout only
	}

	Capture   CaptureSettings
	Motion    MotionSettings
	Detection DetectionSettings
	Security  SecuritySettings
	Heartbeat HeartbeatSettings
	Occupancy OccupancySettings
	Notify    NotifySettings
	WebServer WebServerSettings
	Telemetry TelemetrySettings

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}
		MySQL struct {
			Enabled  bool   // true to enable mysql output
			Username string // username for mysql database
			Password string // password for mysql database
			Database string // database name for mysql database
			Host     string // host for mysql database
			Port     string // port for mysql database
		}
	}
}

// settingsInstance holds the current immutable settings snapshot. It is
// replaced wholesale on reload, never mutated in place, so readers on the
// hot path take no lock.
var settingsInstance atomic.Pointer[Settings]

// Setting returns the current settings snapshot.
func Setting() *Settings {
	return settingsInstance.Load()
}

// UpdateSettings atomically replaces the current settings snapshot.
func UpdateSettings(settings *Settings) {
	settingsInstance.Store(settings)
}

// Load reads the configuration file and environment variables into a new
// Settings instance and installs it as the current snapshot.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	UpdateSettings(settings)
	return settings, nil
}

// initViper initializes viper with config file discovery and defaults.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("THIRDEYE")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// No config file found, defaults apply. Write one so the operator
		// has something to edit.
		if err := createDefaultConfig(configPaths[0]); err != nil {
			return fmt.Errorf("error creating default config file: %w", err)
		}
	}

	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for the
// config file, most specific first.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}
	return []string{
		filepath.Join(homeDir, ".config", "thirdeye"),
		".",
	}, nil
}

// createDefaultConfig writes the current defaults as a YAML config file.
func createDefaultConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("error unmarshaling defaults: %w", err)
	}

	return SaveSettings(settings, filepath.Join(configDir, "config.yaml"))
}

// SaveSettings writes the given settings to the given path as YAML.
func SaveSettings(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing settings to %s: %w", path, err)
	}
	return nil
}
