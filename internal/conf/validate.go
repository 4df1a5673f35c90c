// conf/validate.go settings validation
package conf

import (
	"fmt"
	"slices"
)

// ValidateSettings checks the loaded settings for configuration errors that
// would make the pipeline unsafe to start. Validation failures are fatal at
// startup, they are never silently corrected.
func ValidateSettings(settings *Settings) error {
	if settings.Capture.Width <= 0 || settings.Capture.Height <= 0 {
		return fmt.Errorf("capture resolution must be positive, got %dx%d",
			settings.Capture.Width, settings.Capture.Height)
	}

	if settings.Motion.History <= 0 {
		return fmt.Errorf("motion history must be positive, got %d", settings.Motion.History)
	}
	if settings.Motion.MinFrames <= 0 {
		return fmt.Errorf("motion minframes must be positive, got %d", settings.Motion.MinFrames)
	}

	if len(settings.Detection.TrackClasses) == 0 {
		return fmt.Errorf("detection.trackclasses must not be empty")
	}
	if settings.Detection.Confidence <= 0 || settings.Detection.Confidence > 1 {
		return fmt.Errorf("detection confidence must be in (0, 1], got %f", settings.Detection.Confidence)
	}
	if settings.Detection.MaxMatchDist <= 0 {
		return fmt.Errorf("detection maxmatchdist must be positive, got %f", settings.Detection.MaxMatchDist)
	}

	// Every intruder class must also be tracked, otherwise it can never be
	// detected in the first place.
	for _, label := range settings.Security.IntruderClasses {
		if !slices.Contains(settings.Detection.TrackClasses, label) {
			return fmt.Errorf("intruder class %q is not in detection.trackclasses", label)
		}
	}

	if len(settings.Security.SecureZone) < 3 {
		return fmt.Errorf("security.securezone needs at least 3 points to form a polygon")
	}

	for _, r := range settings.Security.OverrideHours {
		if r.Start < 0 || r.Start > 24 || r.End < 0 || r.End > 24 {
			return fmt.Errorf("override hour range (%d, %d) outside 0..24", r.Start, r.End)
		}
	}

	if settings.Heartbeat.Enabled {
		if settings.Heartbeat.MaxIdleSec <= 0 {
			return fmt.Errorf("heartbeat maxidlesec must be positive, got %d", settings.Heartbeat.MaxIdleSec)
		}
		if settings.Heartbeat.RetentionDays <= 0 {
			return fmt.Errorf("heartbeat retentiondays must be positive, got %d", settings.Heartbeat.RetentionDays)
		}
	}

	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("no database output enabled, set output.sqlite.enabled or output.mysql.enabled")
	}

	return nil
}
