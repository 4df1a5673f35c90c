package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHourRangeContains(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		r     HourRange
		hour  int
		want  bool
	}{
		{"daytime range start", HourRange{9, 17}, 9, true},
		{"daytime range middle", HourRange{9, 17}, 12, true},
		{"daytime range end inclusive", HourRange{9, 17}, 17, true},
		{"daytime range before", HourRange{9, 17}, 8, false},
		{"daytime range after", HourRange{9, 17}, 18, false},
		{"midnight start wraps", HourRange{24, 4}, 0, true},
		{"midnight start inside", HourRange{24, 4}, 2, true},
		{"midnight start end", HourRange{24, 4}, 4, true},
		{"midnight start outside", HourRange{24, 4}, 5, false},
		{"midnight start evening", HourRange{24, 4}, 23, false},
		{"midnight start own bound", HourRange{24, 4}, 24, true},
		{"wrapping range late evening", HourRange{22, 5}, 23, true},
		{"wrapping range early morning", HourRange{22, 5}, 3, true},
		{"wrapping range midday", HourRange{22, 5}, 12, false},
		{"end at 24 includes start", HourRange{4, 24}, 4, true},
		{"end at 24 includes evening", HourRange{4, 24}, 23, true},
		{"end at 24 excludes midnight", HourRange{4, 24}, 0, false},
		{"end at 24 includes 24 itself", HourRange{4, 24}, 24, true},
		{"single hour", HourRange{10, 10}, 10, true},
		{"single hour outside", HourRange{10, 10}, 11, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.r.Contains(tt.hour))
		})
	}
}

func validSettings() *Settings {
	s := &Settings{}
	s.Capture.Width = 1280
	s.Capture.Height = 720
	s.Motion.History = 100
	s.Motion.MinFrames = 6
	s.Detection.Confidence = 0.5
	s.Detection.TrackClasses = []string{"person", "cat"}
	s.Detection.MaxMatchDist = 30
	s.Security.IntruderClasses = []string{"person"}
	s.Security.SecureZone = [][2]int{{0, 0}, {399, 0}, {399, 224}, {0, 224}}
	s.Security.OverrideHours = []HourRange{{24, 4}}
	s.Output.SQLite.Enabled = true
	return s
}

func TestValidateSettingsAcceptsDefaults(t *testing.T) {
	t.Parallel()
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettingsRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"zero capture width", func(s *Settings) { s.Capture.Width = 0 }, "capture resolution"},
		{"zero motion history", func(s *Settings) { s.Motion.History = 0 }, "motion history"},
		{"no tracked classes", func(s *Settings) { s.Detection.TrackClasses = nil }, "trackclasses"},
		{"confidence above one", func(s *Settings) { s.Detection.Confidence = 1.5 }, "confidence"},
		{"untracked intruder class", func(s *Settings) { s.Security.IntruderClasses = []string{"bear"} }, "intruder class"},
		{"degenerate secure zone", func(s *Settings) { s.Security.SecureZone = [][2]int{{0, 0}, {1, 1}} }, "securezone"},
		{"override hour out of range", func(s *Settings) { s.Security.OverrideHours = []HourRange{{25, 4}} }, "override hour"},
		{"no database output", func(s *Settings) {
			s.Output.SQLite.Enabled = false
			s.Output.MySQL.Enabled = false
		}, "no database output"},
		{"heartbeat without max idle", func(s *Settings) {
			s.Heartbeat.Enabled = true
			s.Heartbeat.MaxIdleSec = 0
		}, "maxidlesec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSettingSnapshotSwap(t *testing.T) {
	old := Setting()
	defer UpdateSettings(old)

	first := validSettings()
	UpdateSettings(first)
	assert.Same(t, first, Setting())

	second := validSettings()
	second.Debug = true
	UpdateSettings(second)
	assert.Same(t, second, Setting())
	assert.True(t, Setting().Debug)
}
