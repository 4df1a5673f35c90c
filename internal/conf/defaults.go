// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "third-eye")
	viper.SetDefault("main.imagespath", "images/")
	viper.SetDefault("main.avgproctimen", 200)
	viper.SetDefault("main.logfile", "")

	viper.SetDefault("capture.source", "/dev/video0")
	viper.SetDefault("capture.ffmpegpath", "ffmpeg")
	viper.SetDefault("capture.width", 1280)
	viper.SetDefault("capture.height", 720)
	viper.SetDefault("capture.flipvertical", false)

	viper.SetDefault("motion.history", 100)
	viper.SetDefault("motion.varthreshold", 40.0)
	viper.SetDefault("motion.detectshadows", false)
	viper.SetDefault("motion.minarea", 80)
	viper.SetDefault("motion.minframes", 6)

	viper.SetDefault("detection.endpoint", "http://127.0.0.1:8500/detect")
	viper.SetDefault("detection.confidence", 0.5)
	viper.SetDefault("detection.trackclasses", []string{"person", "car", "truck", "bird", "cat", "dog"})
	viper.SetDefault("detection.maxmatchdist", 30.0)
	viper.SetDefault("detection.labelspath", "models/coco_labels.txt")

	// Default secure zone covers the whole down-scaled 400x225 frame.
	viper.SetDefault("security.securezone", [][2]int{{0, 0}, {399, 0}, {399, 224}, {0, 224}})
	viper.SetDefault("security.intruderclasses", []string{"person", "cat", "dog"})
	viper.SetDefault("security.secbetweenalertchecks", 3)
	viper.SetDefault("security.secbetweenalerts", 60)
	viper.SetDefault("security.overridehours", []map[string]int{{"start": 24, "end": 4}})
	viper.SetDefault("security.ownerawayminutes", 20)

	viper.SetDefault("heartbeat.enabled", true)
	viper.SetDefault("heartbeat.broker", "tcp://127.0.0.1:1883")
	viper.SetDefault("heartbeat.topic", "thirdeye/heartbeat")
	viper.SetDefault("heartbeat.intervalframes", 200)
	viper.SetDefault("heartbeat.maxidlesec", 60)
	viper.SetDefault("heartbeat.checkintervalsec", 30)
	viper.SetDefault("heartbeat.retentiondays", 14)
	viper.SetDefault("heartbeat.service", "third-eye-backend")

	viper.SetDefault("occupancy.subnetmask", "192.168.1.0/24")
	viper.SetDefault("occupancy.owners", []OwnerDevice{})
	viper.SetDefault("occupancy.scaninterval", 20)

	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.urls", []string{})

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8000")
	viper.SetDefault("webserver.cachettl", 10)
	viper.SetDefault("webserver.logfile", "")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "thirdeye.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "thirdeye")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "thirdeye")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
