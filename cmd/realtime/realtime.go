package realtime

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/third-eye-sec/thirdeye/internal/analysis"
	"github.com/third-eye-sec/thirdeye/internal/conf"
)

// Command creates a new command for the realtime analytics pipeline.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Analyze camera frames in realtime mode",
		Long:  "Start the frame analytics pipeline: motion detection, object detection and tracking, intruder alerting and the video stream server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Capture.Source, "source", viper.GetString("capture.source"), "Capture device or stream URL passed to ffmpeg")
	cmd.Flags().StringVar(&settings.Capture.FfmpegPath, "ffmpeg", viper.GetString("capture.ffmpegpath"), "Path to the ffmpeg binary")
	cmd.Flags().StringVar(&settings.Detection.Endpoint, "endpoint", viper.GetString("detection.endpoint"), "URL of the object detection inference service")
	cmd.Flags().Float64Var(&settings.Detection.Confidence, "confidence", viper.GetFloat64("detection.confidence"), "Minimum prediction confidence to keep a detection")
	cmd.Flags().BoolVar(&settings.WebServer.Enabled, "webserver", viper.GetBool("webserver.enabled"), "Enable the video stream web server")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the web server")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
