package heartbeat

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/heartbeat"
)

// Command creates a new command for the heartbeat monitor process.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heartbeat",
		Short: "Monitor pipeline liveness",
		Long:  "Receive liveness pings from the capture pipeline, restart it through the process supervisor when it stalls, and prune old heartbeat images.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return heartbeat.RunMonitor(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the heartbeat command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Heartbeat.Broker, "broker", viper.GetString("heartbeat.broker"), "MQTT broker URL (tcp://host:port)")
	cmd.Flags().StringVar(&settings.Heartbeat.Topic, "topic", viper.GetString("heartbeat.topic"), "Topic prefix for liveness pings")
	cmd.Flags().IntVar(&settings.Heartbeat.MaxIdleSec, "maxidle", viper.GetInt("heartbeat.maxidlesec"), "Seconds without a ping before the pipeline counts as stalled")
	cmd.Flags().IntVar(&settings.Heartbeat.CheckIntervalSec, "checkinterval", viper.GetInt("heartbeat.checkintervalsec"), "Seconds between liveness checks")
	cmd.Flags().IntVar(&settings.Heartbeat.RetentionDays, "retention", viper.GetInt("heartbeat.retentiondays"), "Trailing window of days to keep heartbeat images")
	cmd.Flags().StringVar(&settings.Heartbeat.Service, "service", viper.GetString("heartbeat.service"), "Service name passed to the process supervisor on restart")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
