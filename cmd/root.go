package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/third-eye-sec/thirdeye/cmd/heartbeat"
	"github.com/third-eye-sec/thirdeye/cmd/occupancy"
	"github.com/third-eye-sec/thirdeye/cmd/realtime"
	"github.com/third-eye-sec/thirdeye/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "thirdeye",
		Short: "Third Eye CLI",
		Long:  "Third Eye is an embedded video security system: motion and object detection, intruder alerting, liveness monitoring and home occupancy scanning.",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		realtime.Command(settings),
		heartbeat.Command(settings),
		occupancy.Command(settings),
	)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug mode with annotated frames")
	rootCmd.PersistentFlags().StringVar(&settings.Main.ImagesPath, "imagespath", viper.GetString("main.imagespath"), "Base directory for saved intruder and heartbeat images")
	rootCmd.PersistentFlags().StringVar(&settings.Main.LogFile, "logfile", viper.GetString("main.logfile"), "Rotating log file path, empty logs to stdout only")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
