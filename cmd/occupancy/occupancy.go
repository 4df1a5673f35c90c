package occupancy

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/third-eye-sec/thirdeye/internal/conf"
	"github.com/third-eye-sec/thirdeye/internal/occupancy"
)

// Command creates a new command for the home occupancy scanner process.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "occupancy",
		Short: "Scan the local network for owner devices",
		Long:  "Periodically scan the configured subnet for registered owner devices and maintain the home occupancy record used to gate alerts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return occupancy.RunMonitor(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the occupancy command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Occupancy.SubnetMask, "subnet", viper.GetString("occupancy.subnetmask"), "Subnet to scan, e.g. 192.168.1.0/24")
	cmd.Flags().IntVar(&settings.Occupancy.ScanInterval, "interval", viper.GetInt("occupancy.scaninterval"), "Seconds between scans")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
