package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rinnai_gateway/internal/appliance"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Listen for a Rinnai Touch announcement and print its address",
	RunE:  runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVarP(&discoverTimeout, "timeout", "t", 0, "how long to listen (default: appliance.discovery_timeout)")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	timeout := cfg.Appliance.DiscoveryTimeout
	if discoverTimeout > 0 {
		timeout = discoverTimeout
	}

	ep, err := appliance.NewUDPDiscoverer(timeout, log).Discover(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ep.Address())
	return nil
}
