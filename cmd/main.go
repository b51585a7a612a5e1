// @title           Rinnai Touch Gateway API
// @version         1.0
// @description     Status, configuration and commands for a Rinnai Touch appliance.
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rinnai_gateway/internal/config"
	"rinnai_gateway/internal/logger"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "rinnai-gateway",
	Short: "Rinnai Touch to MQTT/HTTP gateway",
	Long: `rinnai-gateway keeps a session with a Rinnai Touch WiFi module,
publishes its state over MQTT and HTTP and forwards commands back to it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: configs/config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, then applies flag
// overrides.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(viper.New(), configFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, logger.Get(cfg.Log.Level), nil
}
