// kick-analytics connects to a kick ball over BLE, fetches the
// accelerometer capture after every kick and estimates the kick force.
//
//   - serve     → scan for the ball and analyse its kicks
//   - simulate  → same pipeline against a simulated ball
//   - replay    → feed a recorded session through the analyser
//
// State is served to dashboards on /ws and a small REST API; kicks are
// optionally published to MQTT.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kick-analytics/config"
)

var logger = logrus.WithField("component", "main")

func main() {
	var (
		configPath string
		logLevel   string
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:   "kick-analytics",
		Short: "Kick force analytics for a BLE kick ball",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			logrus.SetLevel(cfg.LogLevel())
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			return nil
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "kick.yaml", "configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	current := func() *config.Config { return cfg }
	root.AddCommand(
		newServeCommand(current),
		newSimulateCommand(current),
		newReplayCommand(current),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := root.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
