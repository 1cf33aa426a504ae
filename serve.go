package main

import (
	"github.com/spf13/cobra"

	"kick-analytics/ble"
	"kick-analytics/config"
)

func newServeCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Scan for the ball and analyse its kicks",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			central := ble.NewCentral(c.Device.Name)
			if err := central.Enable(); err != nil {
				return err
			}

			rt, err := newPipeline(c, central)
			if err != nil {
				return err
			}
			defer rt.close()
			central.Bind(rt.session)
			central.SetConnectionHandler(rt.ctl.Linked)

			scanner := ble.NewScanner(central, ble.ScanConfig{
				ScanInterval:  c.Device.ScanInterval,
				AutoReconnect: c.Device.AutoReconnect,
			})
			scanner.Start()
			defer func() {
				scanner.Stop()
				if central.IsConnected() {
					if err := central.Disconnect(); err != nil {
						logger.WithError(err).Warn("Disconnect failed")
					}
				}
			}()

			return rt.run(cmd.Context())
		},
	}
}
