package main

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"kick-analytics/analytics"
	"kick-analytics/app"
	"kick-analytics/config"
	"kick-analytics/publish"
	"kick-analytics/recorder"
)

func newReplayCommand(cfg func() *config.Config) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Analyse the kicks of a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			corr, err := c.Correlator()
			if err != nil {
				return err
			}
			r, err := recorder.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			analyzer := analytics.NewAnalyzer(corr)
			analyzer.StartSession()
			kicks, err := app.Replay(r, analyzer, timeout)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, k := range kicks {
				if err := enc.Encode(publish.NewMessage(k)); err != nil {
					return err
				}
			}
			b := analyzer.GetState().Ball
			logger.WithFields(logrus.Fields{
				"kicks":     b.KickCount,
				"max_force": b.MaxForce,
				"avg_force": b.AvgForce,
				"desyncs":   b.Desyncs,
			}).Info("Replay finished")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "wait for each replayed request")
	return cmd
}
