package main

import (
	"github.com/spf13/cobra"

	"kick-analytics/config"
	"kick-analytics/sim"
)

func newSimulateCommand(cfg func() *config.Config) *cobra.Command {
	opts := sim.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the pipeline against a simulated ball",
		RunE: func(cmd *cobra.Command, args []string) error {
			device := sim.New(opts)
			defer device.Close()

			rt, err := newPipeline(cfg(), device)
			if err != nil {
				return err
			}
			defer rt.close()

			rt.analyzer.StartSession()
			device.Connect(rt.session)
			return rt.run(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.DurationVar(&opts.KickDelay, "kick-delay", opts.KickDelay, "time between arming and the kick")
	f.DurationVar(&opts.Latency, "latency", opts.Latency, "delay before each notification")
	f.Float64Var(&opts.Peak, "peak", opts.Peak, "peak acceleration of a kick in g")
	f.Int64Var(&opts.Seed, "seed", opts.Seed, "noise seed")
	return cmd
}
