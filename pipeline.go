package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"kick-analytics/analytics"
	"kick-analytics/app"
	"kick-analytics/ball"
	"kick-analytics/config"
	"kick-analytics/publish"
	"kick-analytics/recorder"
	"kick-analytics/web"
)

// pipeline holds the parts shared by serve and simulate.
type pipeline struct {
	cfg       *config.Config
	session   *ball.Session
	analyzer  *analytics.Analyzer
	ctl       *app.Controller
	server    *web.Server
	publisher *publish.Publisher
	recorder  *recorder.Recorder
	detach    func()
}

func newPipeline(cfg *config.Config, transport ball.Transport) (*pipeline, error) {
	corr, err := cfg.Correlator()
	if err != nil {
		return nil, err
	}
	rt := &pipeline{
		cfg:      cfg,
		session:  ball.NewSession(transport),
		analyzer: analytics.NewAnalyzer(corr),
	}
	rt.ctl = app.New(rt.session, rt.analyzer, app.Options{
		Samples:  cfg.Capture.Samples,
		DataType: cfg.Capture.DataType,
		AutoArm:  true,
	})
	rt.server = web.NewServer(web.NewHub(), rt.analyzer, rt.ctl)
	rt.analyzer.SetStateHandler(rt.server.Broadcast)

	if cfg.MQTT.Broker != "" {
		rt.publisher, err = publish.Connect(publish.Options{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		})
		if err != nil {
			return nil, err
		}
		rt.analyzer.SetKickHandler(rt.publisher.HandleKick)
	}

	if cfg.Capture.Record != "" {
		rt.recorder, err = recorder.NewFileRecorder(cfg.Capture.Record)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.detach = rt.recorder.Attach(rt.session)
		logger.WithField("file", cfg.Capture.Record).Info("Recording notifications")
	}

	rt.ctl.Start()
	return rt, nil
}

// run serves HTTP and ticks the session clock until ctx is done.
func (rt *pipeline) run(ctx context.Context) error {
	srv := &http.Server{Addr: rt.cfg.HTTP.Addr, Handler: rt.server}
	errc := make(chan error, 1)
	go func() {
		logger.WithField("addr", rt.cfg.HTTP.Addr).Info("HTTP/WS server listening")
		errc <- srv.ListenAndServe()
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rt.analyzer.BroadcastTick()
		case err := <-errc:
			return err
		case <-ctx.Done():
			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	}
}

func (rt *pipeline) close() {
	rt.ctl.Stop()
	if rt.detach != nil {
		rt.detach()
	}
	if rt.recorder != nil {
		if err := rt.recorder.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close recording")
		}
		logger.WithField("records", rt.recorder.Count()).Info("Recording closed")
	}
	if rt.publisher != nil {
		rt.publisher.Close()
	}
}
