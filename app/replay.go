package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"kick-analytics/analytics"
	"kick-analytics/ball"
	"kick-analytics/recorder"
)

// ErrReplayIncomplete is returned when replayed transmissions did not all
// finish within the timeout.
var ErrReplayIncomplete = errors.New("replay did not settle")

// Replay feeds a recording through a fresh session and analyses every
// capture in it. Kicks come back in capture order; captures the analyzer
// rejects are skipped.
func Replay(r *recorder.Reader, analyzer *analytics.Analyzer, timeout time.Duration) ([]analytics.KickEvent, error) {
	player := recorder.NewPlayer(timeout)
	session := ball.NewSession(player)

	var (
		mu    sync.Mutex
		done  int
		kicks []analytics.KickEvent
	)
	off := session.OnData(func(ev ball.DataEvent) {
		switch ev.Kind {
		case ball.TransmissionEnded:
			analyzer.AddDesyncs(ev.Desyncs)
			kick, err := analyzer.ProcessCapture(ev.Capture)
			mu.Lock()
			done++
			if err == nil {
				kicks = append(kicks, *kick)
			}
			mu.Unlock()
		case ball.TransmissionCancelled:
			mu.Lock()
			done++
			mu.Unlock()
		}
	})
	defer off()

	player.Connect(session)
	analyzer.SetConnected(true)
	played, err := player.Play(session, r)
	if err != nil {
		return nil, err
	}
	logger.WithField("records", played).Info("Recording played")

	// An unfinished last transmission is cancelled by the reset.
	if session.Transmission().InProgress {
		session.Reset()
	}

	deadline := time.Now().Add(timeout)
	for {
		mu.Lock()
		finished := done
		mu.Unlock()
		requests := player.Requests()
		if finished >= requests {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %d of %d transmissions finished", ErrReplayIncomplete, finished, requests)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	return kicks, nil
}
