package withdraw

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultTickInterval = 10 * time.Second
	DefaultTickTimeout  = 45 * time.Second
)

// RunnerConfig configures the tick scheduler.
type RunnerConfig struct {
	TickInterval time.Duration
	// TickTimeout bounds a single tick, including its ledger calls.
	TickTimeout time.Duration
	// ExitWhenEmpty stops Run after the first idle tick.
	ExitWhenEmpty bool
}

// Runner drives the engine on a fixed interval. At most one tick runs at a
// time; a tick that comes due while another is in flight is skipped.
type Runner struct {
	engine   Service
	cfg      RunnerConfig
	recorder Recorder
	permit   *semaphore.Weighted
	wg       sync.WaitGroup
}

func NewRunner(engine Service, cfg RunnerConfig, recorder Recorder) *Runner {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = DefaultTickTimeout
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Runner{
		engine:   engine,
		cfg:      cfg,
		recorder: recorder,
		permit:   semaphore.NewWeighted(1),
	}
}

// Run ticks immediately and then on every interval until ctx is cancelled or,
// with ExitWhenEmpty, the queue drains. It always waits for the tick in
// flight, which is never cancelled midway.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	drained := make(chan struct{})
	var once sync.Once

	trigger := func() {
		if !r.permit.TryAcquire(1) {
			r.recorder.TickSkipped()
			log.Debug().Msg("Previous tick still running, skipping")
			return
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer r.permit.Release(1)

			result, err := r.TickOnce(ctx)
			if err == nil && result.Decision == DecisionIdle && r.cfg.ExitWhenEmpty {
				once.Do(func() { close(drained) })
			}
		}()
	}

	log.Info().
		Dur("interval", r.cfg.TickInterval).
		Bool("exit_when_empty", r.cfg.ExitWhenEmpty).
		Msg("Withdrawal processing started")

	trigger()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping withdrawal processing, waiting for tick in flight")
			r.wg.Wait()
			return nil
		case <-drained:
			r.wg.Wait()
			log.Info().Msg("All withdrawal requests processed")
			return nil
		case <-ticker.C:
			trigger()
		}
	}
}

// TickOnce runs a single tick with the configured timeout and logs its decision.
// Cancellation of ctx does not abort the tick.
func (r *Runner) TickOnce(ctx context.Context) (TickResult, error) {
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.TickTimeout)
	defer cancel()

	result, err := r.engine.Tick(tickCtx)
	if err != nil {
		log.Error().
			Err(err).
			Str("request_id", result.RequestID).
			Msg("Tick failed, retrying on next tick")
		return result, err
	}

	event := log.Info()
	if result.Decision == DecisionIdle {
		event = log.Debug()
	}

	event = event.
		Str("decision", string(result.Decision)).
		Int("queue_depth", result.QueueDepth)
	if result.RequestID != "" {
		event = event.Str("request_id", result.RequestID)
	}
	if result.Token != nil {
		event = event.Uint64("token", *result.Token).Uint64("seqno", result.Seqno)
	}
	if result.Reference != "" {
		event = event.Str("reference", result.Reference)
	}
	event.Msg("Tick completed")

	return result, nil
}
