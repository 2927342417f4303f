package quotesync

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

const maxBackoff = 60 * time.Second

// Start launches the background poll loop and, when a session gate is set,
// the periodic session check. Both stop on Stop, on ctx cancellation or when
// the engine halts.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.cancel != nil || e.state.Halted {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()

	if e.gate != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.sessionLoop(ctx)
		}()
	}
}

// Stop cancels the loops and waits for them to return. The engine can be
// started again afterwards.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	e.wg.Wait()

	e.mu.Lock()
	e.cancel = nil
	e.mu.Unlock()
}

func (e *Engine) pollLoop(ctx context.Context) {
	failures := 0
	for {
		e.mu.Lock()
		base := e.opts.StatusInterval
		if e.state.Online {
			base = e.opts.PollInterval
		}
		e.mu.Unlock()

		delay := applyJitter(calculateBackoff(failures, base), e.jitter())
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := e.Poll(ctx)
		switch {
		case errors.Is(err, ErrHalted):
			return
		case err != nil:
			failures++
			e.log.Debug().Err(err).Int("failures", failures).Msg("poll tick failed")
		default:
			failures = 0
		}
	}
}

func (e *Engine) sessionLoop(ctx context.Context) {
	ticker := time.NewTicker(e.opts.SessionCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		valid, message, err := e.gate.Verify(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("session check failed")
			continue
		}
		if !valid {
			if message == "" {
				message = msgSessionExpired
			}
			e.halt(ctx, message)
			return
		}
	}
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// applyJitter spreads d by up to 20% either way; r is in [0, 1).
func applyJitter(d time.Duration, r float64) time.Duration {
	return time.Duration(float64(d) * (0.8 + 0.4*r))
}

func randomJitter() float64 {
	return rand.Float64()
}
