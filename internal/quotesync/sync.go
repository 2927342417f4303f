package quotesync

import (
	"context"
	"errors"
	"fmt"

	"github.com/nurpe/freight-quotes/internal/client"
	"github.com/nurpe/freight-quotes/internal/model"
)

const (
	msgOffline        = "Modo offline ativo"
	msgSessionExpired = "Sua sessão expirou"
)

// Load probes the server and fetches the full collection. When the server
// cannot be reached the last local snapshot is shown instead and the engine
// goes offline; the returned error then wraps ErrOffline.
func (e *Engine) Load(ctx context.Context) error {
	if e.isHalted() {
		return ErrHalted
	}

	probeCtx, cancel := context.WithTimeout(ctx, e.opts.ProbeTimeout)
	err := e.api.Probe(probeCtx)
	cancel()

	var quotes []model.Quote
	gen := e.generation()
	if err == nil {
		quotes, err = e.api.ListQuotes(ctx)
	}
	if err != nil {
		if isUnauthorized(err) {
			e.halt(ctx, unauthorizedMessage(err))
			return ErrHalted
		}
		e.fallBackToCache(ctx, err)
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}

	e.apply(ctx, quotes, gen)
	return nil
}

// Poll runs one tick of the background loop. It does nothing while a
// mutation is in flight. Online it refreshes the collection; offline it only
// probes and performs a full Load once the server answers again.
func (e *Engine) Poll(ctx context.Context) error {
	e.mu.Lock()
	if e.state.Halted {
		e.mu.Unlock()
		return ErrHalted
	}
	if e.state.Submitting || e.inflight > 0 {
		e.mu.Unlock()
		return nil
	}
	online := e.state.Online
	e.mu.Unlock()

	if !online {
		probeCtx, cancel := context.WithTimeout(ctx, e.opts.ProbeTimeout)
		err := e.api.Probe(probeCtx)
		cancel()
		if err != nil {
			return err
		}
		return e.Load(ctx)
	}

	gen := e.generation()
	quotes, err := e.api.ListQuotes(ctx)
	if err != nil {
		if isUnauthorized(err) {
			e.halt(ctx, unauthorizedMessage(err))
			return ErrHalted
		}
		e.log.Debug().Err(err).Msg("poll failed")
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) && ctx.Err() == nil {
			e.markOffline()
		}
		return err
	}

	e.apply(ctx, quotes, gen)
	return nil
}

// apply replaces the collection with quotes fetched while the mutation
// generation was gen. Results that raced with a mutation are dropped.
func (e *Engine) apply(ctx context.Context, quotes []model.Quote, gen uint64) {
	e.mu.Lock()
	connChanged := e.setOnlineLocked(true)
	e.state.LastSync = e.now()
	stale := e.gen != gen || e.inflight > 0 || e.state.Submitting
	changed := !stale && Changed(e.state.Records, quotes)
	if changed {
		e.state.Records = model.CloneQuotes(quotes)
	}
	records := e.recordsLocked()
	e.mu.Unlock()

	if connChanged {
		e.listener.ConnectionChanged(true)
	}
	if changed {
		e.persist(context.WithoutCancel(ctx), records)
		e.listener.RecordsChanged(records)
	}
}

func (e *Engine) fallBackToCache(ctx context.Context, cause error) {
	e.log.Warn().Err(cause).Msg("server unreachable, using local snapshot")

	cached, err := e.cache.LoadSnapshot(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("load local snapshot failed")
	}

	e.mu.Lock()
	connChanged := e.setOnlineLocked(false)
	changed := err == nil && e.inflight == 0 && !e.state.Submitting && Changed(e.state.Records, cached)
	if changed {
		e.state.Records = model.CloneQuotes(cached)
	}
	records := e.recordsLocked()
	e.mu.Unlock()

	if connChanged {
		e.listener.ConnectionChanged(false)
		e.listener.Notice(Notice{Level: NoticeInfo, Message: msgOffline})
	}
	if changed {
		e.listener.RecordsChanged(records)
	}
}

func (e *Engine) markOffline() {
	e.mu.Lock()
	connChanged := e.setOnlineLocked(false)
	e.mu.Unlock()
	if connChanged {
		e.listener.ConnectionChanged(false)
	}
}

// halt stops the engine for good after the server or the portal rejected
// the session. The stored credential is cleared and listeners are told once.
func (e *Engine) halt(ctx context.Context, message string) {
	e.mu.Lock()
	if e.state.Halted {
		e.mu.Unlock()
		return
	}
	e.state.Halted = true
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if e.gate != nil {
		if err := e.gate.Clear(context.WithoutCancel(ctx)); err != nil {
			e.log.Warn().Err(err).Msg("clear credential failed")
		}
	}
	e.log.Warn().Str("reason", message).Msg("session rejected, sync halted")
	e.listener.Unauthorized(message)
}

func (e *Engine) isHalted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Halted
}

func (e *Engine) generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

// Changed reports whether next differs from prev: first by size, then by id
// membership, then field by field for matching ids.
func Changed(prev, next []model.Quote) bool {
	if len(prev) != len(next) {
		return true
	}

	byID := make(map[model.QuoteID]model.Quote, len(prev))
	for _, q := range prev {
		byID[q.ID] = q
	}
	nextIDs := make(map[model.QuoteID]struct{}, len(next))
	for _, q := range next {
		if _, ok := byID[q.ID]; !ok {
			return true
		}
		nextIDs[q.ID] = struct{}{}
	}
	if len(nextIDs) != len(byID) {
		return true
	}

	for _, q := range next {
		if !byID[q.ID].Equal(q) {
			return true
		}
	}
	return false
}

func isUnauthorized(err error) bool {
	return errors.Is(err, client.ErrUnauthorized)
}

func unauthorizedMessage(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" && len(apiErr.Message) < 200 {
		return apiErr.Message
	}
	return msgSessionExpired
}
