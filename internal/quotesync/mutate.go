package quotesync

import (
	"context"
	"errors"
	"fmt"

	"github.com/nurpe/freight-quotes/internal/client"
	"github.com/nurpe/freight-quotes/internal/model"
)

const (
	msgCreated       = "Cotação registrada!"
	msgUpdated       = "Cotação atualizada!"
	msgSubmitFailed  = "Erro ao processar cotação"
	msgNotFound      = "Cotação não encontrada"
	msgDeleted       = "Cotação excluída!"
	msgDeleteFailed  = "Erro ao excluir. Registro restaurado."
	msgDealClosed    = "Negócio fechado!"
	msgDealReopened  = "Marcação removida!"
	msgToggleFailed  = "Erro ao atualizar. Status revertido."
	msgPendingRecord = "Aguarde a sincronização do registro"
)

// Create shows the new quote at the top of the list under a temporary id
// and replaces it with the server's record once the write is confirmed.
// On failure the temporary record is removed again.
func (e *Engine) Create(ctx context.Context, draft model.QuoteDraft) (model.Quote, error) {
	draft = draft.Normalize()

	e.mu.Lock()
	if e.state.Halted {
		e.mu.Unlock()
		return model.Quote{}, ErrHalted
	}
	if e.state.Submitting {
		e.mu.Unlock()
		return model.Quote{}, ErrBusy
	}
	e.state.Submitting = true
	e.inflight++
	e.gen++
	e.seq++
	now := e.now()
	tempID := model.TemporaryQuoteID(fmt.Sprintf("%d_%d", now.UnixMilli(), e.seq))
	pending := model.NewQuote(tempID, draft, now)
	e.state.Records = append([]model.Quote{pending}, e.state.Records...)
	records := e.recordsLocked()
	e.mu.Unlock()

	e.listener.RecordsChanged(records)
	e.listener.Notice(Notice{Level: NoticeSuccess, Message: msgCreated})

	saved, err := e.api.CreateQuote(ctx, draft)

	e.mu.Lock()
	e.state.Submitting = false
	e.inflight--
	e.gen++
	if err == nil {
		e.removeLocked(saved.ID)
		if idx := e.indexLocked(tempID); idx >= 0 {
			e.state.Records[idx] = saved.Clone()
		} else {
			e.state.Records = append([]model.Quote{saved.Clone()}, e.state.Records...)
		}
	} else {
		e.removeLocked(tempID)
	}
	records = e.recordsLocked()
	e.mu.Unlock()

	e.listener.RecordsChanged(records)
	if err != nil {
		e.fail(ctx, err, msgSubmitFailed, "create quote failed")
		return model.Quote{}, err
	}
	e.persist(context.WithoutCancel(ctx), records)
	return saved.Clone(), nil
}

// Update applies draft to the record locally, then on the server. The
// record's previous values come back if the server refuses the change.
func (e *Engine) Update(ctx context.Context, id model.QuoteID, draft model.QuoteDraft) (model.Quote, error) {
	id = model.ParseQuoteID(id.String())
	draft = draft.Normalize()

	e.mu.Lock()
	if e.state.Halted {
		e.mu.Unlock()
		return model.Quote{}, ErrHalted
	}
	if e.state.Submitting {
		e.mu.Unlock()
		return model.Quote{}, ErrBusy
	}
	if _, busy := e.busy[id]; busy || id.IsTemporary() {
		e.mu.Unlock()
		e.listener.Notice(Notice{Level: NoticeInfo, Message: msgPendingRecord})
		return model.Quote{}, ErrBusy
	}
	idx := e.indexLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		e.listener.Notice(Notice{Level: NoticeError, Message: msgNotFound})
		return model.Quote{}, ErrNotFound
	}
	before := e.state.Records[idx].Clone()
	optimistic := before.Apply(draft)
	e.state.Records[idx] = optimistic
	e.state.Submitting = true
	e.busy[id] = struct{}{}
	e.inflight++
	e.gen++
	records := e.recordsLocked()
	e.mu.Unlock()

	e.listener.RecordsChanged(records)
	e.listener.Notice(Notice{Level: NoticeSuccess, Message: msgUpdated})

	saved, err := e.api.UpdateQuote(ctx, id, draft)

	e.mu.Lock()
	e.state.Submitting = false
	delete(e.busy, id)
	e.inflight--
	e.gen++
	var result model.Quote
	if err == nil {
		result = saved.Clone()
		if result.Timestamp.IsZero() {
			result.Timestamp = before.Timestamp
		}
		e.replaceLocked(id, result, idx)
	} else {
		e.replaceLocked(id, before, idx)
	}
	records = e.recordsLocked()
	e.mu.Unlock()

	e.listener.RecordsChanged(records)
	if err != nil {
		e.fail(ctx, err, msgSubmitFailed, "update quote failed")
		return model.Quote{}, err
	}
	e.persist(context.WithoutCancel(ctx), records)
	return result, nil
}

// Remove drops the record immediately and puts it back at its old position
// if the server delete fails.
func (e *Engine) Remove(ctx context.Context, id model.QuoteID) error {
	id = model.ParseQuoteID(id.String())

	e.mu.Lock()
	if e.state.Halted {
		e.mu.Unlock()
		return ErrHalted
	}
	if e.state.Submitting {
		e.mu.Unlock()
		return ErrBusy
	}
	if _, busy := e.busy[id]; busy || id.IsTemporary() {
		e.mu.Unlock()
		e.listener.Notice(Notice{Level: NoticeInfo, Message: msgPendingRecord})
		return ErrBusy
	}
	idx := e.indexLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		e.listener.Notice(Notice{Level: NoticeError, Message: msgNotFound})
		return ErrNotFound
	}
	removed := e.state.Records[idx].Clone()
	e.state.Records = append(e.state.Records[:idx:idx], e.state.Records[idx+1:]...)
	e.busy[id] = struct{}{}
	e.inflight++
	e.gen++
	records := e.recordsLocked()
	e.mu.Unlock()

	e.listener.RecordsChanged(records)
	e.listener.Notice(Notice{Level: NoticeSuccess, Message: msgDeleted})

	err := e.api.DeleteQuote(ctx, id)

	e.mu.Lock()
	delete(e.busy, id)
	e.inflight--
	e.gen++
	if err != nil {
		e.replaceLocked(id, removed, idx)
	}
	records = e.recordsLocked()
	e.mu.Unlock()

	if err != nil {
		e.listener.RecordsChanged(records)
		e.fail(ctx, err, msgDeleteFailed, "delete quote failed")
		return err
	}
	e.persist(context.WithoutCancel(ctx), records)
	return nil
}

// ToggleDealClosed flips the deal flag locally and sends the full record.
// Only the flag is reverted if the server refuses.
func (e *Engine) ToggleDealClosed(ctx context.Context, id model.QuoteID) (model.Quote, error) {
	id = model.ParseQuoteID(id.String())

	e.mu.Lock()
	if e.state.Halted {
		e.mu.Unlock()
		return model.Quote{}, ErrHalted
	}
	if e.state.Submitting {
		e.mu.Unlock()
		return model.Quote{}, ErrBusy
	}
	if _, busy := e.busy[id]; busy || id.IsTemporary() {
		e.mu.Unlock()
		e.listener.Notice(Notice{Level: NoticeInfo, Message: msgPendingRecord})
		return model.Quote{}, ErrBusy
	}
	idx := e.indexLocked(id)
	if idx < 0 {
		e.mu.Unlock()
		e.listener.Notice(Notice{Level: NoticeError, Message: msgNotFound})
		return model.Quote{}, ErrNotFound
	}
	toggled := e.state.Records[idx].Clone()
	toggled.DealClosed = !toggled.DealClosed
	e.state.Records[idx] = toggled
	e.busy[id] = struct{}{}
	e.inflight++
	e.gen++
	records := e.recordsLocked()
	e.mu.Unlock()

	message := msgDealReopened
	if toggled.DealClosed {
		message = msgDealClosed
	}
	e.listener.RecordsChanged(records)
	e.listener.Notice(Notice{Level: NoticeSuccess, Message: message})

	saved, err := e.api.UpdateQuote(ctx, id, toggled.Draft())

	e.mu.Lock()
	delete(e.busy, id)
	e.inflight--
	e.gen++
	result := toggled.Clone()
	if i := e.indexLocked(id); i >= 0 {
		if err == nil {
			e.state.Records[i].UpdatedAt = saved.Clone().UpdatedAt
			e.state.Records[i].UpdatedBy = saved.UpdatedBy
		} else {
			e.state.Records[i].DealClosed = !toggled.DealClosed
		}
		result = e.state.Records[i].Clone()
	}
	records = e.recordsLocked()
	e.mu.Unlock()

	if err != nil {
		e.listener.RecordsChanged(records)
		e.fail(ctx, err, msgToggleFailed, "toggle deal failed")
		return model.Quote{}, err
	}
	e.listener.RecordsChanged(records)
	e.persist(context.WithoutCancel(ctx), records)
	return result, nil
}

// fail reports a rejected mutation: either one error notice, or a halt when
// the session is gone. A record the server no longer has gets the not found
// message instead of message.
func (e *Engine) fail(ctx context.Context, err error, message, logMsg string) {
	e.log.Error().Err(err).Msg(logMsg)
	if isUnauthorized(err) {
		e.halt(ctx, unauthorizedMessage(err))
		return
	}
	if errors.Is(err, client.ErrNotFound) {
		message = msgNotFound
	}
	e.listener.Notice(Notice{Level: NoticeError, Message: message})
}

func (e *Engine) removeLocked(id model.QuoteID) {
	if idx := e.indexLocked(id); idx >= 0 {
		e.state.Records = append(e.state.Records[:idx:idx], e.state.Records[idx+1:]...)
	}
}

// replaceLocked writes q over the record with id, or reinserts it at pos
// (clamped to the current length) when the record is gone.
func (e *Engine) replaceLocked(id model.QuoteID, q model.Quote, pos int) {
	if idx := e.indexLocked(id); idx >= 0 {
		e.state.Records[idx] = q
		return
	}
	if pos > len(e.state.Records) {
		pos = len(e.state.Records)
	}
	if pos < 0 {
		pos = 0
	}
	records := make([]model.Quote, 0, len(e.state.Records)+1)
	records = append(records, e.state.Records[:pos]...)
	records = append(records, q)
	records = append(records, e.state.Records[pos:]...)
	e.state.Records = records
}
