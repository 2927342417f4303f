package quotesync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/freight-quotes/internal/client"
	"github.com/nurpe/freight-quotes/internal/model"
)

var baseTime = time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)

func quote(id, carrier string, price float64, closed bool) model.Quote {
	return model.NewQuote(model.QuoteID(id), model.QuoteDraft{
		Requester:  "Ana",
		Carrier:    carrier,
		Price:      price,
		QuoteDate:  model.NewDate(2024, time.May, 10),
		DealClosed: closed,
	}, baseTime)
}

type fakeAPI struct {
	mu         sync.Mutex
	quotes     []model.Quote
	probeErr   error
	listErr    error
	createErr  error
	updateErr  error
	deleteErr  error
	listCalls  int
	probeCalls int
	lastDraft  model.QuoteDraft
	updateFn   func(id model.QuoteID, draft model.QuoteDraft) *model.Quote
	onList     func()
	onUpdate   func()

	createStarted chan struct{}
	createGate    chan struct{}
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) calls() (list, probe int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.probeCalls
}

func (f *fakeAPI) ListQuotes(ctx context.Context) ([]model.Quote, error) {
	f.mu.Lock()
	f.listCalls++
	hook := f.onList
	quotes, err := model.CloneQuotes(f.quotes), f.listErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if quotes == nil {
		quotes = []model.Quote{}
	}
	return quotes, nil
}

func (f *fakeAPI) CreateQuote(ctx context.Context, draft model.QuoteDraft) (*model.Quote, error) {
	f.mu.Lock()
	started, gate := f.createStarted, f.createGate
	f.mu.Unlock()
	if started != nil {
		close(started)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDraft = draft
	if f.createErr != nil {
		return nil, f.createErr
	}
	q := model.NewQuote("srv-1", draft, baseTime.Add(time.Hour))
	q.CreatedBy = "ana"
	f.quotes = append([]model.Quote{q}, f.quotes...)
	return &q, nil
}

func (f *fakeAPI) UpdateQuote(ctx context.Context, id model.QuoteID, draft model.QuoteDraft) (*model.Quote, error) {
	f.mu.Lock()
	hook := f.onUpdate
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDraft = draft
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updateFn != nil {
		return f.updateFn(id, draft), nil
	}
	for i, q := range f.quotes {
		if q.ID == id {
			updated := q.Apply(draft)
			at := baseTime.Add(2 * time.Hour)
			updated.UpdatedAt = &at
			updated.UpdatedBy = "server"
			f.quotes[i] = updated
			return &updated, nil
		}
	}
	return nil, &client.APIError{Status: 404, Message: "Cotação não encontrada"}
}

func (f *fakeAPI) DeleteQuote(ctx context.Context, id model.QuoteID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, q := range f.quotes {
		if q.ID == id {
			f.quotes = append(f.quotes[:i:i], f.quotes[i+1:]...)
			return nil
		}
	}
	return &client.APIError{Status: 404}
}

func (f *fakeAPI) Probe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	return f.probeErr
}

type memorySnapshots struct {
	mu     sync.Mutex
	quotes []model.Quote
	saves  int
}

func (m *memorySnapshots) SaveSnapshot(ctx context.Context, quotes []model.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes = model.CloneQuotes(quotes)
	m.saves++
	return nil
}

func (m *memorySnapshots) LoadSnapshot(ctx context.Context) ([]model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quotes == nil {
		return []model.Quote{}, nil
	}
	return model.CloneQuotes(m.quotes), nil
}

type recorder struct {
	mu           sync.Mutex
	changes      int
	notices      []Notice
	connection   []bool
	unauthorized []string
}

func (r *recorder) RecordsChanged([]model.Quote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes++
}

func (r *recorder) Notice(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) ConnectionChanged(online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connection = append(r.connection, online)
}

func (r *recorder) Unauthorized(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unauthorized = append(r.unauthorized, message)
}

func (r *recorder) changeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes
}

func (r *recorder) noticesAt(level NoticeLevel) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notices {
		if n.Level == level {
			out = append(out, n.Message)
		}
	}
	return out
}

func (r *recorder) unauthorizedMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.unauthorized...)
}

type fakeGate struct {
	mu      sync.Mutex
	valid   bool
	message string
	cleared int
}

func (g *fakeGate) Verify(ctx context.Context) (bool, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.valid, g.message, nil
}

func (g *fakeGate) Clear(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cleared++
	return nil
}

func (g *fakeGate) clearCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cleared
}

type fixture struct {
	api    *fakeAPI
	cache  *memorySnapshots
	events *recorder
	gate   *fakeGate
	engine *Engine
}

func newFixture(t *testing.T, quotes ...model.Quote) *fixture {
	t.Helper()
	f := &fixture{
		api:    &fakeAPI{quotes: quotes},
		cache:  &memorySnapshots{},
		events: &recorder{},
		gate:   &fakeGate{valid: true},
	}
	f.engine = New(f.api, f.cache, Options{
		PollInterval:         5 * time.Millisecond,
		StatusInterval:       5 * time.Millisecond,
		SessionCheckInterval: 5 * time.Millisecond,
		Gate:                 f.gate,
		Listener:             f.events,
		Logger:               zerolog.Nop(),
	})
	f.engine.now = func() time.Time { return baseTime.Add(30 * time.Minute) }
	f.engine.jitter = func() float64 { return 0.5 }
	t.Cleanup(f.engine.Stop)
	return f
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	if err := f.engine.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func sameRecords(t *testing.T, got, want []model.Quote) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("records = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoad_ReloadWithoutChangesDoesNotNotify(t *testing.T) {
	f := newFixture(t, quote("2", "Beta", 200, false), quote("1", "Acme", 100, false))

	f.load(t)
	f.load(t)

	if n := f.events.changeCount(); n != 1 {
		t.Fatalf("RecordsChanged called %d times, want 1", n)
	}
	state := f.engine.Snapshot()
	if !state.Online || state.LastSync.IsZero() {
		t.Fatalf("state = %+v, want online with a sync time", state)
	}
	if len(f.events.connection) != 1 || !f.events.connection[0] {
		t.Fatalf("connection events = %v, want [true]", f.events.connection)
	}
	if f.cache.saves != 1 {
		t.Fatalf("snapshot saves = %d, want 1", f.cache.saves)
	}
}

func TestLoad_NumericAndStringIDsMatch(t *testing.T) {
	var fromServer []model.Quote
	raw := `[{"id": 1, "responsavelCotacao": "Ana", "transportadora": "Acme", "valorFrete": 100, "negocioFechado": false, "timestamp": "2024-05-10T12:00:00Z"}]`
	if err := json.Unmarshal([]byte(raw), &fromServer); err != nil {
		t.Fatalf("decode: %v", err)
	}
	f := newFixture(t, fromServer...)
	f.load(t)

	if _, ok := f.engine.Find(model.QuoteID("1")); !ok {
		t.Fatal("Find(\"1\") did not match a record decoded from a numeric id")
	}
	got, err := f.engine.ToggleDealClosed(context.Background(), model.QuoteID(" 1 "))
	if err != nil {
		t.Fatalf("ToggleDealClosed: %v", err)
	}
	if !got.DealClosed {
		t.Fatal("deal should be closed after toggle")
	}
}

func TestCreate_ReplacesTemporaryRecord(t *testing.T) {
	f := newFixture(t, quote("1", "Acme", 100, false))
	f.load(t)

	saved, err := f.engine.Create(context.Background(), model.QuoteDraft{
		Requester: " Bruno ",
		Carrier:   "Rapido",
		Price:     320.5,
		QuoteDate: model.NewDate(2024, time.May, 11),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if saved.ID != "srv-1" {
		t.Fatalf("saved id = %q, want srv-1", saved.ID)
	}

	state := f.engine.Snapshot()
	if len(state.Records) != 2 || state.Records[0].ID != "srv-1" {
		t.Fatalf("records = %+v", state.Records)
	}
	for _, q := range state.Records {
		if q.ID.IsTemporary() {
			t.Fatalf("temporary record left behind: %+v", q)
		}
	}
	if state.Submitting {
		t.Fatal("submitting flag left set")
	}
	if f.api.lastDraft.Requester != "Bruno" || f.api.lastDraft.Destination != model.NotInformed {
		t.Fatalf("draft sent = %+v, want normalized", f.api.lastDraft)
	}
	if got := f.events.noticesAt(NoticeSuccess); len(got) != 1 || got[0] != msgCreated {
		t.Fatalf("success notices = %v", got)
	}
	if len(f.cache.quotes) != 2 {
		t.Fatalf("snapshot holds %d records, want 2", len(f.cache.quotes))
	}
}

func TestCreate_FailureRestoresCollection(t *testing.T) {
	f := newFixture(t, quote("1", "Acme", 100, false), quote("2", "Beta", 50, true))
	f.load(t)
	before := f.engine.Snapshot().Records

	f.api.set(func(a *fakeAPI) { a.createErr = &client.APIError{Status: 500, Message: "Erro ao criar cotação"} })
	_, err := f.engine.Create(context.Background(), model.QuoteDraft{Requester: "Ana", Carrier: "Novo", QuoteDate: model.NewDate(2024, time.May, 12)})
	if err == nil {
		t.Fatal("expected create error")
	}

	sameRecords(t, f.engine.Snapshot().Records, before)
	if got := f.events.noticesAt(NoticeError); len(got) != 1 || got[0] != msgSubmitFailed {
		t.Fatalf("error notices = %v, want exactly one %q", got, msgSubmitFailed)
	}
	if f.engine.Snapshot().Submitting {
		t.Fatal("submitting flag left set")
	}
}

func TestCreate_RejectsSecondSubmission(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	started := make(chan struct{})
	gate := make(chan struct{})
	f.api.set(func(a *fakeAPI) {
		a.createStarted = started
		a.createGate = gate
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Create(context.Background(), model.QuoteDraft{Requester: "Ana", Carrier: "Acme"})
		done <- err
	}()
	<-started

	if _, err := f.engine.Create(context.Background(), model.QuoteDraft{Requester: "Ana", Carrier: "Beta"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Create error = %v, want ErrBusy", err)
	}
	listBefore, _ := f.api.calls()
	if err := f.engine.Poll(context.Background()); err != nil {
		t.Fatalf("Poll during submission: %v", err)
	}
	if listAfter, _ := f.api.calls(); listAfter != listBefore {
		t.Fatal("Poll fetched while a submission was in flight")
	}
	if state := f.engine.Snapshot(); len(state.Records) != 1 || !state.Records[0].ID.IsTemporary() {
		t.Fatalf("records during submission = %+v", state.Records)
	}

	f.api.set(func(a *fakeAPI) { a.createStarted = nil })
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Create: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	t.Run("success adopts server record", func(t *testing.T) {
		f := newFixture(t, quote("1", "Acme", 100, false))
		f.load(t)

		got, err := f.engine.Update(context.Background(), "1", model.QuoteDraft{Requester: "Ana", Carrier: "Acme Plus", Price: 150})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got.Carrier != "Acme Plus" || got.UpdatedBy != "server" || !got.Timestamp.Equal(baseTime) {
			t.Fatalf("updated = %+v", got)
		}
		if q, _ := f.engine.Find("1"); q.Price != 150 {
			t.Fatalf("stored price = %v, want 150", q.Price)
		}
	})

	t.Run("failure restores before image", func(t *testing.T) {
		original := quote("1", "Acme", 100, false)
		f := newFixture(t, original)
		f.load(t)

		f.api.set(func(a *fakeAPI) { a.updateErr = errors.New("connection reset") })
		if _, err := f.engine.Update(context.Background(), "1", model.QuoteDraft{Requester: "Ana", Carrier: "Other"}); err == nil {
			t.Fatal("expected update error")
		}
		sameRecords(t, f.engine.Snapshot().Records, []model.Quote{original})
		if got := f.events.noticesAt(NoticeError); len(got) != 1 {
			t.Fatalf("error notices = %v", got)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newFixture(t)
		f.load(t)
		if _, err := f.engine.Update(context.Background(), "404", model.QuoteDraft{}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		if got := f.events.noticesAt(NoticeError); len(got) != 1 || got[0] != msgNotFound {
			t.Fatalf("error notices = %v", got)
		}
	})
}

func TestToggleDealClosed_FailureRevertsFlag(t *testing.T) {
	original := quote("1", "Acme", 100, false)
	f := newFixture(t, original)
	f.load(t)

	var pending model.Quote
	f.api.set(func(a *fakeAPI) {
		a.updateErr = &client.APIError{Status: 500, Message: "Erro ao atualizar cotação"}
		a.onUpdate = func() { pending, _ = f.engine.Find("1") }
	})
	if _, err := f.engine.ToggleDealClosed(context.Background(), "1"); err == nil {
		t.Fatal("expected toggle error")
	}
	if !pending.DealClosed {
		t.Fatal("flag should show as closed while the server call is pending")
	}

	got, ok := f.engine.Find("1")
	if !ok || got.DealClosed {
		t.Fatalf("record after failed toggle = %+v", got)
	}
	sameRecords(t, f.engine.Snapshot().Records, []model.Quote{original})
	if errs := f.events.noticesAt(NoticeError); len(errs) != 1 || errs[0] != msgToggleFailed {
		t.Fatalf("error notices = %v, want exactly one %q", errs, msgToggleFailed)
	}
	if ok := f.events.noticesAt(NoticeSuccess); len(ok) != 1 || ok[0] != msgDealClosed {
		t.Fatalf("success notices = %v", ok)
	}
}

func TestToggleDealClosed_SuccessKeepsLocalFields(t *testing.T) {
	f := newFixture(t, quote("1", "Acme", 100, false))
	f.load(t)

	at := baseTime.Add(3 * time.Hour)
	f.api.set(func(a *fakeAPI) {
		a.updateFn = func(id model.QuoteID, draft model.QuoteDraft) *model.Quote {
			q := quote(id.String(), "Renamed elsewhere", 999, draft.DealClosed)
			q.UpdatedAt = &at
			q.UpdatedBy = "carla"
			return &q
		}
	})

	got, err := f.engine.ToggleDealClosed(context.Background(), "1")
	if err != nil {
		t.Fatalf("ToggleDealClosed: %v", err)
	}
	if !f.api.lastDraft.DealClosed || f.api.lastDraft.Carrier != "Acme" {
		t.Fatalf("draft sent = %+v, want full record with flag set", f.api.lastDraft)
	}
	if got.Carrier != "Acme" || got.Price != 100 || !got.DealClosed {
		t.Fatalf("local fields changed: %+v", got)
	}
	if got.UpdatedBy != "carla" || got.UpdatedAt == nil || !got.UpdatedAt.Equal(at) {
		t.Fatalf("audit fields not adopted: %+v", got)
	}

	f.api.set(func(a *fakeAPI) { a.updateFn = nil })
	back, err := f.engine.ToggleDealClosed(context.Background(), "1")
	if err != nil || back.DealClosed {
		t.Fatalf("second toggle = %+v, %v", back, err)
	}
	if ok := f.events.noticesAt(NoticeSuccess); len(ok) != 2 || ok[1] != msgDealReopened {
		t.Fatalf("success notices = %v", ok)
	}
}

func TestRemove_FailureRestoresPosition(t *testing.T) {
	records := []model.Quote{quote("3", "C", 3, false), quote("2", "B", 2, false), quote("1", "A", 1, false)}
	f := newFixture(t, records...)
	f.load(t)

	f.api.set(func(a *fakeAPI) { a.deleteErr = &client.APIError{Status: 500} })
	if err := f.engine.Remove(context.Background(), "2"); err == nil {
		t.Fatal("expected remove error")
	}
	sameRecords(t, f.engine.Snapshot().Records, records)
	if errs := f.events.noticesAt(NoticeError); len(errs) != 1 || errs[0] != msgDeleteFailed {
		t.Fatalf("error notices = %v", errs)
	}

	f.api.set(func(a *fakeAPI) { a.deleteErr = nil })
	if err := f.engine.Remove(context.Background(), "2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := f.engine.Find("2"); ok {
		t.Fatal("record still present after delete")
	}
	if len(f.cache.quotes) != 2 {
		t.Fatalf("snapshot holds %d records, want 2", len(f.cache.quotes))
	}
}

func TestTemporaryRecordsAreBusy(t *testing.T) {
	f := newFixture(t)
	temp := model.TemporaryQuoteID("1_1")
	if err := f.engine.Remove(context.Background(), temp); !errors.Is(err, ErrBusy) {
		t.Fatalf("Remove err = %v, want ErrBusy", err)
	}
	if _, err := f.engine.ToggleDealClosed(context.Background(), temp); !errors.Is(err, ErrBusy) {
		t.Fatalf("Toggle err = %v, want ErrBusy", err)
	}
}

func TestMutationsRefuseRecordInFlight(t *testing.T) {
	t.Run("toggle during update", func(t *testing.T) {
		f := newFixture(t, quote("1", "Acme", 100, false))
		f.load(t)

		var toggleErr, removeErr error
		f.api.set(func(a *fakeAPI) {
			a.updateErr = &client.APIError{Status: 500}
			a.onUpdate = func() {
				a.set(func(a *fakeAPI) { a.onUpdate = nil })
				_, toggleErr = f.engine.ToggleDealClosed(context.Background(), "1")
				removeErr = f.engine.Remove(context.Background(), "1")
			}
		})

		if _, err := f.engine.Update(context.Background(), "1", model.QuoteDraft{Requester: "Ana", Carrier: "Acme", Price: 150}); err == nil {
			t.Fatal("expected update error")
		}
		if !errors.Is(toggleErr, ErrBusy) {
			t.Fatalf("toggle err = %v, want ErrBusy", toggleErr)
		}
		if !errors.Is(removeErr, ErrBusy) {
			t.Fatalf("remove err = %v, want ErrBusy", removeErr)
		}

		local, _ := f.engine.Find("1")
		f.api.mu.Lock()
		server := f.api.quotes[0]
		f.api.mu.Unlock()
		if local.DealClosed != server.DealClosed || local.Price != 100 {
			t.Fatalf("local = %+v, server = %+v", local, server)
		}
	})

	t.Run("update during toggle", func(t *testing.T) {
		f := newFixture(t, quote("1", "Acme", 100, false))
		f.load(t)

		var updateErr error
		f.api.set(func(a *fakeAPI) {
			a.updateErr = &client.APIError{Status: 500}
			a.onUpdate = func() {
				a.set(func(a *fakeAPI) { a.onUpdate = nil })
				_, updateErr = f.engine.Update(context.Background(), "1", model.QuoteDraft{Requester: "Ana", Carrier: "Outra"})
			}
		})

		if _, err := f.engine.ToggleDealClosed(context.Background(), "1"); err == nil {
			t.Fatal("expected toggle error")
		}
		if !errors.Is(updateErr, ErrBusy) {
			t.Fatalf("update err = %v, want ErrBusy", updateErr)
		}
		if got := f.events.noticesAt(NoticeInfo); len(got) != 1 || got[0] != msgPendingRecord {
			t.Fatalf("info notices = %v", got)
		}
		sameRecords(t, f.engine.Snapshot().Records, []model.Quote{quote("1", "Acme", 100, false)})

		f.api.set(func(a *fakeAPI) { a.updateErr = nil })
		if _, err := f.engine.Update(context.Background(), "1", model.QuoteDraft{Requester: "Ana", Carrier: "Outra"}); err != nil {
			t.Fatalf("Update after toggle settled: %v", err)
		}
	})
}

func TestServerNotFoundMessage(t *testing.T) {
	notFound := &client.APIError{Status: 404}
	tests := []struct {
		name   string
		inject func(a *fakeAPI)
		mutate func(e *Engine) error
	}{
		{
			name:   "remove",
			inject: func(a *fakeAPI) { a.deleteErr = notFound },
			mutate: func(e *Engine) error { return e.Remove(context.Background(), "1") },
		},
		{
			name:   "update",
			inject: func(a *fakeAPI) { a.updateErr = notFound },
			mutate: func(e *Engine) error {
				_, err := e.Update(context.Background(), "1", model.QuoteDraft{Requester: "Ana", Carrier: "Outra"})
				return err
			},
		},
		{
			name:   "toggle",
			inject: func(a *fakeAPI) { a.updateErr = notFound },
			mutate: func(e *Engine) error {
				_, err := e.ToggleDealClosed(context.Background(), "1")
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []model.Quote{quote("2", "Beta", 2, false), quote("1", "Acme", 1, false)}
			f := newFixture(t, records...)
			f.load(t)

			f.api.set(tt.inject)
			if err := tt.mutate(f.engine); !errors.Is(err, client.ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
			if got := f.events.noticesAt(NoticeError); len(got) != 1 || got[0] != msgNotFound {
				t.Fatalf("error notices = %v, want [%q]", got, msgNotFound)
			}
			sameRecords(t, f.engine.Snapshot().Records, records)
			if f.engine.Snapshot().Halted {
				t.Fatal("not found must not halt")
			}
		})
	}
}

func TestChanged(t *testing.T) {
	updated := baseTime.Add(time.Hour)
	updatedCopy := updated
	withAudit := quote("1", "Acme", 100, false)
	withAudit.UpdatedAt = &updated
	sameAudit := quote("1", "Acme", 100, false)
	sameAudit.UpdatedAt = &updatedCopy

	tests := []struct {
		name string
		prev []model.Quote
		next []model.Quote
		want bool
	}{
		{"both empty", nil, []model.Quote{}, false},
		{"equal values in new instances", []model.Quote{withAudit}, []model.Quote{sameAudit}, false},
		{"order does not matter", []model.Quote{quote("1", "A", 1, false), quote("2", "B", 2, false)}, []model.Quote{quote("2", "B", 2, false), quote("1", "A", 1, false)}, false},
		{"different length", []model.Quote{quote("1", "A", 1, false)}, nil, true},
		{"different ids", []model.Quote{quote("1", "A", 1, false)}, []model.Quote{quote("9", "A", 1, false)}, true},
		{"duplicate ids", []model.Quote{quote("1", "A", 1, false), quote("2", "B", 2, false)}, []model.Quote{quote("1", "A", 1, false), quote("1", "A", 1, false)}, true},
		{"field changed", []model.Quote{quote("1", "A", 1, false)}, []model.Quote{quote("1", "A", 1, true)}, true},
		{"audit changed", []model.Quote{quote("1", "Acme", 100, false)}, []model.Quote{withAudit}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Changed(tt.prev, tt.next); got != tt.want {
				t.Fatalf("Changed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad_OfflineUsesSnapshot(t *testing.T) {
	f := newFixture(t)
	cached := []model.Quote{quote("1", "Acme", 100, false)}
	f.cache.quotes = cached
	f.api.set(func(a *fakeAPI) { a.probeErr = errors.New("dial tcp: connection refused") })

	err := f.engine.Load(context.Background())
	if !errors.Is(err, ErrOffline) {
		t.Fatalf("Load err = %v, want ErrOffline", err)
	}
	state := f.engine.Snapshot()
	if state.Online {
		t.Fatal("engine should be offline")
	}
	sameRecords(t, state.Records, cached)
	if info := f.events.noticesAt(NoticeInfo); len(info) != 1 || info[0] != msgOffline {
		t.Fatalf("info notices = %v", info)
	}

	// Back online: the next poll probes, then reloads from the server.
	f.api.set(func(a *fakeAPI) {
		a.probeErr = nil
		a.quotes = []model.Quote{quote("1", "Acme", 100, false), quote("2", "Beta", 20, false)}
	})
	if err := f.engine.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	state = f.engine.Snapshot()
	if !state.Online || len(state.Records) != 2 {
		t.Fatalf("state after reconnect = %+v", state)
	}
}

func TestUnauthorizedHaltsEngine(t *testing.T) {
	f := newFixture(t)
	f.api.set(func(a *fakeAPI) { a.listErr = &client.APIError{Status: 401, Message: "Token expirado"} })

	if err := f.engine.Load(context.Background()); !errors.Is(err, ErrHalted) {
		t.Fatalf("Load err = %v, want ErrHalted", err)
	}
	if got := f.events.unauthorizedMessages(); len(got) != 1 || got[0] != "Token expirado" {
		t.Fatalf("unauthorized = %v", got)
	}
	if f.gate.clearCount() != 1 {
		t.Fatal("credential was not cleared")
	}

	if _, err := f.engine.Create(context.Background(), model.QuoteDraft{}); !errors.Is(err, ErrHalted) {
		t.Fatalf("Create err = %v, want ErrHalted", err)
	}
	if err := f.engine.Poll(context.Background()); !errors.Is(err, ErrHalted) {
		t.Fatalf("Poll err = %v, want ErrHalted", err)
	}
	if !f.engine.Snapshot().Halted {
		t.Fatal("state should report halted")
	}
}

func TestMutationRejectedByServerHalts(t *testing.T) {
	f := newFixture(t, quote("1", "Acme", 100, false))
	f.load(t)

	f.api.set(func(a *fakeAPI) { a.updateErr = &client.APIError{Status: 403, Message: "Sessão Expirada"} })
	if _, err := f.engine.ToggleDealClosed(context.Background(), "1"); err == nil {
		t.Fatal("expected toggle error")
	}
	if got := f.events.unauthorizedMessages(); len(got) != 1 || got[0] != "Sessão Expirada" {
		t.Fatalf("unauthorized = %v", got)
	}
	if errs := f.events.noticesAt(NoticeError); len(errs) != 0 {
		t.Fatalf("error notices = %v, want none when halting", errs)
	}
	if q, _ := f.engine.Find("1"); q.DealClosed {
		t.Fatal("flag should be reverted")
	}
}

func TestPoll_DropsResultThatRacedWithMutation(t *testing.T) {
	f := newFixture(t, quote("2", "Beta", 2, false), quote("1", "Acme", 1, false))
	f.load(t)

	// The list answer is computed before the delete runs, so it still
	// contains the removed record.
	f.api.set(func(a *fakeAPI) {
		a.quotes = append(a.quotes, quote("3", "Gama", 3, false))
		a.onList = func() {
			a.set(func(a *fakeAPI) { a.onList = nil })
			if err := f.engine.Remove(context.Background(), "2"); err != nil {
				t.Errorf("Remove: %v", err)
			}
		}
	})

	if err := f.engine.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if _, ok := f.engine.Find("2"); ok {
		t.Fatal("stale poll result resurrected a deleted record")
	}
	if _, ok := f.engine.Find("3"); ok {
		t.Fatal("stale poll result was applied")
	}

	if err := f.engine.Poll(context.Background()); err != nil {
		t.Fatalf("second Poll: %v", err)
	}
	if _, ok := f.engine.Find("3"); !ok {
		t.Fatal("fresh poll result was not applied")
	}
}

func TestPoll_TransportErrorGoesOffline(t *testing.T) {
	f := newFixture(t, quote("1", "Acme", 1, false))
	f.load(t)

	f.api.set(func(a *fakeAPI) { a.listErr = errors.New("read: connection reset") })
	if err := f.engine.Poll(context.Background()); err == nil {
		t.Fatal("expected poll error")
	}
	if f.engine.Snapshot().Online {
		t.Fatal("engine should be offline after a transport error")
	}
	if got := f.events.noticesAt(NoticeError); len(got) != 0 {
		t.Fatalf("poll failures must stay silent, got %v", got)
	}

	f.api.set(func(a *fakeAPI) { a.listErr = nil })
	f.load(t)
	f.api.set(func(a *fakeAPI) { a.listErr = &client.APIError{Status: 502} })
	if err := f.engine.Poll(context.Background()); err == nil {
		t.Fatal("expected poll error")
	}
	if !f.engine.Snapshot().Online {
		t.Fatal("a server error answer should not mark the engine offline")
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		failures int
		base     time.Duration
		want     time.Duration
	}{
		{0, 10 * time.Second, 10 * time.Second},
		{-1, 10 * time.Second, 10 * time.Second},
		{1, 10 * time.Second, 20 * time.Second},
		{2, 10 * time.Second, 40 * time.Second},
		{3, 10 * time.Second, maxBackoff},
		{50, 15 * time.Second, maxBackoff},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.failures, tt.base); got != tt.want {
			t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, tt.base, got, tt.want)
		}
	}
}

func TestApplyJitterBounds(t *testing.T) {
	d := 10 * time.Second
	if got := applyJitter(d, 0); got != 8*time.Second {
		t.Fatalf("applyJitter(0) = %v, want 8s", got)
	}
	if got := applyJitter(d, 0.5); got != d {
		t.Fatalf("applyJitter(0.5) = %v, want 10s", got)
	}
	for i := 0; i < 100; i++ {
		got := applyJitter(d, randomJitter())
		if got < 8*time.Second || got >= 12*time.Second {
			t.Fatalf("jittered delay %v outside [8s, 12s)", got)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, quote("1", "Acme", 1, false))
	f.load(t)

	f.engine.Start(context.Background())
	waitFor(t, "background polls", func() bool {
		list, _ := f.api.calls()
		return list >= 4
	})

	f.api.set(func(a *fakeAPI) { a.quotes = append(a.quotes, quote("2", "Beta", 2, false)) })
	waitFor(t, "new record from poll", func() bool {
		_, ok := f.engine.Find("2")
		return ok
	})

	f.engine.Stop()
	after, _ := f.api.calls()
	time.Sleep(20 * time.Millisecond)
	if list, _ := f.api.calls(); list != after {
		t.Fatalf("polling continued after Stop: %d -> %d", after, list)
	}

	f.engine.Start(context.Background())
	waitFor(t, "polls after restart", func() bool {
		list, _ := f.api.calls()
		return list >= after+2
	})
	f.engine.Stop()
}

func TestSessionCheckHalts(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.gate.mu.Lock()
	f.gate.valid = false
	f.gate.message = "Sessão encerrada pelo portal"
	f.gate.mu.Unlock()

	f.engine.Start(context.Background())
	waitFor(t, "halt", func() bool { return f.engine.Snapshot().Halted })
	f.engine.Stop()

	if got := f.events.unauthorizedMessages(); len(got) != 1 || got[0] != "Sessão encerrada pelo portal" {
		t.Fatalf("unauthorized = %v", got)
	}
	if f.gate.clearCount() != 1 {
		t.Fatal("credential was not cleared")
	}
}
