package quotesync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/freight-quotes/internal/model"
)

// API is the subset of the quotes service the engine talks to.
type API interface {
	ListQuotes(ctx context.Context) ([]model.Quote, error)
	CreateQuote(ctx context.Context, draft model.QuoteDraft) (*model.Quote, error)
	UpdateQuote(ctx context.Context, id model.QuoteID, draft model.QuoteDraft) (*model.Quote, error)
	DeleteQuote(ctx context.Context, id model.QuoteID) error
	Probe(ctx context.Context) error
}

// Snapshots persists the whole collection for offline use.
type Snapshots interface {
	SaveSnapshot(ctx context.Context, quotes []model.Quote) error
	LoadSnapshot(ctx context.Context) ([]model.Quote, error)
}

// SessionGate checks the stored credential. Verify returns an error only
// when the check itself could not run.
type SessionGate interface {
	Verify(ctx context.Context) (bool, string, error)
	Clear(ctx context.Context) error
}

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeError   NoticeLevel = "error"
)

type Notice struct {
	Level   NoticeLevel
	Message string
}

// Listener receives engine events. Calls are made without engine locks held.
type Listener interface {
	RecordsChanged(records []model.Quote)
	Notice(n Notice)
	ConnectionChanged(online bool)
	Unauthorized(message string)
}

// State is the client's view of the collection.
type State struct {
	Records    []model.Quote
	Online     bool
	Submitting bool
	Halted     bool
	LastSync   time.Time
}

type Options struct {
	PollInterval         time.Duration
	StatusInterval       time.Duration
	SessionCheckInterval time.Duration
	ProbeTimeout         time.Duration
	Gate                 SessionGate
	Listener             Listener
	Logger               zerolog.Logger
}

const (
	defaultPollInterval         = 10 * time.Second
	defaultStatusInterval       = 15 * time.Second
	defaultSessionCheckInterval = 30 * time.Second
	defaultProbeTimeout         = 10 * time.Second
)

// Engine owns the in-memory collection and keeps it convergent with the
// server. It is the only writer of that collection.
type Engine struct {
	api      API
	cache    Snapshots
	gate     SessionGate
	listener Listener
	log      zerolog.Logger
	opts     Options
	now      func() time.Time
	jitter   func() float64

	mu        sync.Mutex
	state     State
	connKnown bool
	inflight  int
	busy      map[model.QuoteID]struct{}
	gen       uint64
	seq       uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(api API, cache Snapshots, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = defaultStatusInterval
	}
	if opts.SessionCheckInterval <= 0 {
		opts.SessionCheckInterval = defaultSessionCheckInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	listener := opts.Listener
	if listener == nil {
		listener = nopListener{}
	}
	return &Engine{
		api:      api,
		cache:    cache,
		gate:     opts.Gate,
		listener: listener,
		log:      opts.Logger,
		opts:     opts,
		now:      time.Now,
		jitter:   randomJitter,
		state:    State{Records: []model.Quote{}},
		busy:     make(map[model.QuoteID]struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.Records = model.CloneQuotes(e.state.Records)
	return s
}

// Find returns the record with id, comparing canonical ids.
func (e *Engine) Find(id model.QuoteID) (model.Quote, bool) {
	id = model.ParseQuoteID(id.String())
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx := e.indexLocked(id); idx >= 0 {
		return e.state.Records[idx].Clone(), true
	}
	return model.Quote{}, false
}

func (e *Engine) indexLocked(id model.QuoteID) int {
	for i, q := range e.state.Records {
		if q.ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) recordsLocked() []model.Quote {
	return model.CloneQuotes(e.state.Records)
}

// setOnlineLocked records the connection flag and reports whether listeners
// must hear about it.
func (e *Engine) setOnlineLocked(online bool) bool {
	changed := !e.connKnown || e.state.Online != online
	e.connKnown = true
	e.state.Online = online
	return changed
}

func (e *Engine) persist(ctx context.Context, records []model.Quote) {
	if err := e.cache.SaveSnapshot(ctx, records); err != nil {
		e.log.Warn().Err(err).Msg("save local snapshot failed")
	}
}

type nopListener struct{}

func (nopListener) RecordsChanged([]model.Quote) {}
func (nopListener) Notice(Notice)                {}
func (nopListener) ConnectionChanged(bool)       {}
func (nopListener) Unauthorized(string)          {}
