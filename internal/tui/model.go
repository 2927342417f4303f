// Package tui is the interactive terminal view over the sync engine.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nurpe/freight-quotes/internal/model"
	"github.com/nurpe/freight-quotes/internal/quotesync"
)

// Engine is the part of the sync engine the view drives.
type Engine interface {
	Snapshot() quotesync.State
	Load(ctx context.Context) error
	ToggleDealClosed(ctx context.Context, id model.QuoteID) (model.Quote, error)
	Remove(ctx context.Context, id model.QuoteID) error
}

type Options struct {
	Context context.Context
	Engine  Engine
	// Month selects the initial period; zero shows the current month.
	Month time.Time
}

type Model struct {
	ctx    context.Context
	engine Engine
	keys   keyMap
	styles styles
	help   help.Model
	table  table.Model

	filter  model.QuoteFilter
	records []model.Quote
	visible []model.Quote
	online  bool
	notice  quotesync.Notice
	halted  string
	confirm *model.Quote

	width  int
	height int
}

var columns = []table.Column{
	{Title: "Data", Width: 10},
	{Title: "Transportadora", Width: 24},
	{Title: "Responsável", Width: 16},
	{Title: "Destino", Width: 18},
	{Title: "Nº Cotação", Width: 12},
	{Title: "Valor", Width: 14},
	{Title: "Fechado", Width: 7},
}

func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	month := opts.Month
	if month.IsZero() {
		month = time.Now()
	}

	st := defaultStyles()
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	t.SetStyles(st.table)

	state := opts.Engine.Snapshot()
	m := Model{
		ctx:     ctx,
		engine:  opts.Engine,
		keys:    defaultKeyMap(),
		styles:  st,
		help:    help.New(),
		table:   t,
		filter:  model.QuoteFilter{Year: month.Year(), Month: month.Month()},
		records: state.Records,
		online:  state.Online,
	}
	m.refreshRows()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.loadCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		m.table.SetWidth(msg.Width)
		return m, nil

	case recordsMsg:
		m.records = []model.Quote(msg)
		m.refreshRows()
		return m, nil

	case noticeMsg:
		m.notice = quotesync.Notice(msg)
		return m, nil

	case connectionMsg:
		m.online = bool(msg)
		return m, nil

	case unauthorizedMsg:
		m.halted = string(msg)
		m.confirm = nil
		return m, nil

	case actionMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.halted != "" {
		return m, tea.Quit
	}

	if m.confirm != nil {
		target := m.confirm
		m.confirm = nil
		if key.Matches(msg, m.keys.Confirm) {
			return m, m.removeCmd(target.ID)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		if q, ok := m.selected(); ok {
			return m, m.toggleCmd(q.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if q, ok := m.selected(); ok {
			m.confirm = &q
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadCmd()

	case key.Matches(msg, m.keys.PrevMonth):
		m.shiftMonth(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextMonth):
		m.shiftMonth(1)
		return m, nil

	case key.Matches(msg, m.keys.AllMonths):
		if m.filter.Year == 0 {
			now := time.Now()
			m.filter.Year, m.filter.Month = now.Year(), now.Month()
		} else {
			m.filter.Year, m.filter.Month = 0, 0
		}
		m.refreshRows()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) shiftMonth(delta int) {
	if m.filter.Year == 0 {
		return
	}
	m.filter = m.filter.ShiftMonth(delta)
	m.refreshRows()
}

func (m *Model) refreshRows() {
	m.visible = m.filter.Apply(m.records)
	rows := make([]table.Row, 0, len(m.visible))
	for _, q := range m.visible {
		rows = append(rows, table.Row{
			formatDate(q.QuoteDate),
			q.Carrier,
			q.Requester,
			q.Destination,
			q.QuoteNumber,
			model.FormatCurrency(q.Price),
			formatBool(q.DealClosed),
		})
	}
	m.table.SetRows(rows)
	if n := len(rows); n > 0 && m.table.Cursor() >= n {
		m.table.SetCursor(n - 1)
	}
}

func (m Model) selected() (model.Quote, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.visible) {
		return model.Quote{}, false
	}
	return m.visible[idx], true
}

func (m Model) loadCmd() tea.Cmd {
	engine, ctx := m.engine, m.ctx
	return func() tea.Msg {
		return actionMsg{err: engine.Load(ctx)}
	}
}

func (m Model) toggleCmd(id model.QuoteID) tea.Cmd {
	engine, ctx := m.engine, m.ctx
	return func() tea.Msg {
		_, err := engine.ToggleDealClosed(ctx, id)
		return actionMsg{err: err}
	}
}

func (m Model) removeCmd(id model.QuoteID) tea.Cmd {
	engine, ctx := m.engine, m.ctx
	return func() tea.Msg {
		return actionMsg{err: engine.Remove(ctx, id)}
	}
}

func formatDate(d model.Date) string {
	if d.IsZero() {
		return "-"
	}
	return d.Time().Format("02/01/2006")
}

func formatBool(v bool) string {
	if v {
		return "Sim"
	}
	return "Não"
}
