package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nurpe/freight-quotes/internal/model"
	"github.com/nurpe/freight-quotes/internal/quotesync"
)

type (
	recordsMsg      []model.Quote
	noticeMsg       quotesync.Notice
	connectionMsg   bool
	unauthorizedMsg string
	actionMsg       struct{ err error }
)

// Forwarder relays engine events into a running program. Events that
// arrive before Attach are dropped; the model reads a fresh snapshot on
// start anyway.
type Forwarder struct {
	mu      sync.Mutex
	program *tea.Program
}

func (f *Forwarder) Attach(p *tea.Program) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.program = p
}

func (f *Forwarder) RecordsChanged(records []model.Quote) { f.send(recordsMsg(records)) }
func (f *Forwarder) Notice(n quotesync.Notice)            { f.send(noticeMsg(n)) }
func (f *Forwarder) ConnectionChanged(online bool)        { f.send(connectionMsg(online)) }
func (f *Forwarder) Unauthorized(message string)          { f.send(unauthorizedMsg(message)) }

func (f *Forwarder) send(msg tea.Msg) {
	f.mu.Lock()
	p := f.program
	f.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}
