// Package presenter binds the channel list to a host list view: one row per
// channel, asynchronous logos, and click / context callbacks.
package presenter

import (
	"context"
	"sync"

	"github.com/voyagen/tvplayer/internal/channelstore"
	"github.com/voyagen/tvplayer/internal/logo"
	"github.com/voyagen/tvplayer/internal/models"
)

// Anchor is a host-specific handle identifying where a context menu should open.
type Anchor any

// View receives structural change signals, always at the index the channel
// store mutated.
type View interface {
	RowInserted(index int)
	RowChanged(index int)
	RowRemoved(index int)
	RowsReset()
}

// LogoSource loads logo images asynchronously.
type LogoSource interface {
	Load(ctx context.Context, url string, done func(logo.Logo))
}

// Row is what the host renders for one channel.
type Row struct {
	ChannelID string
	Name      string
	LogoURL   string
	Logo      *logo.Logo // nil until loaded
}

// Presenter keeps rows in the order of the channel store.
type Presenter struct {
	logos      LogoSource
	dispatch   func(func())
	onActivate func(models.Channel)
	onContext  func(models.Channel, Anchor)

	mu       sync.RWMutex
	ctx      context.Context
	source   *channelstore.Store
	view     View
	channels []models.Channel
	rows     []Row
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithDispatcher routes logo completions through dispatch (the host's event goroutine).
func WithDispatcher(dispatch func(func())) Option {
	return func(p *Presenter) { p.dispatch = dispatch }
}

// OnActivate sets the primary selection callback.
func OnActivate(fn func(models.Channel)) Option {
	return func(p *Presenter) { p.onActivate = fn }
}

// OnContextRequest sets the secondary (long-press) selection callback.
func OnContextRequest(fn func(models.Channel, Anchor)) Option {
	return func(p *Presenter) { p.onContext = fn }
}

// New returns an unbound presenter.
func New(logos LogoSource, opts ...Option) *Presenter {
	p := &Presenter{
		logos:      logos,
		dispatch:   func(fn func()) { fn() },
		onActivate: func(models.Channel) {},
		onContext:  func(models.Channel, Anchor) {},
		ctx:        context.Background(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Bind renders the current content of s and follows its changes.
func (p *Presenter) Bind(ctx context.Context, s *channelstore.Store) {
	p.mu.Lock()
	p.ctx = ctx
	p.source = s
	p.mu.Unlock()
	p.reset()
	s.Subscribe(p.Apply)
}

// SetView attaches the host view. A nil view detaches it.
func (p *Presenter) SetView(v View) {
	p.mu.Lock()
	p.view = v
	p.mu.Unlock()
	if v != nil {
		v.RowsReset()
	}
}

// Apply mirrors one channel store change into the rows.
func (p *Presenter) Apply(c channelstore.Change) {
	switch c.Kind {
	case channelstore.Reset:
		p.reset()
		return
	case channelstore.Inserted:
		p.mu.Lock()
		if c.Index < 0 || c.Index > len(p.rows) {
			p.mu.Unlock()
			p.reset()
			return
		}
		p.channels = insertAt(p.channels, c.Index, c.Channel)
		p.rows = insertAt(p.rows, c.Index, rowFor(c.Channel))
		v := p.view
		p.mu.Unlock()
		if v != nil {
			v.RowInserted(c.Index)
		}
		p.loadLogo(c.Channel)
	case channelstore.Changed:
		p.mu.Lock()
		if c.Index < 0 || c.Index >= len(p.rows) {
			p.mu.Unlock()
			p.reset()
			return
		}
		prev := p.rows[c.Index]
		row := rowFor(c.Channel)
		if prev.LogoURL == row.LogoURL {
			row.Logo = prev.Logo
		}
		p.channels[c.Index] = c.Channel
		p.rows[c.Index] = row
		v := p.view
		p.mu.Unlock()
		if v != nil {
			v.RowChanged(c.Index)
		}
		if row.Logo == nil {
			p.loadLogo(c.Channel)
		}
	case channelstore.Removed:
		p.mu.Lock()
		if c.Index < 0 || c.Index >= len(p.rows) {
			p.mu.Unlock()
			p.reset()
			return
		}
		p.channels = append(p.channels[:c.Index], p.channels[c.Index+1:]...)
		p.rows = append(p.rows[:c.Index], p.rows[c.Index+1:]...)
		v := p.view
		p.mu.Unlock()
		if v != nil {
			v.RowRemoved(c.Index)
		}
	}
}

// Rows returns a copy of the rendered rows.
func (p *Presenter) Rows() []Row {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Row{}, p.rows...)
}

// Row returns the row at index.
func (p *Presenter) Row(index int) (Row, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if index < 0 || index >= len(p.rows) {
		return Row{}, false
	}
	return p.rows[index], true
}

// SetCallbacks replaces both selection callbacks. Nil leaves a callback unchanged.
func (p *Presenter) SetCallbacks(onActivate func(models.Channel), onContext func(models.Channel, Anchor)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if onActivate != nil {
		p.onActivate = onActivate
	}
	if onContext != nil {
		p.onContext = onContext
	}
}

// Activate fires the primary selection callback for the row at index.
func (p *Presenter) Activate(index int) bool {
	ch, ok := p.channelAt(index)
	if ok {
		p.mu.RLock()
		fn := p.onActivate
		p.mu.RUnlock()
		fn(ch)
	}
	return ok
}

// ContextRequest fires the secondary selection callback for the row at index.
func (p *Presenter) ContextRequest(index int, anchor Anchor) bool {
	ch, ok := p.channelAt(index)
	if ok {
		p.mu.RLock()
		fn := p.onContext
		p.mu.RUnlock()
		fn(ch, anchor)
	}
	return ok
}

// --- helpers ---

func (p *Presenter) channelAt(index int) (models.Channel, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if index < 0 || index >= len(p.channels) {
		return models.Channel{}, false
	}
	return p.channels[index], true
}

func (p *Presenter) reset() {
	p.mu.Lock()
	var channels []models.Channel
	if p.source != nil {
		channels = p.source.Channels()
	}
	p.channels = channels
	p.rows = make([]Row, len(channels))
	for i, ch := range channels {
		p.rows[i] = rowFor(ch)
	}
	v := p.view
	p.mu.Unlock()

	if v != nil {
		v.RowsReset()
	}
	for _, ch := range channels {
		p.loadLogo(ch)
	}
}

func (p *Presenter) loadLogo(ch models.Channel) {
	p.mu.RLock()
	ctx := p.ctx
	p.mu.RUnlock()
	p.logos.Load(ctx, ch.Logo, func(lg logo.Logo) {
		p.dispatch(func() { p.setLogo(ch.ID, ch.Logo, lg) })
	})
}

// setLogo updates only the row the load was started for. Rows that moved are
// found by id; rows whose logo url changed meanwhile are left alone.
func (p *Presenter) setLogo(id, url string, lg logo.Logo) {
	p.mu.Lock()
	index := -1
	for i, r := range p.rows {
		if r.ChannelID == id && r.LogoURL == url {
			index = i
			break
		}
	}
	if index < 0 {
		p.mu.Unlock()
		return
	}
	p.rows[index].Logo = &lg
	v := p.view
	p.mu.Unlock()
	if v != nil {
		v.RowChanged(index)
	}
}

func rowFor(ch models.Channel) Row {
	return Row{ChannelID: ch.ID, Name: ch.Name, LogoURL: ch.Logo}
}

func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
