// Package playback decides how a channel is handed to the playback capability
// and tracks that capability's lifecycle.
package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/voyagen/tvplayer/internal/models"
)

// ErrNotConstructed is returned by Play when there is no usable player. It is
// informational: callers treat it as a no-op.
var ErrNotConstructed = errors.New("player not constructed")

// Player is the opaque media engine.
type Player interface {
	SetMediaItem(m models.MediaDescriptor) error
	Prepare() error
	Play() error
	Release() error
	// AddErrorListener registers fn for asynchronous playback failures.
	AddErrorListener(fn func(error))
}

// Builder constructs a Player.
type Builder func(ctx context.Context) (Player, error)

// Notifier shows transient messages to the user.
type Notifier interface {
	Notify(msg string)
}

// State is the reportable lifecycle state of the selector.
type State string

const (
	StateUnconstructed State = "unconstructed"
	StateReady         State = "ready"
	StatePlaying       State = "playing"
	StateReleased      State = "released"
)

// phase is the selector's lifecycle as a closed set of values. Only ready and
// playing carry a player.
type phase interface{ state() State }

type unconstructed struct{}

type ready struct{ player Player }

type playing struct {
	player  Player
	media   models.MediaDescriptor
	channel models.Channel
}

type released struct{}

func (unconstructed) state() State { return StateUnconstructed }
func (ready) state() State         { return StateReady }
func (playing) state() State       { return StatePlaying }
func (released) state() State      { return StateReleased }

// Status is a snapshot of the selector for hosts.
type Status struct {
	State   State                   `json:"state"`
	Channel *models.Channel         `json:"channel,omitempty"`
	Media   *models.MediaDescriptor `json:"media,omitempty"`
}

// Selector owns the playback capability. Methods are meant to be called from
// one goroutine; the mutex only protects Status readers.
type Selector struct {
	build    Builder
	notify   Notifier
	dispatch func(func())
	log      logrus.FieldLogger

	mu    sync.Mutex
	phase phase
}

// Option configures a Selector.
type Option func(*Selector)

// WithDispatcher routes player error callbacks through dispatch, so they run
// on the host's event goroutine.
func WithDispatcher(dispatch func(func())) Option {
	return func(s *Selector) { s.dispatch = dispatch }
}

// NewSelector returns an unconstructed selector.
func NewSelector(build Builder, notify Notifier, log logrus.FieldLogger, opts ...Option) *Selector {
	s := &Selector{
		build:    build,
		notify:   notify,
		dispatch: func(fn func()) { fn() },
		log:      log,
		phase:    unconstructed{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Describe builds the media descriptor for ch. A url ending in ".m3u8" is
// tagged as HLS; anything else is left for the player to infer.
func Describe(ch models.Channel) models.MediaDescriptor {
	if strings.HasSuffix(ch.URL, models.HLSSuffix) {
		return models.MediaDescriptor{URI: ch.URL, MimeType: models.MimeTypeHLS}
	}
	return models.MediaDescriptor{URI: ch.URL}
}

// Start constructs the player. A construction failure is reported to the user
// and leaves the selector unconstructed; later Play calls are no-ops.
// Start only acts in the unconstructed state.
func (s *Selector) Start(ctx context.Context) error {
	if _, ok := s.current().(unconstructed); !ok {
		return nil
	}
	p, err := s.build(ctx)
	if err != nil {
		s.log.WithError(err).Error("player construction failed")
		s.notify.Notify(fmt.Sprintf("Error initializing player: %v", err))
		return fmt.Errorf("build player: %w", err)
	}
	p.AddErrorListener(func(err error) {
		s.dispatch(func() { s.onPlayerError(err) })
	})
	s.set(ready{player: p})
	s.log.Info("player ready")
	return nil
}

// Play loads ch into the player and starts it, replacing any current item.
// Returns ErrNotConstructed without side effects when no player is available.
func (s *Selector) Play(ch models.Channel) (models.MediaDescriptor, error) {
	var p Player
	switch ph := s.current().(type) {
	case ready:
		p = ph.player
	case playing:
		p = ph.player
	default:
		return models.MediaDescriptor{}, ErrNotConstructed
	}

	media := Describe(ch)
	if err := p.SetMediaItem(media); err != nil {
		return media, s.playFailed(ch, err)
	}
	if err := p.Prepare(); err != nil {
		return media, s.playFailed(ch, err)
	}
	if err := p.Play(); err != nil {
		return media, s.playFailed(ch, err)
	}
	s.set(playing{player: p, media: media, channel: ch})
	s.log.WithFields(logrus.Fields{"channel": ch.Name, "uri": media.URI, "hls": media.IsHLS()}).Info("playing")
	return media, nil
}

// Release frees the player once. It is a no-op unless a player was built and
// has not been released yet. Released is terminal.
func (s *Selector) Release() error {
	var p Player
	switch ph := s.current().(type) {
	case ready:
		p = ph.player
	case playing:
		p = ph.player
	case unconstructed:
		s.set(released{})
		return nil
	default:
		return nil
	}
	s.set(released{})
	if err := p.Release(); err != nil {
		s.log.WithError(err).Warn("player release failed")
		return fmt.Errorf("release player: %w", err)
	}
	s.log.Info("player released")
	return nil
}

// State returns the current lifecycle state.
func (s *Selector) State() State {
	return s.current().state()
}

// Status returns the state and, while playing, the current channel and media.
func (s *Selector) Status() Status {
	st := Status{}
	ph := s.current()
	st.State = ph.state()
	if p, ok := ph.(playing); ok {
		ch, media := p.channel, p.media
		st.Channel = &ch
		st.Media = &media
	}
	return st
}

func (s *Selector) onPlayerError(err error) {
	s.log.WithError(err).Warn("playback error")
	s.notify.Notify(fmt.Sprintf("Player Error: %v", err))
}

func (s *Selector) playFailed(ch models.Channel, err error) error {
	s.onPlayerError(err)
	return fmt.Errorf("play %q: %w", ch.Name, err)
}

func (s *Selector) current() phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Selector) set(p phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}
