// Package service runs the application's single event loop. The loop owns the
// channel store and the playback selector; hosts talk to it with commands.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/voyagen/tvplayer/internal/cache"
	"github.com/voyagen/tvplayer/internal/channelstore"
	"github.com/voyagen/tvplayer/internal/models"
	"github.com/voyagen/tvplayer/internal/playback"
)

var (
	// ErrUnknownChannel is returned when a command names an id that is not in the list.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrStopped is returned by Dispatch once the loop has exited.
	ErrStopped = errors.New("controller stopped")
)

// MsgLoadReset is shown when the persisted list was corrupt and got cleared.
const MsgLoadReset = "Error loading channels. Resetting."

// Notifier shows transient messages to the user.
type Notifier interface {
	Notify(msg string)
}

type request struct {
	ctx   context.Context
	cmd   Command
	reply chan response
}

type response struct {
	out Outcome
	err error
}

// Controller serializes every store mutation and playback call on one goroutine.
type Controller struct {
	channels *channelstore.Store
	selector *playback.Selector
	notify   Notifier
	log      logrus.FieldLogger

	autoplay bool
	importer ImportOptions
	locks    *cache.Redis

	requests chan request
	posts    chan func()
	done     chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithAutoplay plays the first channel once the player is ready.
func WithAutoplay(on bool) Option {
	return func(c *Controller) { c.autoplay = on }
}

// WithImportOptions sets how playlists are fetched.
func WithImportOptions(opts ImportOptions) Option {
	return func(c *Controller) { c.importer = opts }
}

// WithImportLocks guards imports with Redis locks shared between processes.
func WithImportLocks(r *cache.Redis) Option {
	return func(c *Controller) { c.locks = r }
}

// NewController wires a controller. Run must be called for commands to be processed.
func NewController(channels *channelstore.Store, selector *playback.Selector, notify Notifier, log logrus.FieldLogger, opts ...Option) *Controller {
	c := &Controller{
		channels: channels,
		selector: selector,
		notify:   notify,
		log:      log,
		autoplay: true,
		requests: make(chan request),
		posts:    make(chan func(), 64),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run loads the list, starts the player and processes commands until ctx is
// done. The selector is released on return.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer func() {
		if err := c.selector.Release(); err != nil {
			c.log.WithError(err).Warn("release on shutdown")
		}
	}()

	c.startup(ctx)
	c.log.WithField("channels", c.channels.Len()).Info("controller running")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("controller stopping")
			return nil
		case fn := <-c.posts:
			fn()
		case req := <-c.requests:
			out, err := c.handle(req.ctx, req.cmd)
			req.reply <- response{out: out, err: err}
		}
	}
}

// Post schedules fn on the loop. It never blocks the caller and is safe to
// call from the loop itself. Functions posted after shutdown are dropped.
func (c *Controller) Post(fn func()) {
	select {
	case c.posts <- fn:
		return
	case <-c.done:
		return
	default:
	}
	go func() {
		select {
		case c.posts <- fn:
		case <-c.done:
		}
	}()
}

// Dispatch runs cmd on the loop and waits for its outcome.
// ImportPlaylist fetches off the loop and only merges on it.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) (Outcome, error) {
	if imp, ok := cmd.(ImportPlaylist); ok {
		return c.importPlaylist(ctx, imp)
	}
	return c.send(ctx, cmd)
}

func (c *Controller) send(ctx context.Context, cmd Command) (Outcome, error) {
	req := request{ctx: ctx, cmd: cmd, reply: make(chan response, 1)}
	select {
	case c.requests <- req:
	case <-c.done:
		return Outcome{}, ErrStopped
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp.out, resp.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (c *Controller) startup(ctx context.Context) {
	if _, err := c.channels.Load(ctx); err != nil {
		if errors.Is(err, channelstore.ErrCorruptData) {
			c.notify.Notify(MsgLoadReset)
		} else {
			c.log.WithError(err).Error("load channels")
			c.notify.Notify(fmt.Sprintf("Error loading channels: %v", err))
		}
	}
	if err := c.selector.Start(ctx); err != nil {
		// Already notified; plays become no-ops.
		return
	}
	if c.autoplay {
		if first, ok := c.channels.At(0); ok {
			_, _ = c.play(first)
		}
	}
}

func (c *Controller) handle(ctx context.Context, cmd Command) (Outcome, error) {
	switch cmd := cmd.(type) {
	case AddChannel:
		if !cmd.Result.OK {
			return Outcome{}, nil
		}
		ch, err := c.channels.Append(ctx, cmd.Result.Channel())
		return c.mutated(ch, err)

	case EditChannel:
		if !cmd.Result.OK {
			return Outcome{}, nil
		}
		ch, ok, err := c.channels.Update(ctx, cmd.ID, cmd.Result.Channel())
		if !ok {
			return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownChannel, cmd.ID)
		}
		return c.mutated(ch, err)

	case DeleteChannel:
		ch, ok, err := c.channels.Delete(ctx, cmd.ID)
		if !ok {
			return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownChannel, cmd.ID)
		}
		return c.mutated(ch, err)

	case PlayChannel:
		ch, ok := c.channels.Get(cmd.ID)
		if !ok {
			return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownChannel, cmd.ID)
		}
		return c.play(ch)

	case Snapshot:
		return Outcome{Applied: true, Channels: c.channels.Channels(), Player: c.selector.Status()}, nil

	case mergeImported:
		res, err := Merge(ctx, c.channels, cmd.channels)
		if res.Warning != nil {
			c.notifySaveFailed(res.Warning)
		}
		return Outcome{Applied: res.Added > 0, Import: &res, Warning: res.Warning}, err

	default:
		return Outcome{}, fmt.Errorf("unsupported command %T", cmd)
	}
}

// mutated turns a store result into an outcome. Write failures keep the
// mutation and surface as a warning.
func (c *Controller) mutated(ch models.Channel, err error) (Outcome, error) {
	out := Outcome{Applied: true, Channel: ch}
	if err != nil {
		if !errors.Is(err, channelstore.ErrWriteFailed) {
			return Outcome{}, err
		}
		c.notifySaveFailed(err)
		out.Warning = err
	}
	return out, nil
}

func (c *Controller) play(ch models.Channel) (Outcome, error) {
	media, err := c.selector.Play(ch)
	switch {
	case errors.Is(err, playback.ErrNotConstructed):
		return Outcome{Channel: ch, Player: c.selector.Status()}, nil
	case err != nil:
		return Outcome{Channel: ch, Player: c.selector.Status(), Warning: err}, nil
	}
	return Outcome{Applied: true, Channel: ch, Media: &media, Player: c.selector.Status()}, nil
}

func (c *Controller) importPlaylist(ctx context.Context, cmd ImportPlaylist) (Outcome, error) {
	if c.locks != nil {
		unlock, err := cache.TryLock(ctx, c.locks, cache.ImportLockKey(cmd.URL), cache.ImportLockTTL)
		if err != nil {
			return Outcome{}, err
		}
		defer unlock()
	}
	opts := c.importer
	opts.UseTvgID = cmd.UseTvgID
	channels, err := FetchPlaylist(ctx, cmd.URL, opts)
	if err != nil {
		c.log.WithError(err).WithField("url", cmd.URL).Warn("playlist import failed")
		return Outcome{}, err
	}
	c.log.WithFields(logrus.Fields{"url": cmd.URL, "entries": len(channels)}).Info("playlist fetched")
	return c.send(ctx, mergeImported{channels: channels})
}

func (c *Controller) notifySaveFailed(err error) {
	c.notify.Notify(fmt.Sprintf("Error saving channels: %v", err))
}
