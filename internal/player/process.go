// Package player runs an external media player process (mpv by default) as the
// playback capability.
package player

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/voyagen/tvplayer/internal/models"
	"github.com/voyagen/tvplayer/internal/playback"
)

// Defaults for the mpv player.
const (
	DefaultCommand = "mpv"
	stderrTail     = 2048
)

// DefaultHLSArgs forces the HLS demuxer for playlists tagged as HLS.
var DefaultHLSArgs = []string{"--demuxer-lavf-format=hls"}

// Config describes how to launch the player.
type Config struct {
	Command string   // executable name or path
	Args    []string // args placed before the media URI
	HLSArgs []string // extra args for HLS descriptors
}

// Process is a playback.Player backed by one child process per media item.
type Process struct {
	cfg  Config
	path string
	log  logrus.FieldLogger

	mu        sync.Mutex
	media     *models.MediaDescriptor
	argv      []string
	cmd       *exec.Cmd
	gen       int
	released  bool
	listeners []func(error)
}

// New resolves the player command. It fails when the command is not installed.
func New(cfg Config, log logrus.FieldLogger) (*Process, error) {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("player command %q: %w", cfg.Command, err)
	}
	return &Process{cfg: cfg, path: path, log: log.WithField("player", cfg.Command)}, nil
}

// Builder adapts New to playback.Builder.
func Builder(cfg Config, log logrus.FieldLogger) playback.Builder {
	return func(context.Context) (playback.Player, error) {
		return New(cfg, log)
	}
}

// BuildArgs returns the argument list for media.
func BuildArgs(cfg Config, media models.MediaDescriptor) []string {
	args := make([]string, 0, len(cfg.Args)+len(cfg.HLSArgs)+1)
	args = append(args, cfg.Args...)
	if media.IsHLS() {
		args = append(args, cfg.HLSArgs...)
	}
	return append(args, media.URI)
}

func (p *Process) AddErrorListener(fn func(error)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

func (p *Process) SetMediaItem(m models.MediaDescriptor) error {
	if m.URI == "" {
		return errors.New("empty media uri")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return errors.New("player released")
	}
	p.media = &m
	p.argv = nil
	return nil
}

func (p *Process) Prepare() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.media == nil {
		return errors.New("no media item set")
	}
	p.argv = BuildArgs(p.cfg, *p.media)
	return nil
}

// Play starts the prepared item, stopping the previous process first.
func (p *Process) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return errors.New("player released")
	}
	if p.argv == nil {
		return errors.New("player not prepared")
	}
	p.stopLocked()

	cmd := exec.Command(p.path, p.argv...)
	tail := &tailBuffer{max: stderrTail}
	cmd.Stderr = tail
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.cfg.Command, err)
	}
	p.cmd = cmd
	gen := p.gen
	p.log.WithField("args", p.argv).Debug("player started")

	go p.wait(cmd, gen, tail)
	return nil
}

// Release stops the running process. The Process cannot be used afterwards.
func (p *Process) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
	p.stopLocked()
	return nil
}

// stopLocked kills the running process. Its exit is then ignored by wait.
func (p *Process) stopLocked() {
	p.gen++
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	if err := p.cmd.Process.Kill(); err != nil {
		p.log.WithError(err).Debug("kill player")
	}
	p.cmd = nil
}

func (p *Process) wait(cmd *exec.Cmd, gen int, tail *tailBuffer) {
	err := cmd.Wait()

	p.mu.Lock()
	current := gen == p.gen && !p.released
	if current {
		p.cmd = nil
	}
	listeners := append([]func(error){}, p.listeners...)
	p.mu.Unlock()

	if !current || err == nil {
		return
	}
	msg := strings.TrimSpace(tail.String())
	failure := fmt.Errorf("%s exited: %w", p.cfg.Command, err)
	if msg != "" {
		failure = fmt.Errorf("%s exited: %w: %s", p.cfg.Command, err, msg)
	}
	for _, fn := range listeners {
		fn(failure)
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
