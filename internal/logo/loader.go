// Package logo loads channel logo images in the background, falling back to a
// placeholder image on any failure.
package logo

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
)

//go:embed placeholder.svg
var placeholderSVG []byte

const (
	defaultWorkers  = 4
	defaultRate     = 10
	defaultTimeout  = 15 * time.Second
	defaultMaxBytes = 2 << 20
)

// Logo is a loaded image, or the placeholder.
type Logo struct {
	Data        []byte
	ContentType string
	Placeholder bool
}

// Placeholder returns the built-in fallback image.
func Placeholder() Logo {
	return Logo{Data: placeholderSVG, ContentType: "image/svg+xml", Placeholder: true}
}

// Config tunes the loader. Zero values use defaults.
type Config struct {
	Workers   int
	Rate      int // fetches per second
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
}

// Loader fetches logos over HTTP with bounded concurrency and a global rate
// limit. Successful results are cached by URL.
type Loader struct {
	cfg     Config
	client  *http.Client
	pool    *ants.Pool
	limiter ratelimit.Limiter
	cache   *xsync.MapOf[string, Logo]
	log     logrus.FieldLogger

	// Load only appends to pending; feed hands jobs to the pool.
	mu      sync.Mutex
	pending []job
	closed  bool
	wake    chan struct{}
	quit    chan struct{}
	fed     chan struct{}
}

type job struct {
	ctx  context.Context
	url  string
	done func(Logo)
}

// NewLoader creates a loader. Call Close to release its workers.
func NewLoader(cfg Config, log logrus.FieldLogger) (*Loader, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Rate <= 0 {
		cfg.Rate = defaultRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("logo pool: %w", err)
	}
	l := &Loader{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		pool:    pool,
		limiter: ratelimit.New(cfg.Rate),
		cache:   xsync.NewMapOf[string, Logo](),
		log:     log,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		fed:     make(chan struct{}),
	}
	go l.feed()
	return l, nil
}

// Close stops the worker pool. Loads still queued complete with the placeholder.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	close(l.quit)
	l.pool.Release()
	<-l.fed
}

// Load resolves url in the background and calls done exactly once with the
// image or the placeholder. Empty and cached URLs complete before Load returns.
func (l *Loader) Load(ctx context.Context, url string, done func(Logo)) {
	if url == "" {
		done(Placeholder())
		return
	}
	if lg, ok := l.cache.Load(url); ok {
		done(lg)
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		done(Placeholder())
		return
	}
	l.pending = append(l.pending, job{ctx: ctx, url: url, done: done})
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// feed moves queued loads into the pool. Submit blocks while every worker is
// busy, which only ever stalls this goroutine.
func (l *Loader) feed() {
	defer close(l.fed)
	for {
		select {
		case <-l.quit:
			l.drain()
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			if len(l.pending) == 0 {
				l.mu.Unlock()
				break
			}
			j := l.pending[0]
			l.pending = l.pending[1:]
			l.mu.Unlock()

			if err := l.pool.Submit(func() { j.done(l.Fetch(j.ctx, j.url)) }); err != nil {
				l.log.WithError(err).WithField("url", j.url).Debug("logo: submit")
				j.done(Placeholder())
			}
		}
	}
}

func (l *Loader) drain() {
	l.mu.Lock()
	rest := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, j := range rest {
		j.done(Placeholder())
	}
}

// Fetch resolves url synchronously. It never fails: errors yield the placeholder.
func (l *Loader) Fetch(ctx context.Context, url string) Logo {
	if url == "" {
		return Placeholder()
	}
	if lg, ok := l.cache.Load(url); ok {
		return lg
	}
	l.limiter.Take()
	lg, err := l.fetch(ctx, url)
	if err != nil {
		l.log.WithError(err).WithField("url", url).Debug("logo: using placeholder")
		return Placeholder()
	}
	l.cache.Store(url, lg)
	return lg
}

func (l *Loader) fetch(ctx context.Context, url string) (Logo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Logo{}, fmt.Errorf("NewRequest: %w", err)
	}
	if l.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", l.cfg.UserAgent)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Logo{}, fmt.Errorf("Do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Logo{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return Logo{}, fmt.Errorf("not an image: %q", ct)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.cfg.MaxBytes+1))
	if err != nil {
		return Logo{}, fmt.Errorf("ReadAll: %w", err)
	}
	if int64(len(data)) > l.cfg.MaxBytes {
		return Logo{}, fmt.Errorf("logo larger than %d bytes", l.cfg.MaxBytes)
	}
	return Logo{Data: data, ContentType: mediaType}, nil
}
