package presenter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagen/tvplayer/internal/channelstore"
	"github.com/voyagen/tvplayer/internal/logo"
	"github.com/voyagen/tvplayer/internal/models"
	"github.com/voyagen/tvplayer/internal/store"
)

// pendingLogos holds completions until the test releases them.
type pendingLogos struct {
	mu      sync.Mutex
	pending map[string][]func(logo.Logo)
}

func newPendingLogos() *pendingLogos {
	return &pendingLogos{pending: map[string][]func(logo.Logo){}}
}

func (p *pendingLogos) Load(_ context.Context, url string, done func(logo.Logo)) {
	p.mu.Lock()
	p.pending[url] = append(p.pending[url], done)
	p.mu.Unlock()
}

func (p *pendingLogos) complete(url string) {
	p.mu.Lock()
	fns := p.pending[url]
	delete(p.pending, url)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(logo.Logo{Data: []byte(url), ContentType: "image/png"})
	}
}

type event struct {
	kind  string
	index int
}

type recordingView struct{ events []event }

func (v *recordingView) RowInserted(i int) { v.events = append(v.events, event{"inserted", i}) }
func (v *recordingView) RowChanged(i int)  { v.events = append(v.events, event{"changed", i}) }
func (v *recordingView) RowRemoved(i int)  { v.events = append(v.events, event{"removed", i}) }
func (v *recordingView) RowsReset()        { v.events = append(v.events, event{"reset", -1}) }

func newBound(t *testing.T, opts ...Option) (*Presenter, *channelstore.Store, *pendingLogos, *recordingView) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cs := channelstore.New(store.NewMemory(models.StorageNamespace), log)
	_, err := cs.Load(context.Background())
	require.NoError(t, err)

	logos := newPendingLogos()
	p := New(logos, opts...)
	p.Bind(context.Background(), cs)
	view := &recordingView{}
	p.SetView(view)
	view.events = nil
	return p, cs, logos, view
}

func names(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestPresenter_MirrorsStoreMutations(t *testing.T) {
	ctx := context.Background()
	p, cs, _, view := newBound(t)

	a, _ := cs.Append(ctx, models.NewChannel("A", "http://a", ""))
	_, _ = cs.Append(ctx, models.NewChannel("B", "http://b", ""))
	_, _ = cs.Append(ctx, models.NewChannel("C", "http://c", ""))
	assert.Equal(t, []string{"A", "B", "C"}, names(p.Rows()))

	_, _, _ = cs.RemoveAt(ctx, 1)
	assert.Equal(t, []string{"A", "C"}, names(p.Rows()))

	_, _, _ = cs.Update(ctx, a.ID, models.NewChannel("A2", "http://a2", ""))
	assert.Equal(t, []string{"A2", "C"}, names(p.Rows()))

	assert.Equal(t, []event{
		{"inserted", 0}, {"inserted", 1}, {"inserted", 2},
		{"removed", 1},
		{"changed", 0},
	}, view.events)
}

func TestPresenter_BindRendersExistingChannels(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cs := channelstore.New(store.NewMemory(models.StorageNamespace), log)
	_, err := cs.Load(ctx)
	require.NoError(t, err)
	_, _ = cs.Append(ctx, models.NewChannel("News", "http://n/live.m3u8", "http://n/logo.png"))

	logos := newPendingLogos()
	p := New(logos)
	p.Bind(ctx, cs)

	rows := p.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "News", rows[0].Name)
	assert.Equal(t, "http://n/logo.png", rows[0].LogoURL)
	assert.Nil(t, rows[0].Logo)
}

func TestPresenter_LogoCompletionAppliesByChannelID(t *testing.T) {
	ctx := context.Background()
	p, cs, logos, view := newBound(t)

	_, _ = cs.Append(ctx, models.NewChannel("A", "http://a", "http://logo/a"))
	_, _ = cs.Append(ctx, models.NewChannel("B", "http://b", "http://logo/b"))
	// A moves away before its logo arrives; B is now at index 0.
	_, _, _ = cs.RemoveAt(ctx, 0)
	view.events = nil

	logos.complete("http://logo/a")
	logos.complete("http://logo/b")

	rows := p.Rows()
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Logo)
	assert.Equal(t, []byte("http://logo/b"), rows[0].Logo.Data)
	assert.Equal(t, []event{{"changed", 0}}, view.events)
}

func TestPresenter_StaleLogoIgnoredAfterURLChange(t *testing.T) {
	ctx := context.Background()
	p, cs, logos, _ := newBound(t)

	ch, _ := cs.Append(ctx, models.NewChannel("A", "http://a", "http://logo/old"))
	_, _, _ = cs.Update(ctx, ch.ID, models.NewChannel("A", "http://a", "http://logo/new"))

	logos.complete("http://logo/old")
	row, ok := p.Row(0)
	require.True(t, ok)
	assert.Nil(t, row.Logo)

	logos.complete("http://logo/new")
	row, _ = p.Row(0)
	require.NotNil(t, row.Logo)
	assert.Equal(t, []byte("http://logo/new"), row.Logo.Data)
}

func TestPresenter_LogoCompletionGoesThroughDispatcher(t *testing.T) {
	ctx := context.Background()
	var queued []func()
	p, cs, logos, _ := newBound(t, WithDispatcher(func(fn func()) { queued = append(queued, fn) }))

	_, _ = cs.Append(ctx, models.NewChannel("A", "http://a", "http://logo/a"))
	logos.complete("http://logo/a")

	row, _ := p.Row(0)
	assert.Nil(t, row.Logo, "logo must not be applied off the dispatcher")
	require.Len(t, queued, 1)
	queued[0]()
	row, _ = p.Row(0)
	assert.NotNil(t, row.Logo)
}

func TestPresenter_Callbacks(t *testing.T) {
	ctx := context.Background()
	var activated []models.Channel
	var contexted []models.Channel
	var anchors []Anchor
	p, cs, _, _ := newBound(t,
		OnActivate(func(ch models.Channel) { activated = append(activated, ch) }),
		OnContextRequest(func(ch models.Channel, a Anchor) {
			contexted = append(contexted, ch)
			anchors = append(anchors, a)
		}),
	)

	_, _ = cs.Append(ctx, models.NewChannel("A", "http://a", ""))
	b, _ := cs.Append(ctx, models.NewChannel("B", "http://b", ""))

	assert.True(t, p.Activate(1))
	assert.True(t, p.ContextRequest(1, "row-1"))
	assert.False(t, p.Activate(5))
	assert.False(t, p.ContextRequest(-1, nil))

	require.Len(t, activated, 1)
	assert.Equal(t, b, activated[0])
	require.Len(t, contexted, 1)
	assert.Equal(t, b, contexted[0])
	assert.Equal(t, Anchor("row-1"), anchors[0])
}

func TestPresenter_ResetReloadsFromStore(t *testing.T) {
	ctx := context.Background()
	p, cs, _, view := newBound(t)
	_, _ = cs.Append(ctx, models.NewChannel("A", "http://a", ""))
	view.events = nil

	_, err := cs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(p.Rows()))
	assert.Equal(t, []event{{"reset", -1}}, view.events)
}

func TestPresenter_AppendsDoNotWaitForSlowLogos(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	log := logrus.New()
	log.SetOutput(io.Discard)
	loader, err := logo.NewLoader(logo.Config{Workers: 1, Rate: 1000}, log)
	require.NoError(t, err)
	t.Cleanup(loader.Close)

	cs := channelstore.New(store.NewMemory(models.StorageNamespace), log)
	_, err = cs.Load(ctx)
	require.NoError(t, err)
	p := New(loader, WithDispatcher(func(func()) {}))
	p.Bind(ctx, cs)

	start := time.Now()
	for i := 0; i < 20; i++ {
		_, err := cs.Append(ctx, models.NewChannel(fmt.Sprintf("C%d", i), "http://c", fmt.Sprintf("%s/%d.png", srv.URL, i)))
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Len(t, p.Rows(), 20)
}
