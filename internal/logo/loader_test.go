package logo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(t *testing.T, cfg Config) *Loader {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	cfg.Rate = 1000
	loader, err := NewLoader(cfg, l)
	require.NoError(t, err)
	t.Cleanup(loader.Close)
	return loader
}

func newLogoServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/big.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(make([]byte, 64))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_LoadsAndCaches(t *testing.T) {
	var hits int32
	srv := newLogoServer(t, &hits)
	l := newTestLoader(t, Config{})

	lg := l.Fetch(context.Background(), srv.URL+"/logo.png")
	assert.False(t, lg.Placeholder)
	assert.Equal(t, "image/png", lg.ContentType)
	assert.Equal(t, []byte("PNGDATA"), lg.Data)

	_ = l.Fetch(context.Background(), srv.URL+"/logo.png")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetch_FailuresFallBackToPlaceholder(t *testing.T) {
	var hits int32
	srv := newLogoServer(t, &hits)
	l := newTestLoader(t, Config{MaxBytes: 16})

	for _, url := range []string{
		"",
		srv.URL + "/missing.png",
		srv.URL + "/page.html",
		srv.URL + "/big.png",
		"http://127.0.0.1:1/unreachable.png",
		"::not a url::",
	} {
		lg := l.Fetch(context.Background(), url)
		assert.True(t, lg.Placeholder, "url %q", url)
		assert.Equal(t, "image/svg+xml", lg.ContentType)
	}
}

func TestLoad_CompletesAsynchronously(t *testing.T) {
	var hits int32
	srv := newLogoServer(t, &hits)
	l := newTestLoader(t, Config{Workers: 2})

	got := make(chan Logo, 2)
	l.Load(context.Background(), srv.URL+"/logo.png", func(lg Logo) { got <- lg })
	l.Load(context.Background(), "", func(lg Logo) { got <- lg })

	var placeholders, images int
	for i := 0; i < 2; i++ {
		select {
		case lg := <-got:
			if lg.Placeholder {
				placeholders++
			} else {
				images++
			}
		case <-time.After(5 * time.Second):
			t.Fatal("logo load did not complete")
		}
	}
	assert.Equal(t, 1, placeholders)
	assert.Equal(t, 1, images)
}

func TestLoad_NeverBlocksWhileWorkersAreBusy(t *testing.T) {
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
	l := newTestLoader(t, Config{Workers: 2})

	const n = 20
	got := make(chan Logo, n)
	start := time.Now()
	for i := 0; i < n; i++ {
		l.Load(context.Background(), fmt.Sprintf("%s/logo-%d.png", srv.URL, i), func(lg Logo) { got <- lg })
	}
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Empty(t, got)

	close(release)
	for i := 0; i < n; i++ {
		select {
		case lg := <-got:
			assert.False(t, lg.Placeholder)
		case <-time.After(10 * time.Second):
			t.Fatalf("only %d of %d logo loads completed", i, n)
		}
	}
}

func TestLoad_AfterCloseYieldsPlaceholder(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	l, err := NewLoader(Config{}, log)
	require.NoError(t, err)
	l.Close()
	l.Close()

	var lg Logo
	l.Load(context.Background(), "http://example.invalid/logo.png", func(got Logo) { lg = got })
	assert.True(t, lg.Placeholder)
}
