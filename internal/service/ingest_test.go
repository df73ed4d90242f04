package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagen/tvplayer/internal/channelstore"
	"github.com/voyagen/tvplayer/internal/models"
)

func loadedStore(t *testing.T, kv *countingKV) *channelstore.Store {
	t.Helper()
	s := channelstore.New(kv, testLogger())
	_, err := s.Load(context.Background())
	require.NoError(t, err)
	return s
}

func TestMerge_PersistsBatchWithOneWrite(t *testing.T) {
	kv := newKV()
	seed(t, kv, models.NewChannel("A", "http://a", ""))
	s := loadedStore(t, kv)
	before := kv.writes()

	batch := make([]models.Channel, 0, 51)
	batch = append(batch, models.NewChannel("A", "http://a", ""))
	for i := 0; i < 50; i++ {
		batch = append(batch, models.NewChannel("C", "http://c", ""))
	}
	batch[1].URL = "http://c/first"

	res, err := Merge(context.Background(), s, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 49, res.Skipped)
	assert.NoError(t, res.Warning)
	assert.Equal(t, before+1, kv.writes())

	got := s.Channels()
	require.Len(t, got, 3)
	assert.Equal(t, "http://c/first", got[1].URL)
	assert.Equal(t, "http://c", got[2].URL)
}

func TestMerge_WriteFailureBecomesWarning(t *testing.T) {
	kv := newKV()
	s := loadedStore(t, kv)
	kv.setFail(true)

	res, err := Merge(context.Background(), s, []models.Channel{models.NewChannel("A", "http://a", "")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.ErrorIs(t, res.Warning, channelstore.ErrWriteFailed)
	assert.Equal(t, 1, s.Len())
}

func TestMerge_CancelledContextAddsNothing(t *testing.T) {
	kv := newKV()
	s := loadedStore(t, kv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Merge(ctx, s, []models.Channel{models.NewChannel("A", "http://a", "")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.Len())
}
