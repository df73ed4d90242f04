package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voyagen/tvplayer/internal/channelstore"
	"github.com/voyagen/tvplayer/internal/fetcher"
	"github.com/voyagen/tvplayer/internal/models"
)

// ImportOptions configures how playlists are fetched.
type ImportOptions struct {
	UserAgent string
	Timeout   time.Duration
	UseTvgID  bool
}

// ImportResult counts what an import did. Warning is set when at least one
// append could not be persisted.
type ImportResult struct {
	Added   int   `json:"added"`
	Skipped int   `json:"skipped"`
	Warning error `json:"-"`
}

// FetchPlaylist downloads and parses the M3U playlist at url.
func FetchPlaylist(ctx context.Context, url string, opts ImportOptions) ([]models.Channel, error) {
	if url == "" {
		return nil, fmt.Errorf("m3u URL is required")
	}
	entries, err := fetcher.FetchM3U(ctx, url, opts.UserAgent, opts.UseTvgID, opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return fetcher.Channels(entries), nil
}

// Merge appends every channel that is not structurally equal to one already
// in the list, or to an earlier entry of the batch. The batch is persisted with
// one write.
func Merge(ctx context.Context, s *channelstore.Store, channels []models.Channel) (ImportResult, error) {
	var res ImportResult
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("import cancelled: %w", err)
	}
	existing := s.Channels()
	var fresh []models.Channel
	for _, ch := range channels {
		if containsContent(existing, ch) {
			res.Skipped++
			continue
		}
		ch.ID = ""
		existing = append(existing, ch)
		fresh = append(fresh, ch)
	}
	added, err := s.AppendAll(ctx, fresh)
	res.Added = len(added)
	if err != nil {
		if !errors.Is(err, channelstore.ErrWriteFailed) {
			return res, err
		}
		res.Warning = err
	}
	return res, nil
}

func containsContent(list []models.Channel, ch models.Channel) bool {
	for _, c := range list {
		if c.SameContent(ch) {
			return true
		}
	}
	return false
}
