package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxPlaylistBytes bounds how much of a playlist response is read.
const maxPlaylistBytes = 32 << 20

// FetchM3U fetches the M3U playlist from url and parses it.
// userAgent is optional; useTvgID controls name fallback (tvg-id vs comma title).
func FetchM3U(ctx context.Context, url string, userAgent string, useTvgID bool, timeout time.Duration) ([]ParsedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	entries, err := ParseM3U(io.LimitReader(resp.Body, maxPlaylistBytes), useTvgID)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return entries, nil
}
