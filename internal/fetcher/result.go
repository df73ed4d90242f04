package fetcher

import "github.com/voyagen/tvplayer/internal/models"

// ParsedEntry is a playlist channel and the line its URL was found on.
type ParsedEntry struct {
	Channel models.Channel
	Line    int
}

// Channels strips parse metadata.
func Channels(entries []ParsedEntry) []models.Channel {
	out := make([]models.Channel, len(entries))
	for i, e := range entries {
		out[i] = e.Channel
	}
	return out
}
