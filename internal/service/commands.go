package service

import (
	"github.com/voyagen/tvplayer/internal/models"
	"github.com/voyagen/tvplayer/internal/playback"
)

// Command is a request processed on the controller loop.
type Command interface{ command() }

// AddChannel appends the channel described by an edit result.
type AddChannel struct{ Result models.EditResult }

// EditChannel replaces the content of channel ID.
type EditChannel struct {
	ID     string
	Result models.EditResult
}

// DeleteChannel removes channel ID.
type DeleteChannel struct{ ID string }

// PlayChannel hands channel ID to the playback selector.
type PlayChannel struct{ ID string }

// ImportPlaylist merges an M3U playlist into the list.
type ImportPlaylist struct {
	URL      string
	UseTvgID bool
}

// Snapshot reads the list and player status.
type Snapshot struct{}

// mergeImported carries an already fetched playlist onto the loop.
type mergeImported struct{ channels []models.Channel }

func (AddChannel) command()     {}
func (EditChannel) command()    {}
func (DeleteChannel) command()  {}
func (PlayChannel) command()    {}
func (ImportPlaylist) command() {}
func (Snapshot) command()       {}
func (mergeImported) command()  {}

// Outcome is what a command did.
// Applied is false for cancelled edits, unknown ids and plays without a player.
// Warning carries non-fatal failures that were already notified to the user.
type Outcome struct {
	Applied  bool
	Channel  models.Channel
	Media    *models.MediaDescriptor
	Channels []models.Channel
	Player   playback.Status
	Import   *ImportResult
	Warning  error
}
