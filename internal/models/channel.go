package models

import "github.com/google/uuid"

// Channel represents a single playable stream entry (name, url, optional logo image).
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Logo string `json:"logo"`
}

// NewChannel returns a channel with a freshly generated id.
func NewChannel(name, url, logo string) Channel {
	return Channel{ID: NewChannelID(), Name: name, URL: url, Logo: logo}
}

// NewChannelID generates a stable identifier for a channel.
func NewChannelID() string {
	return uuid.NewString()
}

// SameContent reports whether c and o carry the same name, url and logo.
// Ids are ignored: two entries created from identical input are SameContent.
func (c Channel) SameContent(o Channel) bool {
	return c.Name == o.Name && c.URL == o.URL && c.Logo == o.Logo
}
