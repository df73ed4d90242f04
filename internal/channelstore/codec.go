package channelstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/voyagen/tvplayer/internal/models"
)

// record is the persisted shape of one channel. Logo and id may be absent in
// records written by older versions.
type record struct {
	ID   string  `json:"id,omitempty"`
	Name *string `json:"name"`
	URL  *string `json:"url"`
	Logo string  `json:"logo"`
}

func encode(channels []models.Channel) (string, error) {
	if channels == nil {
		channels = []models.Channel{}
	}
	data, err := json.Marshal(channels)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decode parses a persisted record. It reports whether any ids had to be assigned.
// "null" decodes to an empty list; anything that is not an array of channel
// objects carrying a name and url is an error. Unknown fields are ignored.
func decode(raw string) ([]models.Channel, bool, error) {
	var recs []*record
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(&recs); err != nil {
		return nil, false, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false, fmt.Errorf("trailing data after channel list")
	}

	channels := make([]models.Channel, 0, len(recs))
	assigned := false
	for i, r := range recs {
		if r == nil {
			return nil, false, fmt.Errorf("entry %d is null", i)
		}
		if r.Name == nil || r.URL == nil {
			return nil, false, fmt.Errorf("entry %d lacks name or url", i)
		}
		ch := models.Channel{ID: r.ID, Name: *r.Name, URL: *r.URL, Logo: r.Logo}
		if ch.ID == "" {
			ch.ID = models.NewChannelID()
			assigned = true
		}
		channels = append(channels, ch)
	}
	return channels, assigned, nil
}
