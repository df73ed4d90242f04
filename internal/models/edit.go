package models

// EditRequest is handed to the channel editor. Fields are empty when adding.
type EditRequest struct {
	ChannelName string `json:"channel_name"`
	ChannelURL  string `json:"channel_url"`
	ChannelLogo string `json:"channel_logo"`
}

// EditResult is returned by the channel editor. OK is false when the user cancelled,
// in which case no mutation happens.
type EditResult struct {
	EditRequest
	OK bool `json:"ok"`
}

// EditRequestFor prefills an editor request from an existing channel.
func EditRequestFor(ch Channel) EditRequest {
	return EditRequest{ChannelName: ch.Name, ChannelURL: ch.URL, ChannelLogo: ch.Logo}
}

// Channel builds the channel content carried by the result. The id is left empty;
// the channel store assigns or keeps it.
func (r EditResult) Channel() Channel {
	return Channel{Name: r.ChannelName, URL: r.ChannelURL, Logo: r.ChannelLogo}
}
