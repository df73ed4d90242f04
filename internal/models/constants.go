package models

// Persistence layout of the channel list.
const (
	StorageNamespace      = "channels"
	StorageKeyChannelList = "channel_list"
)

// HLS detection.
const (
	HLSSuffix   = ".m3u8"
	MimeTypeHLS = "application/x-mpegURL"
)
