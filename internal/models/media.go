package models

// MediaDescriptor describes what the playback capability should load.
// MimeType is empty when the player should infer the container itself.
type MediaDescriptor struct {
	URI      string `json:"uri"`
	MimeType string `json:"mime_type,omitempty"`
}

// IsHLS reports whether the descriptor is tagged as an HLS playlist.
func (m MediaDescriptor) IsHLS() bool {
	return m.MimeType == MimeTypeHLS
}
