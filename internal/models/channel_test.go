package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannel_SameContentIgnoresID(t *testing.T) {
	a := NewChannel("News", "http://a/news.m3u8", "")
	b := NewChannel("News", "http://a/news.m3u8", "")

	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.SameContent(b))
	assert.False(t, a.SameContent(Channel{Name: "News", URL: "http://a/news.m3u8", Logo: "x"}))
}

func TestEditResult_RoundTripsChannelContent(t *testing.T) {
	ch := NewChannel("Sports", "http://b/sports.ts", "http://b/logo.png")
	res := EditResult{EditRequest: EditRequestFor(ch), OK: true}

	got := res.Channel()
	assert.Empty(t, got.ID)
	assert.True(t, got.SameContent(ch))
}
