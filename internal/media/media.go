// Package media defines the external collaborators playback depends on:
// resolving a track reference to playable metadata, searching a catalog
// and fetching audio. Implementations live outside this module; tests use
// fakes.
package media

import (
	"context"
	"io"
)

type TrackData struct {
	Title        string `json:"title"`
	ThumbnailUrl string `json:"thumbnailUrl"`
	AudioUrl     string `json:"audioUrl"`
}

type SearchResult struct {
	TrackId      string `json:"trackId"`
	Title        string `json:"title"`
	ThumbnailUrl string `json:"thumbnailUrl"`
	ChannelName  string `json:"channelName"`
}

// TrackResolver turns a track id, typically extracted from a pasted URL,
// into playable metadata.
type TrackResolver interface {
	Resolve(ctx context.Context, trackId string) (TrackData, error)
}

// SearchService finds candidate tracks for a free-text query, best match
// first.
type SearchService interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Downloader fetches the audio stream for a resolved track. The caller
// owns closing the stream.
type Downloader interface {
	Download(ctx context.Context, trackId string) (io.ReadCloser, error)
}
