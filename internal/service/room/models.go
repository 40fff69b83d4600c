package room

// State is the coordinator's snapshot of a room's playback. TrackId is empty
// until an admin has set one; the snapshot is still pushed to joiners so they
// can render a waiting state.
type State struct {
	TrackId     string  `json:"trackId"`
	CurrentTime float64 `json:"currentTime"`
	IsPlaying   bool    `json:"isPlaying"`
	Autoplay    bool    `json:"autoplay"`
	UpdatedAt   int64   `json:"updatedAt"`
}
