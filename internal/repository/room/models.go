package room

// Player is the authoritative playback state of a room. It is written only
// through admin-originated events; follower writes never reach this layer.
type Player struct {
	TrackId     string  `redis:"track_id"`
	CurrentTime float64 `redis:"current_time"`
	IsPlaying   bool    `redis:"is_playing"`
	Autoplay    bool    `redis:"autoplay"`
	UpdatedAt   int64   `redis:"updated_at"`
}

type Member struct {
	RoomId   string `redis:"room_id"`
	IsAdmin  bool   `redis:"is_admin"`
	LastSeen int64  `redis:"last_seen"`
}
