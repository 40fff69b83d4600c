package room

type SetMemberParams struct {
	MemberId string
	RoomId   string
	IsAdmin  bool
	LastSeen int64
}

type RemoveMemberParams struct {
	MemberId string
	RoomId   string
}

type SetPlayerParams struct {
	TrackId     string
	CurrentTime float64
	IsPlaying   bool
	Autoplay    bool
	UpdatedAt   int64
	RoomId      string
}

type UpdatePlayerPositionParams struct {
	CurrentTime float64
	UpdatedAt   int64
	RoomId      string
}

type UpdatePlayerIsPlayingParams struct {
	IsPlaying bool
	UpdatedAt int64
	RoomId    string
}

// UpdatePlayerTrackParams replaces the active track. The position is reset
// to zero by the repository in the same write.
type UpdatePlayerTrackParams struct {
	TrackId   string
	UpdatedAt int64
	RoomId    string
}

type UpdatePlayerAutoplayParams struct {
	Autoplay  bool
	UpdatedAt int64
	RoomId    string
}

type UpdatePlayerStateParams struct {
	TrackId     string
	CurrentTime float64
	IsPlaying   bool
	Autoplay    bool
	UpdatedAt   int64
	RoomId      string
}

type GrantAdminParams struct {
	MemberId string
	RoomId   string
}
