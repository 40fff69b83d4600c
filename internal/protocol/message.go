// Package protocol defines the wire messages exchanged between clients and
// the room coordinator. Messages are flat JSON objects tagged with a "type"
// field and are decoded into a closed set of variants so every consumer can
// switch over them exhaustively.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Type string

const (
	TypeCreateRoom     Type = "create_room"
	TypeJoinRoom       Type = "join_room"
	TypeLeaveRoom      Type = "leave_room"
	TypeSyncRequest    Type = "sync_request"
	TypeSeek           Type = "seek"
	TypePlayPause      Type = "play_pause"
	TypeVideoChange    Type = "video_change"
	TypeAutoplayChange Type = "autoplay_change"
	TypeSyncResponse   Type = "sync_response"
	TypeRoomState      Type = "room_state"
	TypeJoined         Type = "joined"
	TypePing           Type = "ping"
	TypePong           Type = "pong"
	TypeError          Type = "error"
)

var ErrUnknownType = errors.New("unknown message type")

// Message is implemented by every wire variant.
type Message interface {
	MessageType() Type
}

type CreateRoom struct {
	RoomId  string `json:"roomId" validate:"required"`
	TrackId string `json:"trackId" validate:"required,len=11"`
}

func (CreateRoom) MessageType() Type { return TypeCreateRoom }

type JoinRoom struct {
	RoomId  string `json:"roomId" validate:"required"`
	IsAdmin bool   `json:"isAdmin"`
}

func (JoinRoom) MessageType() Type { return TypeJoinRoom }

type LeaveRoom struct {
	RoomId string `json:"roomId" validate:"required"`
}

func (LeaveRoom) MessageType() Type { return TypeLeaveRoom }

type SyncRequest struct {
	RoomId string `json:"roomId" validate:"required"`
}

func (SyncRequest) MessageType() Type { return TypeSyncRequest }

type Seek struct {
	RoomId string  `json:"roomId" validate:"required"`
	Time   float64 `json:"time" validate:"gte=0"`
}

func (Seek) MessageType() Type { return TypeSeek }

type PlayPause struct {
	RoomId    string `json:"roomId" validate:"required"`
	IsPlaying bool   `json:"isPlaying"`
}

func (PlayPause) MessageType() Type { return TypePlayPause }

type VideoChange struct {
	RoomId  string `json:"roomId" validate:"required"`
	TrackId string `json:"trackId" validate:"required,len=11"`
}

func (VideoChange) MessageType() Type { return TypeVideoChange }

type AutoplayChange struct {
	RoomId   string `json:"roomId" validate:"required"`
	Autoplay bool   `json:"autoplay"`
}

func (AutoplayChange) MessageType() Type { return TypeAutoplayChange }

// SyncResponse is the authoritative heartbeat. The admin emits it
// periodically while playing and the coordinator fans it out verbatim.
type SyncResponse struct {
	RoomId    string  `json:"roomId" validate:"required"`
	Time      float64 `json:"time" validate:"gte=0"`
	IsPlaying bool    `json:"isPlaying"`
	TrackId   string  `json:"trackId"`
	Autoplay  bool    `json:"autoplay"`
}

func (SyncResponse) MessageType() Type { return TypeSyncResponse }

// RoomState is the full snapshot pushed on join and on sync_request. It is
// sent even when no track is set yet so late joiners can render a waiting
// state instead of blocking on the first heartbeat.
type RoomState struct {
	RoomId      string  `json:"roomId"`
	TrackId     string  `json:"trackId"`
	CurrentTime float64 `json:"currentTime"`
	IsPlaying   bool    `json:"isPlaying"`
	Autoplay    bool    `json:"autoplay"`
}

func (RoomState) MessageType() Type { return TypeRoomState }

// Joined acknowledges a join and carries the server-assigned role. The
// coordinator is the sole source of truth for admin assignment, clients only
// request it.
type Joined struct {
	RoomId  string `json:"roomId"`
	IsAdmin bool   `json:"isAdmin"`
}

func (Joined) MessageType() Type { return TypeJoined }

// Ping carries the sender's local send time in unix milliseconds. Pong
// echoes it back so the client can compute the round trip without any
// clock agreement between the peers.
type Ping struct {
	Time int64 `json:"time"`
}

func (Ping) MessageType() Type { return TypePing }

type Pong struct {
	Time int64 `json:"time"`
}

func (Pong) MessageType() Type { return TypePong }

// Error tells a client that a request it is waiting on, such as a join,
// was denied. Silent drops are reserved for events the UI never emits.
type Error struct {
	Message string `json:"message"`
}

func (Error) MessageType() Type { return TypeError }

// Encode marshals a message to its flat wire form with the type tag spliced
// in next to the payload fields.
func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("failed to flatten message: %w", err)
	}
	fields["type"] = m.MessageType()

	return json.Marshal(fields)
}

// Decode parses a wire message into its typed variant. Unknown types return
// ErrUnknownType so dispatchers can log and ignore them.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	decode := func(m Message) (Message, error) {
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", head.Type, err)
		}
		return m, nil
	}

	switch head.Type {
	case TypeCreateRoom:
		return decode(&CreateRoom{})
	case TypeJoinRoom:
		return decode(&JoinRoom{})
	case TypeLeaveRoom:
		return decode(&LeaveRoom{})
	case TypeSyncRequest:
		return decode(&SyncRequest{})
	case TypeSeek:
		return decode(&Seek{})
	case TypePlayPause:
		return decode(&PlayPause{})
	case TypeVideoChange:
		return decode(&VideoChange{})
	case TypeAutoplayChange:
		return decode(&AutoplayChange{})
	case TypeSyncResponse:
		return decode(&SyncResponse{})
	case TypeRoomState:
		return decode(&RoomState{})
	case TypeJoined:
		return decode(&Joined{})
	case TypePing:
		return decode(&Ping{})
	case TypePong:
		return decode(&Pong{})
	case TypeError:
		return decode(&Error{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}
