package room

import (
	"context"
	"fmt"
)

// Ping records that the member is still alive. The latency math happens on
// the client; the coordinator only echoes the timestamp back.
func (s service) Ping(ctx context.Context, memberId string) error {
	if err := s.roomRepo.UpdateMemberLastSeen(ctx, memberId, s.now()); err != nil {
		return fmt.Errorf("failed to update member last seen: %w", err)
	}

	return nil
}

func (s service) GetMemberRoomId(ctx context.Context, memberId string) (string, error) {
	return s.roomRepo.GetMemberRoomId(ctx, memberId)
}
