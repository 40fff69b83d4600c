package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

// getOtherConns collects the live connections of every room member except
// excludeId. Members whose connection already dropped are skipped; their
// membership is cleaned up by the disconnect path.
func (s service) getOtherConns(ctx context.Context, roomId, excludeId string) ([]*websocket.Conn, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	conns := make([]*websocket.Conn, 0, len(memberIds))
	for _, memberId := range memberIds {
		if memberId == excludeId {
			continue
		}

		conn, err := s.connRepo.GetConn(memberId)
		if err != nil {
			s.logger.DebugContext(ctx, "member has no live conn", "member_id", memberId)
			continue
		}

		conns = append(conns, conn)
	}

	return conns, nil
}
