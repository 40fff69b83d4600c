package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/syncroom/server/internal/media"
	"github.com/syncroom/server/internal/protocol"
)

// playbackObserver receives local gestures that never echo back from the
// coordinator. The synchronizer implements it.
type playbackObserver interface {
	NotifyLocalPlayback(isPlaying bool)
	NotifyLocalTrack(trackId string)
}

// TransportController translates local gestures into authoritative
// mutations. Only the admin's gestures change room state; a follower's
// gestures are dropped so the room stays single-writer.
type TransportController struct {
	sender    iSender
	transport MediaTransport
	resolver  media.TrackResolver
	observer  playbackObserver
	notifier  Notifier
	logger    *slog.Logger

	mu        sync.Mutex
	roomId    string
	isAdmin   bool
	isPlaying bool
	autoplay  bool
}

func NewTransportController(sender iSender, transport MediaTransport, resolver media.TrackResolver, observer playbackObserver, notifier Notifier, roomId string, logger *slog.Logger) *TransportController {
	if notifier == nil {
		notifier = NopNotifier{}
	}

	return &TransportController{
		sender:    sender,
		transport: transport,
		resolver:  resolver,
		observer:  observer,
		notifier:  notifier,
		roomId:    roomId,
		logger:    logger,
	}
}

// SetRole follows the server's role acknowledgement. Gestures before the
// first acknowledgement are follower gestures.
func (c *TransportController) SetRole(isAdmin bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isAdmin = isAdmin
}

// TogglePlayPause flips the room between playing and paused, applying the
// change locally first so the admin's own transport never lags the room.
func (c *TransportController) TogglePlayPause() error {
	c.mu.Lock()
	if !c.isAdmin {
		c.mu.Unlock()
		return nil
	}
	c.isPlaying = !c.isPlaying
	isPlaying := c.isPlaying
	roomId := c.roomId
	c.mu.Unlock()

	if isPlaying {
		c.transport.Play()
	} else {
		c.transport.Pause()
	}
	if c.observer != nil {
		c.observer.NotifyLocalPlayback(isPlaying)
	}

	return c.sender.Send(&protocol.PlayPause{
		RoomId:    roomId,
		IsPlaying: isPlaying,
	})
}

func (c *TransportController) SeekTo(seconds float64) error {
	c.mu.Lock()
	if !c.isAdmin {
		c.mu.Unlock()
		return nil
	}
	roomId := c.roomId
	c.mu.Unlock()

	c.transport.Seek(seconds)

	return c.sender.Send(&protocol.Seek{
		RoomId: roomId,
		Time:   seconds,
	})
}

// SelectTrack resolves the reference before committing, so an unplayable
// track is never broadcast to the room.
func (c *TransportController) SelectTrack(ctx context.Context, trackId string) error {
	c.mu.Lock()
	if !c.isAdmin {
		c.mu.Unlock()
		return nil
	}
	roomId := c.roomId
	c.mu.Unlock()

	if _, err := c.resolver.Resolve(ctx, trackId); err != nil {
		c.notifier.Error("Failed to load track. Please try another one.")
		return fmt.Errorf("failed to resolve track: %w", err)
	}

	c.transport.Load(trackId)
	c.transport.Seek(0)
	if c.observer != nil {
		c.observer.NotifyLocalTrack(trackId)
	}

	return c.sender.Send(&protocol.VideoChange{
		RoomId:  roomId,
		TrackId: trackId,
	})
}

func (c *TransportController) SetAutoplay(autoplay bool) error {
	c.mu.Lock()
	if !c.isAdmin {
		c.mu.Unlock()
		return nil
	}
	c.autoplay = autoplay
	roomId := c.roomId
	c.mu.Unlock()

	return c.sender.Send(&protocol.AutoplayChange{
		RoomId:   roomId,
		Autoplay: autoplay,
	})
}
