package client

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/syncroom/server/internal/protocol"
)

// MediaTransport is the local playback element the synchronizer drives.
// Positions and rates mirror the HTML media element model: position in
// seconds, rate 1.0 is normal speed.
type MediaTransport interface {
	Position() float64
	Seek(seconds float64)
	Play()
	Pause()
	SetRate(rate float64)
	Load(trackId string)
}

type iSender interface {
	Send(msg protocol.Message) error
	Latency() time.Duration
}

type SyncConfig struct {
	// DriftThreshold is the drift in seconds beyond which the
	// synchronizer hard-seeks instead of nudging the rate.
	DriftThreshold float64
	// CorrectionWindow is how long a rate nudge is held before the rate
	// resets to 1.0.
	CorrectionWindow time.Duration
	MinRate          float64
	MaxRate          float64
	// Heartbeat interval bounds; the actual interval is latency*4
	// clamped into [Min, Max].
	MinSyncInterval time.Duration
	MaxSyncInterval time.Duration
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		DriftThreshold:   2.0,
		CorrectionWindow: 250 * time.Millisecond,
		MinRate:          0.5,
		MaxRate:          2.0,
		MinSyncInterval:  100 * time.Millisecond,
		MaxSyncInterval:  500 * time.Millisecond,
	}
}

// Synchronizer keeps the local media transport aligned with the room's
// authoritative state. Followers apply discrete events directly and
// reconcile heartbeats with either a hard seek or a bounded rate nudge;
// the admin emits the heartbeats instead.
type Synchronizer struct {
	sender    iSender
	transport MediaTransport
	cfg       SyncConfig
	logger    *slog.Logger

	mu             sync.Mutex
	roomId         string
	isAdmin        bool
	isPlaying      bool
	autoplay       bool
	trackId        string
	rateResetTimer *time.Timer
	heartbeatTimer *time.Timer
	closed         bool
}

func NewSynchronizer(sender iSender, transport MediaTransport, roomId string, cfg SyncConfig, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		sender:    sender,
		transport: transport,
		cfg:       cfg,
		roomId:    roomId,
		logger:    logger,
	}
}

// HandleMessage consumes the inbound event stream. Discrete events are
// ground truth and applied without smoothing; heartbeats go through drift
// reconciliation. The admin ignores echoes of its own authority.
func (s *Synchronizer) HandleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Joined:
		s.setRole(m.IsAdmin)
	case *protocol.RoomState:
		s.applyState(m.TrackId, m.CurrentTime, m.IsPlaying, m.Autoplay)
	case *protocol.Seek:
		s.mu.Lock()
		admin := s.isAdmin
		s.mu.Unlock()
		if !admin {
			s.transport.Seek(m.Time)
		}
	case *protocol.PlayPause:
		s.mu.Lock()
		admin := s.isAdmin
		s.mu.Unlock()
		if !admin {
			s.applyPlaying(m.IsPlaying)
		}
	case *protocol.VideoChange:
		s.applyTrack(m.TrackId)
	case *protocol.AutoplayChange:
		s.mu.Lock()
		if !s.isAdmin {
			s.autoplay = m.Autoplay
		}
		s.mu.Unlock()
	case *protocol.SyncResponse:
		s.mu.Lock()
		admin := s.isAdmin
		s.mu.Unlock()
		if !admin {
			s.reconcile(m)
		}
	case *protocol.Error:
		s.logger.Warn("request denied by coordinator", "message", m.Message)
	case *protocol.CreateRoom, *protocol.JoinRoom, *protocol.LeaveRoom,
		*protocol.SyncRequest, *protocol.Ping, *protocol.Pong:
		// client-to-server traffic, nothing to apply locally
	default:
		s.logger.Debug("unhandled message", "type", msg.MessageType())
	}
}

// reconcile aligns the local position with the latency-compensated
// authoritative one. Large drift gets a hard seek, a visible jump being
// preferable to seconds of audible pitch distortion; small drift converges
// through a bounded rate nudge held for one correction window.
func (s *Synchronizer) reconcile(m *protocol.SyncResponse) {
	s.mu.Lock()
	trackChanged := m.TrackId != "" && m.TrackId != s.trackId
	if trackChanged {
		s.trackId = m.TrackId
	}
	s.autoplay = m.Autoplay
	s.mu.Unlock()

	serverTime := m.Time + s.sender.Latency().Seconds()

	// on a track switch the local position belongs to the old track, so
	// drift against it is meaningless: load the new track, jump straight to
	// the authoritative time and reconcile on the next heartbeat
	if trackChanged {
		s.transport.Load(m.TrackId)
		s.transport.Seek(serverTime)
		s.applyPlaying(m.IsPlaying)
		return
	}

	drift := serverTime - s.transport.Position()

	if math.Abs(drift) > s.cfg.DriftThreshold {
		s.transport.Seek(serverTime)
	} else {
		rate := 1 + drift/s.cfg.CorrectionWindow.Seconds()
		s.transport.SetRate(clamp(rate, s.cfg.MinRate, s.cfg.MaxRate))
		s.scheduleRateReset()
	}

	s.applyPlaying(m.IsPlaying)
}

func (s *Synchronizer) applyState(trackId string, currentTime float64, isPlaying, autoplay bool) {
	if trackId != "" {
		s.applyTrack(trackId)
		s.transport.Seek(currentTime)
	}
	s.applyPlaying(isPlaying)

	s.mu.Lock()
	s.autoplay = autoplay
	s.mu.Unlock()
}

func (s *Synchronizer) applyTrack(trackId string) {
	s.mu.Lock()
	changed := trackId != s.trackId
	s.trackId = trackId
	s.mu.Unlock()

	if changed {
		s.transport.Load(trackId)
		s.transport.Seek(0)
	}
}

func (s *Synchronizer) applyPlaying(isPlaying bool) {
	s.mu.Lock()
	s.isPlaying = isPlaying
	s.mu.Unlock()

	if isPlaying {
		s.transport.Play()
	} else {
		s.transport.Pause()
	}
	s.updateHeartbeat()
}

// NotifyLocalPlayback informs the synchronizer of a locally initiated
// play/pause. The coordinator never echoes the admin's own events back, so
// the heartbeat has to follow local gestures directly.
func (s *Synchronizer) NotifyLocalPlayback(isPlaying bool) {
	s.mu.Lock()
	s.isPlaying = isPlaying
	s.mu.Unlock()
	s.updateHeartbeat()
}

// NotifyLocalTrack informs the synchronizer of a locally selected track so
// subsequent heartbeats carry it.
func (s *Synchronizer) NotifyLocalTrack(trackId string) {
	s.mu.Lock()
	s.trackId = trackId
	s.mu.Unlock()
}

func (s *Synchronizer) setRole(isAdmin bool) {
	s.mu.Lock()
	s.isAdmin = isAdmin
	s.mu.Unlock()
	s.updateHeartbeat()
}

// updateHeartbeat starts the heartbeat when this member is the playing
// admin and guarantees it is stopped in every other state, so no timer
// survives a pause or a role change.
func (s *Synchronizer) updateHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isAdmin && s.isPlaying && !s.closed {
		if s.heartbeatTimer == nil {
			s.heartbeatTimer = time.AfterFunc(s.heartbeatInterval(), s.beat)
		}
	} else if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
		s.heartbeatTimer = nil
	}
}

// heartbeatInterval scales with measured latency: laggier links get fewer,
// coarser heartbeats. Callers hold s.mu.
func (s *Synchronizer) heartbeatInterval() time.Duration {
	interval := s.sender.Latency() * 4
	if interval < s.cfg.MinSyncInterval {
		interval = s.cfg.MinSyncInterval
	}
	if interval > s.cfg.MaxSyncInterval {
		interval = s.cfg.MaxSyncInterval
	}

	return interval
}

func (s *Synchronizer) beat() {
	s.mu.Lock()
	if s.heartbeatTimer == nil || !s.isAdmin || !s.isPlaying || s.closed {
		s.mu.Unlock()
		return
	}

	msg := &protocol.SyncResponse{
		RoomId:    s.roomId,
		Time:      s.transport.Position(),
		IsPlaying: true,
		TrackId:   s.trackId,
		Autoplay:  s.autoplay,
	}
	s.heartbeatTimer = time.AfterFunc(s.heartbeatInterval(), s.beat)
	s.mu.Unlock()

	if err := s.sender.Send(msg); err != nil {
		s.logger.Debug("failed to send heartbeat", "error", err)
	}
}

func (s *Synchronizer) scheduleRateReset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rateResetTimer != nil {
		s.rateResetTimer.Stop()
	}
	s.rateResetTimer = time.AfterFunc(s.cfg.CorrectionWindow, func() {
		s.transport.SetRate(1.0)
	})
}

// Close cancels all recurring work. The synchronizer must not tick after
// teardown.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
		s.heartbeatTimer = nil
	}
	if s.rateResetTimer != nil {
		s.rateResetTimer.Stop()
		s.rateResetTimer = nil
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}

	return v
}
