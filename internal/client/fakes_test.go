package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/syncroom/server/internal/media"
	"github.com/syncroom/server/internal/protocol"
)

type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	inbound  chan []byte
	done     chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.done:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) failWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) written() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := make([]protocol.Message, 0, len(c.writes))
	for _, data := range c.writes {
		msg, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (c *fakeConn) push(msg protocol.Message) {
	data, _ := protocol.Encode(msg)
	c.inbound <- data
}

type fakeDialer struct {
	mu           sync.Mutex
	fail         bool
	connWriteErr error
	dials        int
	conns        []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.fail {
		return nil, errors.New("dial failed")
	}

	conn := newFakeConn()
	conn.writeErr = d.connWriteErr
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) setConnWriteErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connWriteErr = err
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	warnings  []string
	errors    []string
}

func (n *recordingNotifier) Success(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, text)
}

func (n *recordingNotifier) Warning(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, text)
}

func (n *recordingNotifier) Error(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, text)
}

func (n *recordingNotifier) successCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.successes)
}

func (n *recordingNotifier) lastError() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.errors) == 0 {
		return ""
	}
	return n.errors[len(n.errors)-1]
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []protocol.Message
	latency time.Duration
}

func (s *fakeSender) Send(msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) Latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency
}

func (s *fakeSender) sentMessages() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Message(nil), s.sent...)
}

type fakeTransport struct {
	mu        sync.Mutex
	position  float64
	seeks     []float64
	rates     []float64
	loaded    []string
	playing   bool
	playCalls int
}

func (t *fakeTransport) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

func (t *fakeTransport) Seek(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.position = seconds
	t.seeks = append(t.seeks, seconds)
}

func (t *fakeTransport) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playing = true
	t.playCalls++
}

func (t *fakeTransport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playing = false
}

func (t *fakeTransport) SetRate(rate float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates = append(t.rates, rate)
}

func (t *fakeTransport) Load(trackId string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loaded = append(t.loaded, trackId)
}

func (t *fakeTransport) setPosition(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.position = seconds
}

func (t *fakeTransport) recordedSeeks() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]float64(nil), t.seeks...)
}

func (t *fakeTransport) recordedRates() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]float64(nil), t.rates...)
}

func (t *fakeTransport) loadedTracks() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.loaded...)
}

func (t *fakeTransport) isPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

type fakeResolver struct {
	err error
}

func (r *fakeResolver) Resolve(ctx context.Context, trackId string) (media.TrackData, error) {
	if r.err != nil {
		return media.TrackData{}, r.err
	}
	return media.TrackData{Title: "track " + trackId}, nil
}
