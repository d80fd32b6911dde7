package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/store"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// fakePeer records deliveries and can be told to fail.
type fakePeer struct {
	id       string
	mu       sync.Mutex
	payloads [][]byte
	failWith error
}

func (p *fakePeer) Deliver(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	p.payloads = append(p.payloads, buf)
	return nil
}

func (p *fakePeer) ConnID() string { return p.id }

func (p *fakePeer) delivered() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.payloads...)
}

// fakeSocket is an in-memory Socket driven by the test.
type fakeSocket struct {
	inbound chan []byte
	done    chan struct{}

	mu          sync.Mutex
	frames      [][]byte
	writeErr    error
	failAfter   int
	blockWrites bool
	closed      bool
	closeCode   CloseCode
	closeReason string
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (s *fakeSocket) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-s.done:
		return nil, errors.New("socket closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-s.inbound:
		if !ok {
			return nil, errors.New("client disconnected")
		}
		return data, nil
	}
}

func (s *fakeSocket) WriteFrame(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	if s.blockWrites {
		s.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if s.failAfter > 0 && len(s.frames) >= s.failAfter {
		return errors.New("write: broken pipe")
	}
	if s.closed {
		return errors.New("socket closed")
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.frames = append(s.frames, buf)
	return nil
}

func (s *fakeSocket) Close(code CloseCode, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.closeCode = code
	s.closeReason = reason
	close(s.done)
	return nil
}

func (s *fakeSocket) written() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

func (s *fakeSocket) closeState() (bool, CloseCode, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed, s.closeCode, s.closeReason
}

// fakeGateway is an in-memory Gateway.
type fakeGateway struct {
	mu         sync.Mutex
	nextID     int64
	messages   []*store.Message
	members    map[[2]int64]bool
	activities []string
	saveErr    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{members: make(map[[2]int64]bool)}
}

func (g *fakeGateway) SaveMessage(_ context.Context, msg *store.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return g.saveErr
	}
	g.nextID++
	msg.ID = g.nextID
	msg.CreatedAt = time.Now().UTC()
	stored := *msg
	g.messages = append(g.messages, &stored)
	return nil
}

func (g *fakeGateway) ListRecentMessages(_ context.Context, roomID int64, limit int) ([]*store.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var recent []*store.Message
	for i := len(g.messages) - 1; i >= 0 && len(recent) < limit; i-- {
		if g.messages[i].RoomID == roomID {
			recent = append(recent, g.messages[i])
		}
	}
	return recent, nil
}

func (g *fakeGateway) IsMember(_ context.Context, userID, roomID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.members[[2]int64{userID, roomID}], nil
}

func (g *fakeGateway) AddMember(_ context.Context, userID, roomID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[[2]int64{userID, roomID}] = true
	return nil
}

func (g *fakeGateway) RecordActivity(_ context.Context, _ int64, activityType string, _ *int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.activities = append(g.activities, activityType)
	return nil
}

func (g *fakeGateway) seedMessages(roomID int64, count int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := 0; i < count; i++ {
		g.nextID++
		g.messages = append(g.messages, &store.Message{
			ID:          g.nextID,
			RoomID:      roomID,
			UserID:      1,
			Username:    "seed",
			Content:     "msg",
			MessageType: store.MessageTypeText,
			CreatedAt:   time.Now().UTC(),
		})
	}
}

func (g *fakeGateway) recordedActivities() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.activities...)
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
