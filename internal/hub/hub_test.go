package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// mockPeer は testify/mock による Peer の実装
type mockPeer struct {
	mock.Mock
	id string
}

func (m *mockPeer) ID() string { return m.id }

func (m *mockPeer) State() State {
	args := m.Called()
	return args.Get(0).(State)
}

func (m *mockPeer) Send(ctx context.Context, msg []byte) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newTestHub() *Hub {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second)
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sends did not complete")
	}
}

func TestHub_BroadcastPrunesTerminalPeers(t *testing.T) {
	h := newTestHub()
	msg := []byte(`{"event":"tick"}`)

	terminal := []State{StateClosed, StateCloseReceived, StateCloseSent, StateAborted}
	const openPeers = 3

	var wg sync.WaitGroup
	var open []*mockPeer
	for i := 0; i < openPeers; i++ {
		p := &mockPeer{id: fmt.Sprintf("open-%d", i)}
		p.On("State").Return(StateOpen)
		p.On("Send", mock.Anything, msg).Return(nil).Run(func(mock.Arguments) { wg.Done() }).Once()
		open = append(open, p)
		h.Register(p)
	}
	var dead []*mockPeer
	for i, st := range terminal {
		p := &mockPeer{id: fmt.Sprintf("dead-%d", i)}
		p.On("State").Return(st)
		dead = append(dead, p)
		h.Register(p)
	}
	assert.Equal(t, openPeers+len(terminal), h.Len())

	wg.Add(openPeers)
	attempts := h.Broadcast(msg)
	waitGroup(t, &wg)

	assert.Equal(t, openPeers, attempts)
	assert.Equal(t, openPeers, h.Len())
	for _, p := range open {
		p.AssertNumberOfCalls(t, "Send", 1)
	}
	for _, p := range dead {
		p.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	}
}

func TestHub_FailingSendDoesNotBlockOthers(t *testing.T) {
	h := newTestHub()
	msg := []byte("hello")

	var wg sync.WaitGroup
	wg.Add(2)

	blocked := make(chan struct{})
	slow := &mockPeer{id: "slow"}
	slow.On("State").Return(StateOpen)
	slow.On("Send", mock.Anything, msg).Return(errors.New("write: broken pipe")).Run(func(mock.Arguments) {
		<-blocked
	})

	failing := &mockPeer{id: "failing"}
	failing.On("State").Return(StateOpen)
	failing.On("Send", mock.Anything, msg).Return(errors.New("write: broken pipe")).Run(func(mock.Arguments) { wg.Done() })

	healthy := &mockPeer{id: "healthy"}
	healthy.On("State").Return(StateOpen)
	healthy.On("Send", mock.Anything, msg).Return(nil).Run(func(mock.Arguments) { wg.Done() })

	h.Register(slow)
	h.Register(failing)
	h.Register(healthy)

	start := time.Now()
	assert.Equal(t, 3, h.Broadcast(msg))
	assert.Less(t, time.Since(start), 500*time.Millisecond, "broadcast must not wait for sends")

	waitGroup(t, &wg)
	close(blocked)
	healthy.AssertNumberOfCalls(t, "Send", 1)
}

func TestHub_PruneOnly(t *testing.T) {
	h := newTestHub()

	alive := &mockPeer{id: "alive"}
	alive.On("State").Return(StateOpen)
	gone := &mockPeer{id: "gone"}
	gone.On("State").Return(StateAborted)

	h.Register(alive)
	h.Register(gone)

	peers := h.Prune()
	assert.Len(t, peers, 1)
	assert.Equal(t, "alive", peers[0].ID())
	assert.Equal(t, 1, h.Len())
}

// closingPeer は Close を持つ Peer
type closingPeer struct {
	mockPeer
}

func (m *closingPeer) Close(reason string) error {
	args := m.Called(reason)
	return args.Error(0)
}

func TestHub_CloseAll(t *testing.T) {
	h := newTestHub()

	open := &closingPeer{mockPeer: mockPeer{id: "open"}}
	open.On("State").Return(StateOpen)
	open.On("Close", "bye").Return(nil).Once()

	closed := &closingPeer{mockPeer: mockPeer{id: "closed"}}
	closed.On("State").Return(StateClosed)

	plain := &mockPeer{id: "plain"}
	plain.On("State").Return(StateOpen)

	h.Register(open)
	h.Register(closed)
	h.Register(plain)

	h.CloseAll("bye")

	assert.Equal(t, 0, h.Len())
	open.AssertExpectations(t)
	closed.AssertNotCalled(t, "Close", mock.Anything)
}

func TestState(t *testing.T) {
	assert.False(t, StateOpen.Terminal())
	for _, st := range []State{StateCloseSent, StateCloseReceived, StateClosed, StateAborted} {
		assert.True(t, st.Terminal(), st.String())
	}
	assert.Equal(t, "close_received", StateCloseReceived.String())
}
