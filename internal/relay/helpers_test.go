package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mossy-p/callrelay/internal/models"
)

type mockConn struct {
	id       string
	received [][]byte
	sendErr  error
	mu       sync.Mutex
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.received...)
}

func (m *mockConn) signals(t *testing.T) []models.SignalMessage {
	t.Helper()
	var out []models.SignalMessage
	for _, data := range m.getReceived() {
		var msg models.SignalMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		out = append(out, msg)
	}
	return out
}

func (m *mockConn) chats(t *testing.T) []models.ChatMessage {
	t.Helper()
	var out []models.ChatMessage
	for _, data := range m.getReceived() {
		var msg models.ChatMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		out = append(out, msg)
	}
	return out
}

var errBufferFull = errors.New("buffer full")

// countingRegistry records calls in order so tests can check how often a
// surface registered and unregistered.
type countingRegistry struct {
	mu     sync.Mutex
	counts map[string]int
	calls  []string
}

func newCountingRegistry() *countingRegistry {
	return &countingRegistry{counts: make(map[string]int)}
}

func (r *countingRegistry) Register(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[id]++
	r.calls = append(r.calls, "register:"+id)
}

func (r *countingRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[id]--
	r.calls = append(r.calls, "unregister:"+id)
}

func (r *countingRegistry) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[id]
}

func (r *countingRegistry) getCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
