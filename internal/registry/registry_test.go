package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) SessionStarted(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "start:"+id)
}

func (o *recordingObserver) SessionEnded(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "end:"+id)
}

func (o *recordingObserver) getEvents() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func TestRegistry_Sequences(t *testing.T) {
	tests := []struct {
		name       string
		ops        []string
		wantActive bool
		wantCount  int
	}{
		{name: "empty", ops: nil, wantActive: false, wantCount: 0},
		{name: "single register", ops: []string{"r"}, wantActive: true, wantCount: 1},
		{name: "register then unregister", ops: []string{"r", "u"}, wantActive: false, wantCount: 0},
		{name: "two registers one unregister", ops: []string{"r", "r", "u"}, wantActive: true, wantCount: 1},
		{name: "unregister before register", ops: []string{"u", "r"}, wantActive: true, wantCount: 1},
		{name: "extra unregisters clamp at zero", ops: []string{"r", "u", "u", "u"}, wantActive: false, wantCount: 0},
		{name: "underflow then register", ops: []string{"r", "u", "u", "r"}, wantActive: true, wantCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			for _, op := range tt.ops {
				switch op {
				case "r":
					r.Register("s1")
				case "u":
					r.Unregister("s1")
				}
			}

			assert.Equal(t, tt.wantActive, r.IsActive("s1"))
			assert.Equal(t, tt.wantCount, r.Count("s1"))
		})
	}
}

func TestRegistry_UnregisterUnknownCreatesNothing(t *testing.T) {
	r := New()

	r.Unregister("ghost")

	assert.False(t, r.IsActive("ghost"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := New()

	r.Register("ABC123")
	assert.True(t, r.IsActive("abc123"))
	assert.True(t, r.IsActive("Abc123"))

	r.Register("abc123")
	assert.Equal(t, 2, r.Count("ABC123"))
	assert.Equal(t, 1, r.Len())

	r.Unregister("aBc123")
	r.Unregister("ABC123")
	assert.False(t, r.IsActive("abc123"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SessionsAreIndependent(t *testing.T) {
	r := New()

	r.Register("s1")
	r.Register("s2")
	r.Unregister("s1")

	assert.False(t, r.IsActive("s1"))
	assert.True(t, r.IsActive("s2"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ObserverTransitions(t *testing.T) {
	obs := &recordingObserver{}
	r := New(obs)

	r.Register("S1")
	r.Register("s1")
	r.Unregister("s1")
	r.Unregister("s1")
	r.Unregister("s1")

	assert.Equal(t, []string{"start:s1", "end:s1"}, obs.getEvents())
}

func TestRegistry_ConcurrentBalanced(t *testing.T) {
	r := New()
	const workers = 64
	const rounds = 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				r.Register("shared")
				assert.True(t, r.IsActive("shared"))
				assert.GreaterOrEqual(t, r.Count("shared"), 1)
				r.Unregister("shared")
			}
		}()
	}
	wg.Wait()

	assert.False(t, r.IsActive("shared"))
	assert.Equal(t, 0, r.Count("shared"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentRegistersAccumulate(t *testing.T) {
	r := New()
	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register("busy")
		}()
	}
	wg.Wait()
	require.Equal(t, workers, r.Count("busy"))

	for i := 0; i < workers+10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Unregister("busy")
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count("busy"))
	assert.False(t, r.IsActive("busy"))
}
