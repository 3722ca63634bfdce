package relay

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mossy-p/callrelay/internal/metrics"
	"github.com/mossy-p/callrelay/internal/models"
)

var (
	ErrMissingSessionID = errors.New("sessionId is required")
	ErrAlreadyJoined    = errors.New("connection already joined a session")
	ErrClosed           = errors.New("connection is closed")
)

// Registry is the session liveness counter each surface reports attachments
// to.
type Registry interface {
	Register(sessionID string)
	Unregister(sessionID string)
}

type Option func(*surface)

func WithLogger(log *zap.Logger) Option {
	return func(s *surface) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *surface) {
		s.metrics = m
	}
}

// surface carries what the negotiation and chat relays have in common: a hub
// of session groups and the registry every join is counted in.
type surface struct {
	kind     Surface
	hub      *Hub
	sessions Registry
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func newSurface(kind Surface, sessions Registry, opts []Option) *surface {
	s := &surface{
		kind:     kind,
		sessions: sessions,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("surface", string(kind)))
	s.hub = NewHub(kind, s.log)
	return s
}

func (s *surface) attach(conn Conn) *attachment {
	s.metrics.ConnectionOpened(string(s.kind))
	return &attachment{surface: s, conn: conn}
}

func (s *surface) encode(msg any) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("failed to marshal message", zap.Error(err))
		return nil, false
	}
	return data, true
}

func (s *surface) broadcast(sessionID, senderID string, event models.SignalType, msg any) {
	if sessionID == "" {
		return
	}
	data, ok := s.encode(msg)
	if !ok {
		return
	}
	delivered, dropped := s.hub.Broadcast(sessionID, senderID, data)
	s.metrics.MessageRelayed(string(s.kind), string(event), delivered, dropped)
}

func (s *surface) deliver(sessionID string, recipients []Conn, event models.SignalType, msg any) {
	if len(recipients) == 0 {
		return
	}
	data, ok := s.encode(msg)
	if !ok {
		return
	}
	delivered, dropped := s.hub.Deliver(sessionID, recipients, data)
	s.metrics.MessageRelayed(string(s.kind), string(event), delivered, dropped)
}

// attachment is the relay's record of one connection on one surface: the
// session it joined, set once, and whether cleanup already ran.
type attachment struct {
	*surface
	conn Conn

	mu        sync.Mutex
	sessionID string
	closed    bool
}

func (a *attachment) join(sessionID string) ([]Conn, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrClosed
	}
	if a.sessionID != "" {
		return nil, ErrAlreadyJoined
	}

	a.sessionID = sessionID
	a.sessions.Register(sessionID)
	others := a.hub.Join(sessionID, a.conn)

	a.log.Info("peer joined session",
		zap.String("session", sessionID),
		zap.String("conn", a.conn.ID()),
		zap.Int("others", len(others)))
	return others, nil
}

// target resolves the session a relay call addresses, defaulting to the
// joined one.
func (a *attachment) target(sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// Session returns the joined session id, or "" before join.
func (a *attachment) Session() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// leave runs cleanup once. It returns the session that was left, or "" when
// the connection never joined or cleanup already happened.
func (a *attachment) leave() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ""
	}
	a.closed = true
	a.metrics.ConnectionClosed(string(a.kind))

	if a.sessionID == "" {
		return ""
	}
	a.hub.Leave(a.sessionID, a.conn)
	a.sessions.Unregister(a.sessionID)

	a.log.Info("peer left session",
		zap.String("session", a.sessionID),
		zap.String("conn", a.conn.ID()))
	return a.sessionID
}
