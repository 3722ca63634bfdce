package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/mossy-p/callrelay/internal/metrics"
	"github.com/mossy-p/callrelay/internal/registry"
	"github.com/mossy-p/callrelay/internal/relay"
	"github.com/mossy-p/callrelay/internal/turn"
)

// PresenceMirror lists the sessions mirrored to shared storage.
type PresenceMirror interface {
	Active(ctx context.Context) ([]string, error)
}

// Handler serves the HTTP and WebSocket endpoints.
type Handler struct {
	sessions    *registry.Registry
	negotiation *relay.Negotiation
	chat        *relay.Chat
	issuer      *turn.Issuer
	metrics     *metrics.Metrics
	presence    PresenceMirror
	log         *zap.Logger
}

type Deps struct {
	Sessions    *registry.Registry
	Negotiation *relay.Negotiation
	Chat        *relay.Chat
	Issuer      *turn.Issuer
	Metrics     *metrics.Metrics
	Presence    PresenceMirror
	Logger      *zap.Logger
}

func New(deps Deps) *Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		sessions:    deps.Sessions,
		negotiation: deps.Negotiation,
		chat:        deps.Chat,
		issuer:      deps.Issuer,
		metrics:     deps.Metrics,
		presence:    deps.Presence,
		log:         log,
	}
}
