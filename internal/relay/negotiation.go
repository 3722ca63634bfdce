package relay

import (
	"github.com/mossy-p/callrelay/internal/models"
)

// Negotiation relays offer/answer/ICE frames between the members of a
// session. Payloads are forwarded verbatim.
type Negotiation struct {
	*surface
}

func NewNegotiation(sessions Registry, opts ...Option) *Negotiation {
	return &Negotiation{surface: newSurface(SurfaceNegotiation, sessions, opts)}
}

// Attach starts tracking conn. The returned peer must be closed when the
// connection goes away.
func (n *Negotiation) Attach(conn Conn) *NegotiationPeer {
	return &NegotiationPeer{attachment: n.attach(conn)}
}

func (n *Negotiation) Stats() models.GroupStats {
	return n.hub.Stats()
}

// Members returns the size of the session's negotiation group.
func (n *Negotiation) Members(sessionID string) int {
	return n.hub.Members(sessionID)
}

type NegotiationPeer struct {
	*attachment
}

// Join adds the peer to the session and tells members already present that
// a peer arrived. The earlier joiner is the one prompted to send the offer.
func (p *NegotiationPeer) Join(sessionID string) error {
	others, err := p.join(sessionID)
	if err != nil {
		return err
	}
	p.deliver(sessionID, others, models.SignalTypePeerJoined, models.SignalMessage{
		Type: models.SignalTypePeerJoined,
	})
	return nil
}

func (p *NegotiationPeer) Offer(sessionID, payload string) {
	p.forward(sessionID, models.SignalTypeOffer, payload)
}

func (p *NegotiationPeer) Answer(sessionID, payload string) {
	p.forward(sessionID, models.SignalTypeAnswer, payload)
}

func (p *NegotiationPeer) IceCandidate(sessionID, payload string) {
	p.forward(sessionID, models.SignalTypeCandidate, payload)
}

func (p *NegotiationPeer) forward(sessionID string, kind models.SignalType, payload string) {
	p.broadcast(p.target(sessionID), p.conn.ID(), kind, models.SignalMessage{
		Type:    kind,
		Payload: payload,
	})
}

// Close is the disconnect hook. It is idempotent and safe before Join.
// Remaining members are told the peer left.
func (p *NegotiationPeer) Close() {
	sessionID := p.leave()
	if sessionID == "" {
		return
	}
	p.broadcast(sessionID, p.conn.ID(), models.SignalTypePeerLeft, models.SignalMessage{
		Type: models.SignalTypePeerLeft,
	})
}
