package relay

import (
	"github.com/mossy-p/callrelay/internal/models"
)

// Chat fans out text and file messages to the other members of a session.
type Chat struct {
	*surface
}

func NewChat(sessions Registry, opts ...Option) *Chat {
	return &Chat{surface: newSurface(SurfaceChat, sessions, opts)}
}

func (c *Chat) Attach(conn Conn) *ChatPeer {
	return &ChatPeer{attachment: c.attach(conn)}
}

func (c *Chat) Stats() models.GroupStats {
	return c.hub.Stats()
}

// Members returns the size of the session's chat group.
func (c *Chat) Members(sessionID string) int {
	return c.hub.Members(sessionID)
}

type ChatPeer struct {
	*attachment
}

func (p *ChatPeer) Join(sessionID string) error {
	_, err := p.join(sessionID)
	return err
}

func (p *ChatPeer) SendMessage(sessionID, senderID, senderName, text string) {
	p.broadcast(p.target(sessionID), p.conn.ID(), models.ChatTypeMessage, models.ChatMessage{
		Type:       models.ChatTypeMessage,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
	})
}

func (p *ChatPeer) SendFile(sessionID, senderID, senderName string, file models.File) {
	p.broadcast(p.target(sessionID), p.conn.ID(), models.ChatTypeFile, models.ChatMessage{
		Type:       models.ChatTypeFile,
		SenderID:   senderID,
		SenderName: senderName,
		FileName:   file.Name,
		MediaType:  file.MediaType,
		Base64:     file.Base64,
	})
}

// Close is the disconnect hook. It is idempotent and safe before Join.
func (p *ChatPeer) Close() {
	p.leave()
}
