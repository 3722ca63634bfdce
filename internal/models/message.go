package models

// SignalType identifies a frame exchanged over a relay connection.
type SignalType string

const (
	SignalTypeJoin       SignalType = "join"
	SignalTypePeerJoined SignalType = "peerJoined"
	SignalTypePeerLeft   SignalType = "peerLeft"
	SignalTypeOffer      SignalType = "offer"
	SignalTypeAnswer     SignalType = "answer"
	SignalTypeCandidate  SignalType = "iceCandidate"
	SignalTypeError      SignalType = "error"

	ChatTypeSendMessage SignalType = "sendMessage"
	ChatTypeSendFile    SignalType = "sendFile"
	ChatTypeMessage     SignalType = "message"
	ChatTypeFile        SignalType = "file"
)

// SignalMessage is a negotiation frame. Payload carries an SDP offer/answer or
// an ICE candidate as produced by the browser and is never interpreted here.
type SignalMessage struct {
	Type      SignalType `json:"type"`
	SessionID string     `json:"sessionId,omitempty"`
	Payload   string     `json:"payload,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ChatMessage is a chat frame carrying either text or a base64 file.
type ChatMessage struct {
	Type       SignalType `json:"type"`
	SessionID  string     `json:"sessionId,omitempty"`
	SenderID   string     `json:"senderId,omitempty"`
	SenderName string     `json:"senderName,omitempty"`
	Text       string     `json:"text,omitempty"`
	FileName   string     `json:"fileName,omitempty"`
	MediaType  string     `json:"mediaType,omitempty"`
	Base64     string     `json:"base64,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// File is a chat attachment.
type File struct {
	Name      string
	MediaType string
	Base64    string
}
