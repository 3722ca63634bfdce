package turn

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

// This package issues coturn-compatible TURN REST credentials
// (static-auth-secret mode):
//
//	username   = <unix_expiry_timestamp>:<realm>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// Any TURN server configured with the same secret validates them without
// contacting this service. Expiry is enforced by the TURN server.

// TTL is the lifetime embedded in every issued username.
const TTL = time.Hour

var (
	ErrMissingSessionID = errors.New("sessionId is required")
	ErrUnauthorized     = errors.New("session is not active")
)

// SessionChecker answers whether a session currently has a connected
// participant.
type SessionChecker interface {
	IsActive(sessionID string) bool
}

// Credentials is the response body handed to the browser.
type Credentials struct {
	Username   string             `json:"username"`
	Credential string             `json:"credential"`
	URLs       []string           `json:"urls"`
	ExpiresAt  int64              `json:"expiresAt"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type Config struct {
	Secret   string
	Domain   string
	Realm    string
	STUNURLs []string
}

type Option func(*Issuer)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// Issuer hands out credentials to callers whose session is live.
type Issuer struct {
	secret   []byte
	realm    string
	urls     []string
	stunURLs []string
	sessions SessionChecker
	now      func() time.Time
}

func NewIssuer(cfg Config, sessions SessionChecker, opts ...Option) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("turn secret is required")
	}
	if cfg.Domain == "" {
		return nil, errors.New("turn domain is required")
	}
	if cfg.Realm == "" {
		return nil, errors.New("turn realm is required")
	}
	if strings.Contains(cfg.Realm, ":") {
		return nil, errors.New("turn realm must not contain ':'")
	}
	if sessions == nil {
		return nil, errors.New("session checker is required")
	}

	i := &Issuer{
		secret:   []byte(cfg.Secret),
		realm:    cfg.Realm,
		urls:     URLs(cfg.Domain),
		stunURLs: append([]string(nil), cfg.STUNURLs...),
		sessions: sessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// URLs lists the relay endpoints advertised for domain.
func URLs(domain string) []string {
	return []string{
		fmt.Sprintf("turn:%s:3478", domain),
		fmt.Sprintf("turn:%s:3478?transport=tcp", domain),
		fmt.Sprintf("turns:%s:5349?transport=tcp", domain),
	}
}

// Issue returns fresh credentials for an active session.
func (i *Issuer) Issue(sessionID string) (*Credentials, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if !i.sessions.IsActive(sessionID) {
		return nil, ErrUnauthorized
	}

	expiresAt := i.now().UTC().Add(TTL).Unix()
	username := fmt.Sprintf("%d:%s", expiresAt, i.realm)
	credential := Sign(i.secret, username)

	urls := append([]string(nil), i.urls...)
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(i.stunURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: append([]string(nil), i.stunURLs...)})
	}
	servers = append(servers, webrtc.ICEServer{
		URLs:           append([]string(nil), urls...),
		Username:       username,
		Credential:     credential,
		CredentialType: webrtc.ICECredentialTypePassword,
	})

	return &Credentials{
		Username:   username,
		Credential: credential,
		URLs:       urls,
		ExpiresAt:  expiresAt,
		ICEServers: servers,
	}, nil
}

// Sign computes the credential for username.
func Sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks credential against username the way a TURN server does:
// the HMAC must match and the embedded expiry must not have passed.
func Verify(secret []byte, username, credential string, now time.Time) bool {
	expiry, _, ok := strings.Cut(username, ":")
	if !ok {
		return false
	}
	ts, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return false
	}
	if now.Unix() > ts {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, username)), []byte(credential))
}
