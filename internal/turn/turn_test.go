package turn

import (
	"fmt"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossy-p/callrelay/internal/registry"
)

const testSecret = "s3cret"

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestIssuer(t *testing.T, reg *registry.Registry, clock *fakeClock, stun ...string) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(Config{
		Secret:   testSecret,
		Domain:   "turn.test",
		Realm:    "callrelay",
		STUNURLs: stun,
	}, reg, WithClock(clock.now))
	require.NoError(t, err)
	return issuer
}

func TestNewIssuer_Validation(t *testing.T) {
	reg := registry.New()
	tests := []struct {
		name     string
		cfg      Config
		sessions SessionChecker
		wantErr  string
	}{
		{name: "missing secret", cfg: Config{Domain: "d", Realm: "r"}, sessions: reg, wantErr: "secret"},
		{name: "missing domain", cfg: Config{Secret: "s", Realm: "r"}, sessions: reg, wantErr: "domain"},
		{name: "missing realm", cfg: Config{Secret: "s", Domain: "d"}, sessions: reg, wantErr: "realm is required"},
		{name: "realm with colon", cfg: Config{Secret: "s", Domain: "d", Realm: "a:b"}, sessions: reg, wantErr: "must not contain"},
		{name: "missing registry", cfg: Config{Secret: "s", Domain: "d", Realm: "r"}, wantErr: "session checker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIssuer(tt.cfg, tt.sessions)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIssue_Denials(t *testing.T) {
	reg := registry.New()
	issuer := newTestIssuer(t, reg, &fakeClock{t: time.Unix(1_700_000_000, 0)})

	_, err := issuer.Issue("")
	assert.ErrorIs(t, err, ErrMissingSessionID)

	_, err = issuer.Issue("abc123")
	assert.ErrorIs(t, err, ErrUnauthorized)

	reg.Register("abc123")
	reg.Unregister("abc123")
	_, err = issuer.Issue("abc123")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestIssue_ActiveSession(t *testing.T) {
	reg := registry.New()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	issuer := newTestIssuer(t, reg, clock)
	reg.Register("abc123")

	creds, err := issuer.Issue("ABC123")
	require.NoError(t, err)

	wantExpiry := int64(1_700_000_000 + 3600)
	assert.Equal(t, wantExpiry, creds.ExpiresAt)
	assert.Equal(t, fmt.Sprintf("%d:callrelay", wantExpiry), creds.Username)
	assert.Equal(t, Sign([]byte(testSecret), creds.Username), creds.Credential)
	assert.True(t, Verify([]byte(testSecret), creds.Username, creds.Credential, clock.t))
	assert.False(t, Verify([]byte("other"), creds.Username, creds.Credential, clock.t))
	assert.Equal(t, []string{
		"turn:turn.test:3478",
		"turn:turn.test:3478?transport=tcp",
		"turns:turn.test:5349?transport=tcp",
	}, creds.URLs)

	require.Len(t, creds.ICEServers, 1)
	assert.Equal(t, creds.URLs, creds.ICEServers[0].URLs)
	assert.Equal(t, creds.Username, creds.ICEServers[0].Username)
	assert.Equal(t, creds.Credential, creds.ICEServers[0].Credential)
	assert.Equal(t, webrtc.ICECredentialTypePassword, creds.ICEServers[0].CredentialType)
}

func TestIssue_StunServersFirst(t *testing.T) {
	reg := registry.New()
	reg.Register("s1")
	issuer := newTestIssuer(t, reg, &fakeClock{t: time.Unix(1_700_000_000, 0)}, "stun:stun.test:3478")

	creds, err := issuer.Issue("s1")
	require.NoError(t, err)

	require.Len(t, creds.ICEServers, 2)
	assert.Equal(t, []string{"stun:stun.test:3478"}, creds.ICEServers[0].URLs)
	assert.Empty(t, creds.ICEServers[0].Username)
	assert.NotContains(t, creds.URLs, "stun:stun.test:3478")
}

func TestIssue_DifferentTimesDifferentCredentials(t *testing.T) {
	reg := registry.New()
	reg.Register("s1")
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	issuer := newTestIssuer(t, reg, clock)

	first, err := issuer.Issue("s1")
	require.NoError(t, err)

	clock.t = clock.t.Add(90 * time.Second)
	second, err := issuer.Issue("s1")
	require.NoError(t, err)

	assert.NotEqual(t, first.Username, second.Username)
	assert.NotEqual(t, first.Credential, second.Credential)

	secret := []byte(testSecret)
	assert.True(t, Verify(secret, first.Username, first.Credential, clock.t))
	assert.True(t, Verify(secret, second.Username, second.Credential, clock.t))

	afterFirst := time.Unix(first.ExpiresAt+1, 0)
	assert.False(t, Verify(secret, first.Username, first.Credential, afterFirst))
	assert.True(t, Verify(secret, second.Username, second.Credential, afterFirst))
}

func TestSign_Deterministic(t *testing.T) {
	a := Sign([]byte("k"), "1700003600:callrelay")
	b := Sign([]byte("k"), "1700003600:callrelay")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Sign([]byte("k"), "1700003601:callrelay"))
}

func TestVerify_Malformed(t *testing.T) {
	secret := []byte("k")
	now := time.Unix(1_700_000_000, 0)
	tests := []string{"", "nocolon", "abc:callrelay", ":callrelay"}
	for _, username := range tests {
		t.Run(username, func(t *testing.T) {
			assert.False(t, Verify(secret, username, Sign(secret, username), now))
		})
	}

	username := "1700003600:callrelay"
	assert.False(t, Verify(secret, username, Sign(secret, username)+"x", now))
}
