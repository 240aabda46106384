package app

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameLog struct {
	mu     sync.Mutex
	frames []string
}

func (l *frameLog) add(frame []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, string(frame))
}

func (l *frameLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.frames...)
}

func startHub(t *testing.T, cfg WebsocketServerConfig) (*WebsocketServer, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewWebsocketServer(cfg)
	r := gin.New()
	r.GET("/ws", hub.Run())
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws://" + strings.TrimPrefix(srv.URL, "http://") + "/ws"
}

func dial(t *testing.T, addr, token string) *WebsocketPeer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := DialWebsocket(ctx, WebsocketPeerConfig{Addr: addr, Token: token})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestHubRelaysFramesToOtherPeers(t *testing.T) {
	tm := NewTokenManager(TokenConfig{SecretKey: "k"})
	hub, addr := startHub(t, WebsocketServerConfig{Tokens: tm})

	var local frameLog
	cancel := hub.OnFrame(local.add)
	defer cancel()

	aliceToken, _ := tm.Generate(ActorEntity{ActorID: "alice", Role: "player"})
	bobToken, _ := tm.Generate(ActorEntity{ActorID: "bob", Role: "player"})
	alice := dial(t, addr, aliceToken)
	bob := dial(t, addr, bobToken)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	var atAlice, atBob frameLog
	alice.OnFrame(atAlice.add)
	bob.OnFrame(atBob.add)

	require.NoError(t, alice.Send([]byte(`updateDrawing|{"noteId":"n1"}`)))

	require.Eventually(t, func() bool { return len(atBob.all()) == 1 && len(local.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, `updateDrawing|{"noteId":"n1"}`, atBob.all()[0])
	assert.Equal(t, atBob.all(), local.all())
	assert.Empty(t, atAlice.all())

	// 服务端发出的帧到达所有客户端
	require.NoError(t, hub.Send([]byte(`documentChanged|{}`)))
	require.Eventually(t, func() bool { return len(atAlice.all()) == 1 && len(atBob.all()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, local.all(), 1)
}

func TestHubRejectsBadToken(t *testing.T) {
	tm := NewTokenManager(TokenConfig{SecretKey: "k"})
	_, addr := startHub(t, WebsocketServerConfig{Tokens: tm})

	forged, _ := NewTokenManager(TokenConfig{SecretKey: "other"}).Generate(ActorEntity{ActorID: "mallory"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := DialWebsocket(ctx, WebsocketPeerConfig{Addr: addr, Token: forged})
	assert.True(t, errors.Is(err, ErrAuthorizationRejected))
}

func TestHubIgnoresUnauthorizedFrames(t *testing.T) {
	tm := NewTokenManager(TokenConfig{SecretKey: "k"})
	hub, addr := startHub(t, WebsocketServerConfig{Tokens: tm})

	var local frameLog
	hub.OnFrame(local.add)

	anon := dial(t, addr, "")
	require.NoError(t, anon.Send([]byte(`deleteDrawing|{"noteId":"n1"}`)))
	assert.Never(t, func() bool { return len(local.all()) > 0 }, 200*time.Millisecond, 20*time.Millisecond)
	assert.Equal(t, 0, hub.Count())
}

func TestHubVerifyRejectsFrame(t *testing.T) {
	hub, addr := startHub(t, WebsocketServerConfig{
		Verify: func(c *WebsocketClient, frame []byte) error {
			if strings.HasPrefix(string(frame), "deleteDrawing|") {
				return errors.New("not allowed")
			}
			return nil
		},
	})

	var local frameLog
	hub.OnFrame(local.add)

	peer := dial(t, addr, "")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, peer.Send([]byte(`deleteDrawing|{}`)))
	require.NoError(t, peer.Send([]byte(`updateDrawing|{}`)))

	require.Eventually(t, func() bool { return len(local.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{`updateDrawing|{}`}, local.all())
}

func TestHubClose(t *testing.T) {
	hub, addr := startHub(t, WebsocketServerConfig{})
	peer := dial(t, addr, "")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	select {
	case <-peer.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("peer not closed")
	}
	assert.ErrorIs(t, hub.Send([]byte("x|{}")), ErrHubClosed)
	assert.ErrorIs(t, peer.Send([]byte("x|{}")), ErrPeerClosed)
}

func TestSplitFrameProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("action before the first separator, payload kept whole", prop.ForAll(
		func(action, payload string) bool {
			if action == "" || strings.Contains(action, "|") {
				return true
			}
			a, p, ok := SplitFrame(joinFrame(action, []byte(payload)))
			return ok && a == action && string(p) == payload
		},
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)

	_, _, ok := SplitFrame([]byte("|payload"))
	assert.False(t, ok)
	_, _, ok = SplitFrame([]byte("noseparator"))
	assert.False(t, ok)
}
