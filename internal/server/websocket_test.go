package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hikyaku/internal/hub"
)

// dialWebSocket はテストサーバーへ WebSocket で接続する
func dialWebSocket(t *testing.T, ctx context.Context, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+path, nil)
	require.NoError(t, err)
	return conn
}

func TestWebSocket_BroadcastAndPrune(t *testing.T) {
	connected := make(chan string, 1)
	srv := newTestServer(t, nil, WithHooks(Hooks{
		OnWebSocketConnected: func(conn *hub.Conn) {
			connected <- conn.ID()
		},
	}))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 接続パスは任意
	client := dialWebSocket(t, ctx, ts, "/any/path")
	defer client.CloseNow()

	select {
	case id := <-connected:
		assert.NotEmpty(t, id)
	case <-ctx.Done():
		t.Fatal("接続フックが呼ばれませんでした")
	}
	require.Equal(t, 1, srv.hub.Len())

	n, err := srv.Broadcast(map[string]any{"event": "tick", "n": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	typ, data, err := client.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.JSONEq(t, `{"event":"tick","n":1}`, string(data))

	// 切断した接続は次の一斉送信の前に取り除かれる
	require.NoError(t, client.Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool {
		n, err := srv.Broadcast(map[string]any{"event": "tick"})
		return err == nil && n == 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, srv.hub.Len())
}

func TestWebSocket_MessageHook(t *testing.T) {
	srv := newTestServer(t, nil, WithHooks(Hooks{
		OnWebSocketMessage: func(conn *hub.Conn, typ websocket.MessageType, data []byte) {
			_ = conn.Send(context.Background(), append([]byte("echo:"), data...))
		},
	}))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := dialWebSocket(t, ctx, ts, "/")
	defer client.CloseNow()

	require.NoError(t, client.Write(ctx, websocket.MessageText, []byte("ping")))
	_, data, err := client.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo:ping", string(data))
}

func TestWebSocket_VerificationFailed(t *testing.T) {
	srv := newTestServer(t, nil, WithHooks(Hooks{
		WebSocketVerifiers: []VerifyFunc{
			func(c *gin.Context) bool { return c.Query("token") == "ok" },
		},
		OnWebSocketVerificationFailed: func(c *gin.Context) {
			c.AbortWithStatus(http.StatusUnauthorized)
		},
	}))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, srv.hub.Len())

	client := dialWebSocket(t, ctx, ts, "/?token=ok")
	defer client.CloseNow()
	require.Eventually(t, func() bool { return srv.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_ShutdownClosesClients(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := dialWebSocket(t, ctx, ts, "/")
	defer client.CloseNow()
	require.Eventually(t, func() bool { return srv.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	// クライアント側でも読み続けて Close ハンドシェイクに応答する
	readErr := make(chan error, 1)
	go func() {
		_, _, err := client.Read(ctx)
		readErr <- err
	}()

	srv.hub.CloseAll("server shutdown")

	select {
	case err := <-readErr:
		assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
	case <-ctx.Done():
		t.Fatal("切断されませんでした")
	}
	assert.Equal(t, 0, srv.hub.Len())
}
