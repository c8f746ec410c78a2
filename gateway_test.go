package parley

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// newFakeGateway spins up a websocket endpoint driven by handler. The
// handler runs on the server goroutine so it must not use require; tests
// assert on what they observe client-side or through channels.
func newFakeGateway(t *testing.T, handler func(ws *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		handler(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func writeHello(ws *websocket.Conn, intervalMs int64) error {
	pl, err := newPayload(opHello, helloData{HeartbeatInterval: intervalMs})
	if err != nil {
		return err
	}
	return ws.WriteJSON(pl)
}

func writeReady(ws *websocket.Conn, sessionID string) error {
	pl, err := newPayload(opDispatch, readyData{SessionID: sessionID})
	if err != nil {
		return err
	}
	pl.Type = eventReady
	pl.Sequence = 1
	return ws.WriteJSON(pl)
}

func TestGatewayConnector_Handshake(t *testing.T) {
	identCh := make(chan identifyData, 1)
	url := newFakeGateway(t, func(ws *websocket.Conn) {
		// leave the caller a window to observe the pending future.
		time.Sleep(50 * time.Millisecond)
		if err := writeHello(ws, 100); err != nil {
			return
		}

		var pl payload
		if err := ws.ReadJSON(&pl); err != nil || pl.Op != opIdentify {
			return
		}
		var ident identifyData
		if err := json.Unmarshal(pl.Data, &ident); err != nil {
			return
		}
		identCh <- ident

		if err := writeReady(ws, "sess-1"); err != nil {
			return
		}

		for {
			var hb payload
			if err := ws.ReadJSON(&hb); err != nil {
				return
			}
			if hb.Op == opHeartbeat {
				_ = ws.WriteJSON(payload{Op: opHeartbeatAck})
			}
		}
	})

	fut := NewBuilder().
		SetToken("abc").
		SetLazyLoading(true).
		SetShard(1, 2).
		SetConnector(&GatewayConnector{URL: url, DialTimeout: 5 * time.Second}).
		Login()

	require.False(t, fut.Settled(), "Login must return before the handshake completes")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sess, err := fut.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "sess-1", sess.ID())
	id, count := sess.Shard()
	require.Equal(t, 1, id)
	require.Equal(t, 2, count)

	ident := <-identCh
	require.Equal(t, "Bot abc", ident.Token, "bot tokens carry the Bot prefix")
	require.Equal(t, [2]int{1, 2}, ident.Shard)
	require.True(t, ident.LazyLoading)

	require.Eventually(t, func() bool {
		return sess.Latency() > 0
	}, 5*time.Second, 20*time.Millisecond, "heartbeat should have been acked")

	require.NoError(t, sess.Close())
	select {
	case <-sess.Done():
	default:
		t.Fatal("Done must be closed after Close")
	}
}

func TestGatewayConnector_ClientAccountToken(t *testing.T) {
	identCh := make(chan identifyData, 1)
	url := newFakeGateway(t, func(ws *websocket.Conn) {
		if err := writeHello(ws, 45000); err != nil {
			return
		}
		var pl payload
		if err := ws.ReadJSON(&pl); err != nil {
			return
		}
		var ident identifyData
		if err := json.Unmarshal(pl.Data, &ident); err != nil {
			return
		}
		identCh <- ident
		_ = writeReady(ws, "sess-2")
		var next payload
		_ = ws.ReadJSON(&next)
	})

	fut := NewBuilder().
		SetToken("abc").
		SetAccountType(AccountTypeClient).
		SetConnector(&GatewayConnector{URL: url, DialTimeout: 5 * time.Second}).
		Login()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sess, err := fut.Wait(ctx)
	require.NoError(t, err)
	defer sess.Close()

	ident := <-identCh
	require.Equal(t, "abc", ident.Token, "client tokens are sent raw")
}

func TestGatewayConnector_AuthRejected(t *testing.T) {
	url := newFakeGateway(t, func(ws *websocket.Conn) {
		if err := writeHello(ws, 45000); err != nil {
			return
		}
		var pl payload
		if err := ws.ReadJSON(&pl); err != nil {
			return
		}
		_ = ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(closeAuthenticationFailed, "bad token"),
			time.Now().Add(time.Second),
		)
	})

	fut := NewBuilder().
		SetToken("wrong").
		SetConnector(&GatewayConnector{URL: url, DialTimeout: 5 * time.Second}).
		Login()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := fut.Wait(ctx)
	require.ErrorIs(t, err, ErrGatewayAuth)
}

func TestGatewayConnector_ProtocolViolation(t *testing.T) {
	url := newFakeGateway(t, func(ws *websocket.Conn) {
		// anything but HELLO as the first payload is a violation.
		_ = ws.WriteJSON(payload{Op: opHeartbeatAck})
		var pl payload
		_ = ws.ReadJSON(&pl)
	})

	fut := NewBuilder().
		SetToken("abc").
		SetConnector(&GatewayConnector{URL: url, DialTimeout: 5 * time.Second}).
		Login()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := fut.Wait(ctx)
	require.ErrorIs(t, err, ErrGatewayProtocol)
}

func TestGatewayConnector_DialError(t *testing.T) {
	fut := NewBuilder().
		SetToken("abc").
		SetConnector(&GatewayConnector{
			URL:         "ws://127.0.0.1:1",
			DialTimeout: 2 * time.Second,
		}).
		Login()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := fut.Wait(ctx)
	require.ErrorIs(t, err, ErrGatewayDial)
}
