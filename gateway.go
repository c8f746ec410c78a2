package parley

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-metrics"
	"github.com/parleyhq/parley/pkg/future"
)

// GatewayURL is the default websocket endpoint of the platform gateway.
const GatewayURL = "wss://gateway.parley.chat/?v=1&encoding=json"

const defaultDialTimeout = 30 * time.Second

// GatewayConnector is the default `Connector`: it dials the platform
// gateway over a websocket and performs the HELLO / IDENTIFY / READY
// handshake.
type GatewayConnector struct {
	// URL of the gateway, `GatewayURL` when empty.
	URL string

	// DialTimeout bounds the dial and the whole handshake.
	DialTimeout time.Duration

	// Dialer to use, `websocket.DefaultDialer` when nil.
	Dialer *websocket.Dialer
}

func NewGatewayConnector(url string) *GatewayConnector {
	return &GatewayConnector{
		URL:         url,
		DialTimeout: defaultDialTimeout,
	}
}

// Connect implements `Connector`. It returns immediately; the handshake
// runs on its own goroutine and settles result exactly once.
func (gc *GatewayConnector) Connect(params ConnectParams, result *future.Future[*Session]) {
	go gc.handshake(params, result)
}

func (gc *GatewayConnector) handshake(params ConnectParams, result *future.Future[*Session]) {
	logger := slog.Default()
	if params.LogHandler != nil {
		logger = slog.New(params.LogHandler)
	}
	msink := params.MetricSink
	if msink == nil {
		msink = metrics.Default()
	}

	url := gc.URL
	if url == "" {
		url = GatewayURL
	}
	timeout := gc.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	msink.IncrCounter(MetricGatewayConnectCount, 1)

	dialer := gc.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		fail(result, msink, "dial", fmt.Errorf("%w: %w", ErrGatewayDial, err))
		return
	}

	// The whole handshake shares one deadline; it is lifted once the
	// session takes over the socket.
	deadline := time.Now().Add(timeout)
	_ = ws.SetReadDeadline(deadline)
	_ = ws.SetWriteDeadline(deadline)

	var hello payload
	if err := ws.ReadJSON(&hello); err != nil {
		ws.Close()
		fail(result, msink, "hello", closeCause(err))
		return
	}
	if hello.Op != opHello {
		ws.Close()
		fail(result, msink, "hello", fmt.Errorf("%w: expected HELLO, got op %d", ErrGatewayProtocol, hello.Op))
		return
	}
	var hd helloData
	if err := json.Unmarshal(hello.Data, &hd); err != nil || hd.HeartbeatInterval <= 0 {
		ws.Close()
		fail(result, msink, "hello", fmt.Errorf("%w: malformed HELLO", ErrGatewayProtocol))
		return
	}

	ident, err := newPayload(opIdentify, identifyData{
		Token:       params.AccountType.authorization(params.Token),
		Shard:       [2]int{params.ShardID, params.ShardCount},
		LazyLoading: params.LazyLoading,
		Properties: identifyProperties{
			OS:      runtime.GOOS,
			Library: "parley",
		},
	})
	if err != nil {
		ws.Close()
		fail(result, msink, "identify", err)
		return
	}
	if err := ws.WriteJSON(ident); err != nil {
		ws.Close()
		fail(result, msink, "identify", fmt.Errorf("%w: sending IDENTIFY: %w", ErrGatewayHandshake, err))
		return
	}

	for {
		var pl payload
		if err := ws.ReadJSON(&pl); err != nil {
			ws.Close()
			fail(result, msink, "ready", closeCause(err))
			return
		}

		switch {
		case pl.Op == opDispatch && pl.Type == eventReady:
			var rd readyData
			if err := json.Unmarshal(pl.Data, &rd); err != nil {
				ws.Close()
				fail(result, msink, "ready", fmt.Errorf("%w: malformed READY: %w", ErrGatewayProtocol, err))
				return
			}

			_ = ws.SetReadDeadline(time.Time{})
			_ = ws.SetWriteDeadline(time.Time{})

			sess := newSession(sessionConfig{
				ws:         ws,
				id:         rd.SessionID,
				shardID:    params.ShardID,
				shardCount: params.ShardCount,
				hbInterval: time.Duration(hd.HeartbeatInterval) * time.Millisecond,
				sequence:   pl.Sequence,
				logger:     logger,
				msink:      msink,
			})
			if !result.Resolve(sess) {
				// the sink was settled behind our back, do not leak the
				// socket.
				sess.Close()
				return
			}
			logger.Info(
				"gateway session established",
				LabelSessionID.L(rd.SessionID),
				LabelShardID.L(params.ShardID),
			)
			return
		case pl.Op == opHeartbeat:
			// the gateway may probe before READY, answer with a null beat.
			_ = ws.WriteJSON(payload{Op: opHeartbeat})
		default:
			// pre-READY dispatches carry nothing we need.
		}
	}
}

// closeCause maps a websocket close sent during the handshake to the
// matching sentinel.
func closeCause(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case closeAuthenticationFailed:
			return fmt.Errorf("%w: %s", ErrGatewayAuth, ce.Text)
		case closeInvalidShard:
			return fmt.Errorf("%w: %s", ErrInvalidShard, ce.Text)
		}
	}
	return fmt.Errorf("%w: %w", ErrGatewayHandshake, err)
}

func fail(result *future.Future[*Session], msink metrics.MetricSink, stage string, err error) {
	msink.IncrCounterWithLabels(
		MetricGatewayConnectErrorCount,
		1,
		[]metrics.Label{LabelError.M(stage)},
	)
	result.Fail(err)
}
