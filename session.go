package parley

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-metrics"
)

// Session is a live, authenticated connection to the gateway. It keeps the
// connection alive with periodic heartbeats until `Close` is called or the
// socket dies. There is no reconnection policy: once a session terminates,
// the caller decides whether to log in again.
type Session struct {
	id         string
	shardID    int
	shardCount int

	ws     *websocket.Conn
	logger *slog.Logger
	msink  metrics.MetricSink

	hbInterval time.Duration
	sequence   atomic.Int64
	// lastBeat is the unix-nano send time of the heartbeat awaiting its ack.
	lastBeat atomic.Int64
	latency  atomic.Int64

	writeLk sync.Mutex

	closed  bool
	closeCh chan struct{}
	lk      sync.Mutex
	wg      sync.WaitGroup
}

type sessionConfig struct {
	ws         *websocket.Conn
	id         string
	shardID    int
	shardCount int
	hbInterval time.Duration
	sequence   int64
	logger     *slog.Logger
	msink      metrics.MetricSink
}

func newSession(cfg sessionConfig) *Session {
	sess := &Session{
		id:         cfg.id,
		shardID:    cfg.shardID,
		shardCount: cfg.shardCount,
		ws:         cfg.ws,
		logger:     cfg.logger,
		msink:      cfg.msink,
		hbInterval: cfg.hbInterval,
		closeCh:    make(chan struct{}),
	}
	sess.sequence.Store(cfg.sequence)

	sess.wg.Add(2)
	go sess.heartbeatLoop()
	go sess.readLoop()
	return sess
}

// ID is the session identifier the gateway assigned during the handshake.
func (sess *Session) ID() string {
	return sess.id
}

// Shard returns the placement of this session.
func (sess *Session) Shard() (id, count int) {
	return sess.shardID, sess.shardCount
}

// Sequence is the last event sequence number seen on this session.
func (sess *Session) Sequence() int64 {
	return sess.sequence.Load()
}

// Latency is the round-trip of the last acknowledged heartbeat. Zero until
// a first ack came back.
func (sess *Session) Latency() time.Duration {
	return time.Duration(sess.latency.Load())
}

// Done is closed once the session has terminated, whatever the cause.
func (sess *Session) Done() <-chan struct{} {
	return sess.closeCh
}

// Close tears the session down: heartbeats stop, a close frame is sent
// best-effort and the socket is released. Close is idempotent.
func (sess *Session) Close() error {
	sess.lk.Lock()
	if sess.closed {
		sess.lk.Unlock()
		return nil
	}
	sess.closed = true
	close(sess.closeCh)
	sess.lk.Unlock()

	sess.msink.IncrCounter(MetricGatewaySessionCloseCount, 1)

	sess.writeLk.Lock()
	_ = sess.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	sess.writeLk.Unlock()

	err := sess.ws.Close()
	sess.wg.Wait()
	return err
}

// closeWith terminates the session from inside one of its own loops.
func (sess *Session) closeWith(cause error) {
	sess.lk.Lock()
	if sess.closed {
		sess.lk.Unlock()
		return
	}
	sess.closed = true
	close(sess.closeCh)
	sess.lk.Unlock()

	sess.msink.IncrCounter(MetricGatewaySessionCloseCount, 1)
	sess.ws.Close()
	if cause != nil {
		sess.logger.Error(
			"session terminated",
			LabelSessionID.L(sess.id),
			LabelError.L(cause),
		)
	}
}

func (sess *Session) heartbeatLoop() {
	defer sess.wg.Done()
	ticker := time.NewTicker(sess.hbInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.closeCh:
			return
		case <-ticker.C:
		}

		if err := sess.sendHeartbeat(); err != nil {
			sess.closeWith(err)
			return
		}
	}
}

func (sess *Session) sendHeartbeat() error {
	pl, err := newPayload(opHeartbeat, sess.sequence.Load())
	if err != nil {
		return err
	}

	sess.writeLk.Lock()
	defer sess.writeLk.Unlock()
	sess.lastBeat.Store(time.Now().UnixNano())
	if err := sess.ws.WriteJSON(pl); err != nil {
		return err
	}
	sess.msink.IncrCounter(MetricGatewayHeartbeatCount, 1)
	return nil
}

func (sess *Session) readLoop() {
	defer sess.wg.Done()
	for {
		var pl payload
		if err := sess.ws.ReadJSON(&pl); err != nil {
			sess.closeWith(err)
			return
		}

		switch pl.Op {
		case opHeartbeatAck:
			if sent := sess.lastBeat.Load(); sent != 0 {
				sess.latency.Store(time.Now().UnixNano() - sent)
			}
			sess.msink.IncrCounter(MetricGatewayHeartbeatAckCount, 1)
		case opHeartbeat:
			// the gateway asked for an immediate beat.
			if err := sess.sendHeartbeat(); err != nil {
				sess.closeWith(err)
				return
			}
		case opDispatch:
			if pl.Sequence != 0 {
				sess.sequence.Store(pl.Sequence)
			}
			// event dispatch belongs to a higher layer, we only track the
			// sequence so heartbeats report it.
			sess.logger.Debug(
				"dispatch received",
				LabelSessionID.L(sess.id),
				slog.String("event_type", pl.Type),
			)
		}
	}
}
