package parley

import (
	"encoding/json"
	"fmt"
)

// Gateway opcodes.
const (
	opDispatch     = 0
	opHeartbeat    = 1
	opIdentify     = 2
	opHello        = 10
	opHeartbeatAck = 11
)

// Close codes the gateway uses to reject a session during the handshake.
const (
	closeAuthenticationFailed = 4004
	closeInvalidShard         = 4010
)

const eventReady = "READY"

// payload is the envelope every gateway message travels in.
type payload struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence int64           `json:"s,omitempty"`
	Type     string          `json:"t,omitempty"`
}

func newPayload(op int, data any) (payload, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return payload{}, fmt.Errorf("%w: encoding op %d: %w", ErrGatewayProtocol, op, err)
	}
	return payload{Op: op, Data: raw}, nil
}

type helloData struct {
	// HeartbeatInterval is in milliseconds.
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type identifyData struct {
	Token       string             `json:"token"`
	Shard       [2]int             `json:"shard"`
	LazyLoading bool               `json:"lazy_loading"`
	Properties  identifyProperties `json:"properties"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Library string `json:"library"`
}

type readyData struct {
	SessionID string `json:"session_id"`
}
