package parley

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"
)

var (
	// MetricGatewayConnectCount counts login attempts which reached the
	// point of dialing the gateway.
	MetricGatewayConnectCount      = []string{"parley", "gateway", "connect", "count"}
	MetricGatewayConnectErrorCount = []string{"parley", "gateway", "connect", "error", "count"}
	MetricGatewayHeartbeatCount    = []string{"parley", "gateway", "heartbeat", "count"}
	MetricGatewayHeartbeatAckCount = []string{"parley", "gateway", "heartbeat", "ack", "count"}
	MetricGatewaySessionCloseCount = []string{"parley", "gateway", "session", "close", "count"}
	MetricVoiceDatagramOutBytes    = []string{"parley", "voice", "datagram", "out", "bytes"}
	MetricVoiceDatagramInBytes     = []string{"parley", "voice", "datagram", "in", "bytes"}
	MetricVoiceDatagramErrorCount  = []string{"parley", "voice", "datagram", "error", "count"}
)

type TelemetryLabel string

var (
	LabelError      TelemetryLabel = "error"
	LabelGatewayURL TelemetryLabel = "gateway_url"
	LabelSessionID  TelemetryLabel = "session_id"
	LabelShardID    TelemetryLabel = "shard_id"
	LabelVoiceAddr  TelemetryLabel = "voice_addr"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}
