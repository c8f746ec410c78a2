package parley

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/quic-go/quic-go"
)

// The voice media leg runs over QUIC datagrams: frames are small, loss is
// acceptable and retransmitting stale audio is worse than dropping it.

const voiceALPN = "parley-voice"

const voiceFrameHeaderLen = 13

// maxVoicePayloadBytes keeps a full frame within a single conservative
// datagram MTU.
const maxVoicePayloadBytes = 1152

// Media payload kinds.
const (
	VoiceKindOpus uint8 = iota + 1
	VoiceKindSilence
)

// VoiceFrame is one media datagram.
type VoiceFrame struct {
	Kind      uint8
	SSRC      uint32
	Sequence  uint32
	Timestamp uint32
	Payload   []byte
}

func (fr *VoiceFrame) marshal() ([]byte, error) {
	if len(fr.Payload) > maxVoicePayloadBytes {
		return nil, fmt.Errorf("%w: payload is %d bytes", ErrVoiceFrameTooLarge, len(fr.Payload))
	}
	buf := make([]byte, voiceFrameHeaderLen+len(fr.Payload))
	buf[0] = fr.Kind
	binary.BigEndian.PutUint32(buf[1:5], fr.SSRC)
	binary.BigEndian.PutUint32(buf[5:9], fr.Sequence)
	binary.BigEndian.PutUint32(buf[9:13], fr.Timestamp)
	copy(buf[voiceFrameHeaderLen:], fr.Payload)
	return buf, nil
}

func parseVoiceFrame(buf []byte) (VoiceFrame, error) {
	if len(buf) < voiceFrameHeaderLen {
		return VoiceFrame{}, fmt.Errorf("%w: %d bytes is below header size", ErrVoiceFrameInvalid, len(buf))
	}
	return VoiceFrame{
		Kind:      buf[0],
		SSRC:      binary.BigEndian.Uint32(buf[1:5]),
		Sequence:  binary.BigEndian.Uint32(buf[5:9]),
		Timestamp: binary.BigEndian.Uint32(buf[9:13]),
		Payload:   buf[voiceFrameHeaderLen:],
	}, nil
}

// VoiceConfig describes the media endpoint a session was directed to.
type VoiceConfig struct {
	// Addr is the UDP address of the voice endpoint.
	Addr string

	// TlsConfig is required; the voice endpoint only speaks TLS.
	TlsConfig *tls.Config

	// DialTimeout bounds the QUIC handshake. Defaults to 10s.
	DialTimeout time.Duration
}

// VoiceTransport sends and receives media frames over one QUIC connection.
type VoiceTransport struct {
	conn   quic.Connection
	logger *slog.Logger
	msink  metrics.MetricSink

	closed bool
	lk     sync.Mutex
}

// DialVoice brings up the media leg of this session.
func (sess *Session) DialVoice(ctx context.Context, cfg VoiceConfig) (*VoiceTransport, error) {
	if cfg.TlsConfig == nil {
		return nil, ErrVoiceNoTLSConfig
	}

	select {
	case <-sess.closeCh:
		return nil, ErrSessionClosed
	default:
	}

	tlsConf := cfg.TlsConfig.Clone()
	if len(tlsConf.NextProtos) == 0 {
		tlsConf.NextProtos = []string{voiceALPN}
	}

	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := quic.DialAddr(dialCtx, cfg.Addr, tlsConf, &quic.Config{
		EnableDatagrams: true,
	})
	if err != nil {
		return nil, fmt.Errorf("voice: dialing %s: %w", cfg.Addr, err)
	}

	sess.logger.Info(
		"voice transport established",
		LabelSessionID.L(sess.id),
		LabelVoiceAddr.L(cfg.Addr),
	)

	return &VoiceTransport{
		conn:   conn,
		logger: sess.logger,
		msink:  sess.msink,
	}, nil
}

// Send ships one frame as a datagram. Delivery is best-effort.
func (vt *VoiceTransport) Send(fr VoiceFrame) error {
	vt.lk.Lock()
	if vt.closed {
		vt.lk.Unlock()
		return ErrVoiceClosed
	}
	vt.lk.Unlock()

	buf, err := fr.marshal()
	if err != nil {
		return err
	}
	if err := vt.conn.SendDatagram(buf); err != nil {
		vt.msink.IncrCounter(MetricVoiceDatagramErrorCount, 1)
		return fmt.Errorf("voice: sending datagram: %w", err)
	}
	vt.msink.IncrCounter(MetricVoiceDatagramOutBytes, float32(len(buf)))
	return nil
}

// Receive blocks until a frame arrives or ctx expires.
func (vt *VoiceTransport) Receive(ctx context.Context) (VoiceFrame, error) {
	buf, err := vt.conn.ReceiveDatagram(ctx)
	if err != nil {
		vt.lk.Lock()
		closed := vt.closed
		vt.lk.Unlock()
		if closed {
			return VoiceFrame{}, ErrVoiceClosed
		}
		return VoiceFrame{}, fmt.Errorf("voice: receiving datagram: %w", err)
	}
	fr, err := parseVoiceFrame(buf)
	if err != nil {
		vt.msink.IncrCounter(MetricVoiceDatagramErrorCount, 1)
		return VoiceFrame{}, err
	}
	vt.msink.IncrCounter(MetricVoiceDatagramInBytes, float32(len(buf)))
	return fr, nil
}

func (vt *VoiceTransport) Close() error {
	vt.lk.Lock()
	defer vt.lk.Unlock()
	if vt.closed {
		return nil
	}
	vt.closed = true
	return vt.conn.CloseWithError(0, "leaving")
}
