package parley

import "errors"

var (
	ErrInvalidShard  = errors.New("builder: shard id must be within [0, shard count) and shard count must be at least 1")
	ErrMissingToken  = errors.New("builder: cannot login without a token")
	ErrBuilderFrozen = errors.New("builder: already consumed by Login")

	ErrGatewayDial      = errors.New("gateway: could not reach the gateway")
	ErrGatewayHandshake = errors.New("gateway: handshake failed")
	ErrGatewayAuth      = errors.New("gateway: authentication rejected")
	ErrGatewayProtocol  = errors.New("gateway: protocol violation")
	ErrSessionClosed    = errors.New("gateway: session closed")

	ErrVoiceNoTLSConfig   = errors.New("voice: TlsConfig is required")
	ErrVoiceFrameTooLarge = errors.New("voice: frame was too large could not send")
	ErrVoiceFrameInvalid  = errors.New("voice: invalid media frame")
	ErrVoiceClosed        = errors.New("voice: transport closed")
)
