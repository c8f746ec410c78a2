// `parley` is a Go client for the Parley real-time chat and voice platform.
//
// ## How it works
//
// Everything starts with a `Builder`. You give it a token, optionally place
// the connection in a *shard* group, and call `Builder.Login`. The call never
// blocks: it returns a `future.Future` which settles later with a live
// `Session` once the gateway handshake went through, or with an error if it
// did not.
//
//	sess, err := parley.NewBuilder().
//		SetToken(token).
//		SetShard(0, 2).
//		Login().
//		Wait(ctx)
//
// Cheap, local misconfiguration (an impossible shard placement) fails right
// at the setter, while anything involving the network (including a missing
// token, checked when the login is initiated) only ever surfaces through the
// returned future. Callers can therefore catch builder misuse at the call
// site and keep asynchronous handling for the part that is actually
// asynchronous.
//
// The gateway leg is a websocket exchanging JSON payloads; the voice media
// leg runs over QUIC datagrams (see `Session.DialVoice`). Reconnection and
// rate limiting policies are deliberately left to the caller: the library
// models a single connection attempt per login.
//
// ## Dependencies
//
// Dependencies are kept minimal:
//
// * [`gorilla/websocket`][dep-ws], for the gateway protocol.
// * [`quic-go/quic-go`][dep-quic], for the voice media transport.
// * [`hashicorp/go-metrics`][dep-met], to let you chose how to collect metrics.
//
// Structured logs go through the standard `log/slog` handler of your choice.
//
// [dep-ws]: https://pkg.go.dev/github.com/gorilla/websocket
// [dep-quic]: https://pkg.go.dev/github.com/quic-go/quic-go
// [dep-met]: https://pkg.go.dev/github.com/hashicorp/go-metrics
package parley
