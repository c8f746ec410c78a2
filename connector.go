package parley

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"
	"github.com/parleyhq/parley/pkg/future"
)

// ConnectParams is the frozen snapshot of a `Builder` handed to the
// connection layer when a login is initiated.
type ConnectParams struct {
	AccountType AccountType
	Token       string
	LazyLoading bool
	ShardID     int
	ShardCount  int

	LogHandler slog.Handler
	MetricSink metrics.MetricSink
}

// Connector owns the actual network bring-up of a session.
//
// The contract of `Connect` is:
//
// *Implementations* MUST NOT block: the handshake runs on its own and the
// caller only observes it through `result`.
//
// *Implementations* MUST settle `result` exactly once on every code path,
// either with a live `*Session` or with an error.
type Connector interface {
	Connect(params ConnectParams, result *future.Future[*Session])
}
