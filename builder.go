package parley

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-metrics"
	"github.com/parleyhq/parley/pkg/future"
)

// Builder accumulates the settings of a single connection to the platform
// and initiates the login. Setters return the builder itself so calls can be
// chained; the builder is meant to be filled on one goroutine and consumed
// exactly once by `Login`.
type Builder struct {
	token       string
	hasToken    bool
	accountType AccountType
	lazyLoading bool
	shardID     int
	shardCount  int

	connector  Connector
	logHandler slog.Handler
	msink      metrics.MetricSink

	frozen bool
	lk     sync.Mutex
}

func NewBuilder() *Builder {
	return &Builder{
		shardCount: 1,
	}
}

// SetToken sets the token required for the login process. The token is not
// checked here: an absent token is only reported when `Login` is called.
func (bd *Builder) SetToken(token string) *Builder {
	return bd.mutate(func() {
		bd.token = token
		bd.hasToken = true
	})
}

// SetAccountType sets the type of the account behind the token. The builder
// assumes a bot account by default.
func (bd *Builder) SetAccountType(at AccountType) *Builder {
	return bd.mutate(func() {
		bd.accountType = at
	})
}

// SetLazyLoading defers the bulk transfer of offline-member state for large
// groups until needed. Disabled by default.
func (bd *Builder) SetLazyLoading(enabled bool) *Builder {
	return bd.mutate(func() {
		bd.lazyLoading = enabled
	})
}

// SetShard places this connection in a shard group. id is zero-based and
// must be below count; sharding is disabled when count is 1.
//
// An impossible placement is a programmer error: SetShard panics with an
// error wrapping `ErrInvalidShard` and leaves the stored placement
// unchanged. Both fields are updated together, a later `Login` never
// observes a half-applied pair.
func (bd *Builder) SetShard(id, count int) *Builder {
	return bd.mutate(func() {
		if count < 1 {
			panic(fmt.Errorf("%w: shard count %d is less than 1", ErrInvalidShard, count))
		}
		if id < 0 || id >= count {
			panic(fmt.Errorf("%w: shard id %d is outside [0, %d)", ErrInvalidShard, id, count))
		}
		bd.shardID = id
		bd.shardCount = count
	})
}

// SetConnector replaces the connection layer consuming this builder. By
// default `Login` hands off to a `GatewayConnector` against `GatewayURL`.
func (bd *Builder) SetConnector(conn Connector) *Builder {
	return bd.mutate(func() {
		bd.connector = conn
	})
}

// SetLogHandler specifies which `slog.Handler` the session should use.
func (bd *Builder) SetLogHandler(handler slog.Handler) *Builder {
	return bd.mutate(func() {
		bd.logHandler = handler
	})
}

// SetMetricSink allows you to chose how to collect the metrics emitted by
// the session.
func (bd *Builder) SetMetricSink(ms metrics.MetricSink) *Builder {
	return bd.mutate(func() {
		bd.msink = ms
	})
}

// Login consumes the builder and initiates the connection. It never blocks:
// the returned future settles later with a live `*Session`, or with whatever
// error the connection layer ran into. The only check performed here is that
// a token was provided; without one the future comes back already failed
// with `ErrMissingToken` and the connection layer is not contacted.
//
// The builder is frozen once Login returns: mutating a setter afterwards
// panics with `ErrBuilderFrozen`, and a second Login returns an
// already-failed future instead of racing the first connection.
func (bd *Builder) Login() *future.Future[*Session] {
	bd.lk.Lock()
	if bd.frozen {
		bd.lk.Unlock()
		return future.Failed[*Session](ErrBuilderFrozen)
	}
	bd.frozen = true

	if !bd.hasToken {
		bd.lk.Unlock()
		return future.Failed[*Session](ErrMissingToken)
	}

	params := ConnectParams{
		AccountType: bd.accountType,
		Token:       bd.token,
		LazyLoading: bd.lazyLoading,
		ShardID:     bd.shardID,
		ShardCount:  bd.shardCount,
		LogHandler:  bd.logHandler,
		MetricSink:  bd.msink,
	}
	conn := bd.connector
	bd.lk.Unlock()

	if conn == nil {
		conn = NewGatewayConnector(GatewayURL)
	}

	result := future.New[*Session]()
	conn.Connect(params, result)
	return result
}

func (bd *Builder) mutate(fn func()) *Builder {
	bd.lk.Lock()
	defer bd.lk.Unlock()
	if bd.frozen {
		panic(ErrBuilderFrozen)
	}
	fn()
	return bd
}
