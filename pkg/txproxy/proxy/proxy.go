// Package proxy implements the executor ("L2") stage: a best-effort
// fan-out invoked only from the detached goroutine the validation layer
// spawns once a round clears without a validator veto.
package proxy

import (
	"context"

	"github.com/cyw0ng95/txproxy/pkg/common"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/fanout"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/rpcmsg"
)

// Layer is the executor stage. Its Handle is directly unit-testable
// independent of the validation layer, even though in production it is only
// ever invoked from validation's detached goroutine and its return value is
// discarded by the caller.
type Layer struct {
	Executors *fanout.Group
	Logger    *common.Logger
}

// New constructs an executor Layer.
func New(executors *fanout.Group, logger *common.Logger) *Layer {
	return &Layer{Executors: executors, Logger: logger}
}

// Handle fans req to every executor target and returns the first response
// in Target order. Per-target failures are logged, not propagated, because
// the executor stage is best-effort.
func (l *Layer) Handle(ctx context.Context, req *rpcmsg.RpcRequest) (*rpcmsg.RpcResponse, error) {
	responses, errs, _ := l.Executors.Fan(ctx, req)

	for i, err := range errs {
		if err != nil {
			l.Logger.Warn("executor target %d failed for method %s: %v", i, req.RpcMethod, err)
		}
	}

	for _, r := range responses {
		if r != nil {
			return r, nil
		}
	}
	return nil, nil
}
