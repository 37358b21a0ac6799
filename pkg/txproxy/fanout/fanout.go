// Package fanout dispatches one JSON-RPC request to every target in a group
// concurrently and collects the responses back in target order.
package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cyw0ng95/txproxy/pkg/txproxy/metrics"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/rpcmsg"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/target"
)

// Mode selects how a Group treats a per-target transport failure.
type Mode int

const (
	// RequireAll fails the whole round if any target errors. Used by the
	// validator stage, where a missing vote cannot be treated as a quorum.
	RequireAll Mode = iota
	// BestEffort tolerates per-target errors, logging but not propagating
	// them. Used by the detached executor stage.
	BestEffort
)

// Group is a small, ordered, immutable set of targets sharing a role
// (validator tier or executor tier).
type Group struct {
	Label   string
	Targets []*target.Target
	Mode    Mode
}

// New constructs a Group. targets order is preserved for response selection
// and result ordering.
func New(label string, mode Mode, targets ...*target.Target) *Group {
	return &Group{Label: label, Targets: targets, Mode: mode}
}

type resultWithIndex struct {
	index int
	resp  *rpcmsg.RpcResponse
	err   error
}

// Fan dispatches req to every target concurrently and returns responses in
// Target order, regardless of completion order. Each target receives its
// own cloned request so that per-target URI rewriting on one does not
// affect another. In RequireAll mode, the first per-target error aborts the
// round with that error; in BestEffort mode, per-target errors are recorded
// as nil responses and the caller consults the returned error slice.
func (g *Group) Fan(ctx context.Context, req *rpcmsg.RpcRequest) ([]*rpcmsg.RpcResponse, []error, error) {
	if len(g.Targets) == 0 {
		return nil, nil, fmt.Errorf("fanout group %s has no targets", g.Label)
	}

	results := make(chan resultWithIndex, len(g.Targets))
	var wg sync.WaitGroup
	wg.Add(len(g.Targets))

	latencyVec := metrics.BuilderRequestsLatency
	failedVec := metrics.BuilderFailedRequests
	if g.Label == "l2" {
		latencyVec = metrics.L2RequestsLatency
		failedVec = metrics.L2FailedRequests
	}

	for i, t := range g.Targets {
		go func(index int, tgt *target.Target) {
			defer wg.Done()
			start := time.Now()
			resp, err := tgt.Forward(ctx, req.Clone())
			latencyVec.WithLabelValues(tgt.Name).Observe(time.Since(start).Seconds())
			if err != nil {
				failedVec.WithLabelValues(tgt.Name).Inc()
			}
			results <- resultWithIndex{index: index, resp: resp, err: err}
		}(i, t)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	responses := make([]*rpcmsg.RpcResponse, len(g.Targets))
	errs := make([]error, len(g.Targets))
	for r := range results {
		responses[r.index] = r.resp
		errs[r.index] = r.err
	}

	if g.Mode == RequireAll {
		for i, err := range errs {
			if err != nil {
				return responses, errs, fmt.Errorf("target %s (index %d): %w", g.Targets[i].Name, i, err)
			}
		}
	}

	return responses, errs, nil
}
