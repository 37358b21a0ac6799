// Package validation implements the validator ("builder") stage: method
// allow-listing, the validator fan-out, response selection, and the
// detached trigger into the executor stage.
package validation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cyw0ng95/txproxy/pkg/common"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/fanout"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/metrics"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/proxy"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/rpcmsg"
)

// DefaultAllowList is the set of substring patterns a method must contain
// to be forwarded. Historical source variants used an exact-match list;
// this substring form is authoritative.
var DefaultAllowList = []string{"eth_", "net_peerCount"}

// Layer is the validator stage. It holds its own configuration plus the
// inner executor service it triggers on success, matching the value-level
// middleware shape described for this pipeline: no virtual dispatch beyond
// the single call-inner edge into the executor layer.
type Layer struct {
	Validators *fanout.Group
	AllowList  []string
	Executor   *proxy.Layer
	Logger     *common.Logger
}

// New constructs a validation Layer. An empty allowList falls back to
// DefaultAllowList.
func New(validators *fanout.Group, allowList []string, executor *proxy.Layer, logger *common.Logger) *Layer {
	if len(allowList) == 0 {
		allowList = DefaultAllowList
	}
	return &Layer{Validators: validators, AllowList: allowList, Executor: executor, Logger: logger}
}

// Handle is the gin.HandlerFunc for the validator stage.
func (l *Layer) Handle(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		metrics.InboundRequests.WithLabelValues("unknown", "body_error").Inc()
		c.String(http.StatusInternalServerError, "failed to read request body")
		return
	}

	req, err := rpcmsg.NewRpcRequest(c.Request.Header.Clone(), c.Request.URL.String(), bodyBytes)
	if err != nil {
		metrics.InboundRequests.WithLabelValues("unknown", "body_error").Inc()
		c.String(http.StatusInternalServerError, "invalid JSON-RPC request: "+err.Error())
		return
	}

	if !l.allowed(req.RpcMethod) {
		stdErr := common.MapErrorWithCode(errors.New("method not permitted by allow-list: "+req.RpcMethod), common.ErrCodeRPCMethodDisallowed)
		l.Logger.Warn("%v", stdErr)
		metrics.InboundRequests.WithLabelValues(req.RpcMethod, "method_disallowed").Inc()
		c.Data(http.StatusOK, "application/json", methodNotFoundBody)
		return
	}

	responses, _, err := l.Validators.Fan(c.Request.Context(), req)
	if err != nil {
		stdErr := common.MapErrorWithCode(err, common.ErrCodeRPCBuilderFailed)
		metrics.InboundRequests.WithLabelValues(req.RpcMethod, "builder_failed").Inc()
		l.Logger.Error("validator fan-out failed for method %s: %v", req.RpcMethod, stdErr)
		c.String(http.StatusBadGateway, "validator targets unavailable")
		return
	}

	selected := selectResponse(responses)

	if !anyVeto(responses) && l.Executor != nil {
		l.spawnExecutor(req)
	}

	outcome := "success"
	if selected.IsPBHVeto() {
		outcome = "validator_veto"
		stdErr := common.MapErrorWithCode(errors.New(selected.RpcError.Message), common.ErrCodeRPCValidatorVeto)
		l.Logger.Warn("%v", stdErr)
	} else if selected.IsError() {
		outcome = "validator_error"
	}
	metrics.InboundRequests.WithLabelValues(req.RpcMethod, outcome).Inc()

	c.Data(selected.StatusCode, "application/json", selected.Body)
}

// allowed reports whether method contains at least one allow-list pattern
// as a substring (not a prefix match).
func (l *Layer) allowed(method string) bool {
	for _, pattern := range l.AllowList {
		if strings.Contains(method, pattern) {
			return true
		}
	}
	return false
}

// spawnExecutor launches the executor stage detached from the inbound
// request's lifetime: context.Background(), not the gin context, so caller
// disconnection never cancels it, and the goroutine never touches the
// now-returned gin.Context.
func (l *Layer) spawnExecutor(req *rpcmsg.RpcRequest) {
	detached := req.Clone()
	go func() {
		if _, err := l.Executor.Handle(context.Background(), detached); err != nil {
			l.Logger.Warn("executor stage failed for method %s: %v", detached.RpcMethod, err)
		}
	}()
}

// anyVeto reports whether any validator response is a PBH veto.
func anyVeto(responses []*rpcmsg.RpcResponse) bool {
	for _, r := range responses {
		if r != nil && r.IsPBHVeto() {
			return true
		}
	}
	return false
}

// selectResponse implements the response-selection rule: a veto wins over
// any success; otherwise the first non-error response wins; otherwise the
// first response is the fallback.
func selectResponse(responses []*rpcmsg.RpcResponse) *rpcmsg.RpcResponse {
	var fallback *rpcmsg.RpcResponse
	var chosen *rpcmsg.RpcResponse

	for _, r := range responses {
		if r == nil {
			continue
		}
		if fallback == nil {
			fallback = r
		}
		if r.IsPBHVeto() {
			return r
		}
		if chosen == nil && !r.IsError() {
			chosen = r
		}
	}

	if chosen != nil {
		return chosen
	}
	return fallback
}

var methodNotFoundBody = []byte(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found"},"id":null}`)
