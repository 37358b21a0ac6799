// Package rpcmsg holds the in-memory representation of a JSON-RPC request
// and response as they travel through the fan-out pipeline.
package rpcmsg

import (
	"fmt"
	"net/http"

	"github.com/cyw0ng95/txproxy/pkg/jsonutil"
)

// PBHVetoPrefix is the message prefix that marks a validator's JSON-RPC
// error as an authoritative veto rather than an ordinary application error.
const PBHVetoPrefix = "PBH Transaction Validation Failed"

// PBHVetoCode is the JSON-RPC error code that accompanies a PBH veto.
const PBHVetoCode = -32603

// envelope is the minimal shape used to project a method name out of an
// inbound request body without decoding the full params payload.
type envelope struct {
	Method string `json:"method"`
}

// RpcRequest is a decomposed inbound JSON-RPC call. It is cheaply cloneable
// so that a single inbound call can be fanned out to N outbound targets
// without re-reading the body for each one.
type RpcRequest struct {
	Header    http.Header
	URI       string
	Body      []byte
	RpcMethod string
}

// NewRpcRequest parses body far enough to extract the JSON-RPC "method"
// field. Returns an error if body does not contain a JSON object with a
// string "method" field.
func NewRpcRequest(header http.Header, uri string, body []byte) (*RpcRequest, error) {
	var env envelope
	if err := jsonutil.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode JSON-RPC method: %w", err)
	}
	if env.Method == "" {
		return nil, fmt.Errorf("JSON-RPC request missing method field")
	}
	return &RpcRequest{
		Header:    header,
		URI:       uri,
		Body:      body,
		RpcMethod: env.Method,
	}, nil
}

// Clone returns a shallow copy sharing the body slice and header map by
// reference. Safe because neither is mutated after construction.
func (r *RpcRequest) Clone() *RpcRequest {
	clone := *r
	return &clone
}

// rpcError is the minimal JSON-RPC error shape needed to classify a
// response without fully decoding its result payload.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type responseEnvelope struct {
	Error *rpcError `json:"error"`
}

// RpcError is the decoded JSON-RPC error object of a response, when present.
type RpcError struct {
	Code    int
	Message string
}

// RpcResponse is a classified outbound response: the raw bytes returned to
// the caller, plus a peek at whether it carries a JSON-RPC error.
type RpcResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RpcError   *RpcError
}

// NewRpcResponse classifies a raw HTTP response body as a JSON-RPC response,
// peeking for an "error" field. A body that does not parse as JSON-RPC is
// still returned with RpcError == nil; this is a best-effort classification,
// not a strict validator.
func NewRpcResponse(status int, header http.Header, body []byte) *RpcResponse {
	var env responseEnvelope
	resp := &RpcResponse{StatusCode: status, Header: header, Body: body}
	if err := jsonutil.Unmarshal(body, &env); err == nil && env.Error != nil {
		resp.RpcError = &RpcError{Code: env.Error.Code, Message: env.Error.Message}
	}
	return resp
}

// IsError reports whether the response carries a JSON-RPC error object.
func (r *RpcResponse) IsError() bool {
	return r.RpcError != nil
}

// IsPBHVeto reports whether the response is an authoritative validator veto:
// JSON-RPC code -32603 with a message beginning with the PBH veto prefix.
func (r *RpcResponse) IsPBHVeto() bool {
	if r.RpcError == nil {
		return false
	}
	if r.RpcError.Code != PBHVetoCode {
		return false
	}
	return len(r.RpcError.Message) >= len(PBHVetoPrefix) && r.RpcError.Message[:len(PBHVetoPrefix)] == PBHVetoPrefix
}
