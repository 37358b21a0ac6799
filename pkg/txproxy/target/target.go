// Package target wraps a single downstream JSON-RPC endpoint: its pooled
// outbound HTTP client, JWT signing secret, and per-call timeout.
package target

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/net/http2"

	"github.com/cyw0ng95/txproxy/pkg/common"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/rpcmsg"
)

// outboundJWTTTL is the lifetime given to every freshly minted outbound
// bearer token. Tokens are minted fresh per call; nothing depends on reuse.
const outboundJWTTTL = 60 * time.Second

// Target is one configured downstream endpoint. It owns a pooled HTTPS
// client; cloning a *Target (by copying the pointer, never the struct) keeps
// that pool shared across every fan-out round that uses it.
type Target struct {
	Name    string
	URL     string
	secret  []byte
	timeout time.Duration
	client  *resty.Client
	logger  *common.Logger
}

// New constructs a Target with a pooled resty client configured for
// HTTP/2, connection reuse, and a hard per-call timeout.
func New(name, url string, secret []byte, timeout time.Duration, logger *common.Logger) (*Target, error) {
	if timeout <= 0 {
		timeout = common.DefaultRPCTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		MaxConnsPerHost:     50,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2: true,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configure HTTP/2 transport for target %s: %w", name, err)
	}
	client.SetTransport(transport)

	// resty decompresses gzip/deflate natively; brotli needs an explicit
	// response middleware since neither net/http nor resty decode "br".
	client.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if resp.Header().Get("Content-Encoding") != "br" {
			return nil
		}
		reader := brotli.NewReader(bytes.NewReader(resp.Body()))
		decoded, err := io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("brotli decode response from target %s: %w", name, err)
		}
		resp.SetBody(decoded)
		return nil
	})

	return &Target{
		Name:    name,
		URL:     url,
		secret:  secret,
		timeout: timeout,
		client:  client,
		logger:  logger,
	}, nil
}

// Forward sends req to this target, signing it with a freshly minted JWT,
// and returns the classified response. The call is bounded by the Target's
// configured timeout regardless of ctx's own deadline.
func (t *Target) Forward(ctx context.Context, req *rpcmsg.RpcRequest) (*rpcmsg.RpcResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	token, err := t.signJWT()
	if err != nil {
		return nil, fmt.Errorf("sign outbound JWT for target %s: %w", t.Name, err)
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+token).
		SetBody(req.Body).
		Post(t.URL)
	if err != nil {
		return nil, fmt.Errorf("forward to target %s: %w", t.Name, err)
	}

	return rpcmsg.NewRpcResponse(resp.StatusCode(), resp.Header(), resp.Body()), nil
}

func (t *Target) signJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(outboundJWTTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}
