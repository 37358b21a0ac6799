package validation

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cyw0ng95/txproxy/pkg/common"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/fanout"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/proxy"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/target"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *common.Logger {
	return common.NewLogger(io.Discard, "validation-test", common.ErrorLevel)
}

func okHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func newTarget(t *testing.T, name string, handler http.HandlerFunc) *target.Target {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tgt, err := target.New(name, srv.URL, []byte("secret"), time.Second, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tgt
}

func doRequest(layer *Layer, method string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"jsonrpc":"2.0","method":"` + method + `","params":[],"id":1}`
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	layer.Handle(c)
	return rec
}

func TestLayer_Handle_HappyPath(t *testing.T) {
	validator := newTarget(t, "builder-0", okHandler(`{"jsonrpc":"2.0","result":"0xabc","id":1}`))
	group := fanout.New("builder", fanout.RequireAll, validator)
	layer := New(group, nil, nil, testLogger())

	rec := doRequest(layer, "eth_sendRawTransaction")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"jsonrpc":"2.0","result":"0xabc","id":1}` {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestLayer_Handle_ValidatorVetoWins(t *testing.T) {
	success := newTarget(t, "builder-0", okHandler(`{"jsonrpc":"2.0","result":"0xabc","id":1}`))
	veto := newTarget(t, "builder-1", okHandler(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"PBH Transaction Validation Failed: nullifier spent"},"id":1}`))
	group := fanout.New("builder", fanout.RequireAll, success, veto)
	layer := New(group, nil, nil, testLogger())

	rec := doRequest(layer, "eth_sendRawTransaction")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 (synthetic JSON-RPC errors are HTTP 200), got %d", rec.Code)
	}
	if rec.Body.String() != `{"jsonrpc":"2.0","error":{"code":-32603,"message":"PBH Transaction Validation Failed: nullifier spent"},"id":1}` {
		t.Fatalf("expected the veto response to win, got: %s", rec.Body.String())
	}
}

func TestLayer_Handle_MethodDisallowed(t *testing.T) {
	validator := newTarget(t, "builder-0", okHandler(`{"jsonrpc":"2.0","result":"0xabc","id":1}`))
	group := fanout.New("builder", fanout.RequireAll, validator)
	layer := New(group, nil, nil, testLogger())

	rec := doRequest(layer, "admin_shutdown")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a synthesized method-not-found error, got %d", rec.Code)
	}
	if rec.Body.String() != string(methodNotFoundBody) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestLayer_Handle_ValidatorTransportFailure(t *testing.T) {
	down, err := target.New("builder-down", "http://127.0.0.1:1", []byte("secret"), 50*time.Millisecond, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	group := fanout.New("builder", fanout.RequireAll, down)
	layer := New(group, nil, nil, testLogger())

	rec := doRequest(layer, "eth_sendRawTransaction")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 when every validator target fails, got %d", rec.Code)
	}
}

func TestLayer_Handle_TriggersExecutorOnSuccess(t *testing.T) {
	validator := newTarget(t, "builder-0", okHandler(`{"jsonrpc":"2.0","result":"0xabc","id":1}`))
	vGroup := fanout.New("builder", fanout.RequireAll, validator)

	executed := make(chan struct{}, 1)
	executor := newTarget(t, "l2-0", func(w http.ResponseWriter, r *http.Request) {
		executed <- struct{}{}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","result":"0xdef","id":1}`))
	})
	eGroup := fanout.New("l2", fanout.BestEffort, executor)
	executorLayer := proxy.New(eGroup, testLogger())

	layer := New(vGroup, nil, executorLayer, testLogger())
	doRequest(layer, "eth_sendRawTransaction")

	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("expected the executor stage to be triggered on a non-veto success")
	}
}

func TestLayer_Handle_VetoSkipsExecutor(t *testing.T) {
	veto := newTarget(t, "builder-0", okHandler(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"PBH Transaction Validation Failed: x"},"id":1}`))
	vGroup := fanout.New("builder", fanout.RequireAll, veto)

	executed := make(chan struct{}, 1)
	executor := newTarget(t, "l2-0", func(w http.ResponseWriter, r *http.Request) {
		executed <- struct{}{}
		w.Write([]byte(`{"jsonrpc":"2.0","result":"0xdef","id":1}`))
	})
	eGroup := fanout.New("l2", fanout.BestEffort, executor)
	executorLayer := proxy.New(eGroup, testLogger())

	layer := New(vGroup, nil, executorLayer, testLogger())
	doRequest(layer, "eth_sendRawTransaction")

	select {
	case <-executed:
		t.Fatal("a validator veto must not trigger the executor stage")
	case <-time.After(100 * time.Millisecond):
	}
}
