package fanout

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cyw0ng95/txproxy/pkg/common"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/rpcmsg"
	"github.com/cyw0ng95/txproxy/pkg/txproxy/target"
)

func testLogger() *common.Logger {
	return common.NewLogger(io.Discard, "fanout-test", common.ErrorLevel)
}

func newTestTarget(t *testing.T, name string, handler http.HandlerFunc) (*target.Target, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	tgt, err := target.New(name, srv.URL, []byte("secret"), time.Second, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tgt, srv.Close
}

func okHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestGroup_Fan_PreservesTargetOrder(t *testing.T) {
	t0, close0 := newTestTarget(t, "t0", okHandler(`{"jsonrpc":"2.0","result":"first","id":1}`))
	defer close0()
	t1, close1 := newTestTarget(t, "t1", okHandler(`{"jsonrpc":"2.0","result":"second","id":1}`))
	defer close1()

	group := New("builder", RequireAll, t0, t1)
	req, err := rpcmsg.NewRpcRequest(http.Header{}, "/", []byte(`{"jsonrpc":"2.0","method":"eth_call","id":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	responses, errs, err := group.Fan(t.Context(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range errs {
		if e != nil {
			t.Fatalf("unexpected per-target error: %v", e)
		}
	}
	if string(responses[0].Body) != `{"jsonrpc":"2.0","result":"first","id":1}` {
		t.Fatalf("response 0 out of order: %s", responses[0].Body)
	}
	if string(responses[1].Body) != `{"jsonrpc":"2.0","result":"second","id":1}` {
		t.Fatalf("response 1 out of order: %s", responses[1].Body)
	}
}

func TestGroup_Fan_RequireAllFailsOnAnyError(t *testing.T) {
	ok, closeOK := newTestTarget(t, "ok", okHandler(`{"jsonrpc":"2.0","result":"ok","id":1}`))
	defer closeOK()
	unreachable, err := target.New("down", "http://127.0.0.1:1", []byte("secret"), 50*time.Millisecond, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	group := New("builder", RequireAll, ok, unreachable)
	req, err := rpcmsg.NewRpcRequest(http.Header{}, "/", []byte(`{"jsonrpc":"2.0","method":"eth_call","id":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := group.Fan(t.Context(), req); err == nil {
		t.Fatal("expected RequireAll to fail when any target errors")
	}
}

func TestGroup_Fan_BestEffortToleratesErrors(t *testing.T) {
	ok, closeOK := newTestTarget(t, "ok", okHandler(`{"jsonrpc":"2.0","result":"ok","id":1}`))
	defer closeOK()
	unreachable, err := target.New("down", "http://127.0.0.1:1", []byte("secret"), 50*time.Millisecond, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	group := New("l2", BestEffort, unreachable, ok)
	req, err := rpcmsg.NewRpcRequest(http.Header{}, "/", []byte(`{"jsonrpc":"2.0","method":"eth_call","id":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	responses, errs, err := group.Fan(t.Context(), req)
	if err != nil {
		t.Fatalf("BestEffort should not surface a round-level error: %v", err)
	}
	if errs[0] == nil {
		t.Fatal("expected the unreachable target to report an error")
	}
	if responses[1] == nil {
		t.Fatal("expected the reachable target's response to come through")
	}
}

func TestGroup_Fan_NoTargets(t *testing.T) {
	group := New("empty", RequireAll)
	req, err := rpcmsg.NewRpcRequest(http.Header{}, "/", []byte(`{"jsonrpc":"2.0","method":"eth_call","id":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := group.Fan(t.Context(), req); err == nil {
		t.Fatal("expected an error for a group with no targets")
	}
}
