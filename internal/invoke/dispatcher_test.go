package invoke

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oriys/tetra/internal/domain"
	"github.com/oriys/tetra/internal/errs"
	"github.com/oriys/tetra/internal/loadbalancer"
	"github.com/oriys/tetra/internal/reliability"
	"github.com/oriys/tetra/internal/resourcemanager"
)

type echoProvider struct {
	invokeCalls int32
	failFirstN  int32
	response    []byte
}

func (e *echoProvider) List(context.Context, domain.ResourceKind, string) ([]domain.RemoteResource, error) {
	return nil, nil
}

func (e *echoProvider) Create(_ context.Context, kind domain.ResourceKind, payload map[string]any) (domain.RemoteResource, error) {
	name, _ := payload["name"].(string)
	return domain.RemoteResource{ID: "ep-" + name, URLs: []string{"http://replica-1"}, Name: name, Kind: kind}, nil
}

func (e *echoProvider) Delete(context.Context, string) error { return nil }

func (e *echoProvider) Invoke(_ context.Context, url string, envelope domain.CallEnvelope, _ time.Duration) ([]byte, error) {
	n := atomic.AddInt32(&e.invokeCalls, 1)
	if n <= e.failFirstN {
		return nil, fmt.Errorf("%w: transient failure on attempt %d", errs.ErrProviderUnavailable, n)
	}
	if e.response != nil {
		return e.response, nil
	}
	return envelope.Payload, nil
}

func (e *echoProvider) FetchManifest(context.Context, string) (*domain.Manifest, error) {
	return nil, fmt.Errorf("not implemented")
}

func (e *echoProvider) UpdateManifest(context.Context, string, *domain.Manifest) error { return nil }

func newTestDispatcher(t *testing.T, pc *echoProvider) *Dispatcher {
	t.Helper()
	mgr, err := resourcemanager.New(pc, t.TempDir(), "env-test", nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	cfg := reliability.NewForTest(reliability.ReliabilityConfig{
		CircuitBreaker: reliability.CircuitBreakerConfig{Enabled: true, FailureThreshold: 5, SuccessThreshold: 2, TimeoutSeconds: 60},
		LoadBalancer:   reliability.LoadBalancerConfig{Enabled: true, Strategy: loadbalancer.RoundRobin},
		Retry:          reliability.RetryConfig{Enabled: true, MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Jitter: 0.1},
	})
	return NewDispatcher(mgr, pc, cfg, time.Second)
}

func testFunctionConfig(t *testing.T, name string) *domain.ResourceConfig {
	t.Helper()
	cfg, err := domain.NewResourceConfig(domain.ResourceConfig{
		Kind: domain.GPULive, Name: name, Image: "image:latest", WorkersMax: 1, GPUGroup: "A100",
	})
	if err != nil {
		t.Fatalf("build config: %v", err)
	}
	return cfg
}

func TestBindingCallRoundTripsThroughEcho(t *testing.T) {
	os.Unsetenv(WorkerIDEnvVar)
	pc := &echoProvider{}
	d := newTestDispatcher(t, pc)
	cfg := testFunctionConfig(t, "echo-fn")

	binding := RegisterRemote("echo-fn", cfg, d, nil, nil)

	type args struct{ Value int }
	type result struct{ Value int }

	var out result
	if err := binding.Call(context.Background(), args{Value: 7}, &out); err != nil {
		t.Fatalf("call: %v", err)
	}
	// echoProvider echoes the serialized call envelope payload back verbatim,
	// so the round trip should carry the value through untouched.
	if out.Value != 7 {
		t.Fatalf("expected round-tripped value 7, got %d", out.Value)
	}
}

func TestBindingCallOnWorkerUsesLocalHandler(t *testing.T) {
	os.Setenv(WorkerIDEnvVar, "worker-1")
	defer os.Unsetenv(WorkerIDEnvVar)

	pc := &echoProvider{}
	d := newTestDispatcher(t, pc)
	cfg := testFunctionConfig(t, "local-fn")

	var gotArgs int
	local := func(_ context.Context, args any, result any) error {
		m := args.(map[string]int)
		gotArgs = m["value"]
		*(result.(*int)) = m["value"] * 2
		return nil
	}
	binding := RegisterRemote("local-fn", cfg, d, nil, local)

	var out int
	if err := binding.Call(context.Background(), map[string]int{"value": 5}, &out); err != nil {
		t.Fatalf("call: %v", err)
	}
	if gotArgs != 5 || out != 10 {
		t.Fatalf("expected local handler to run with args=5 producing out=10, got gotArgs=%d out=%d", gotArgs, out)
	}
	if atomic.LoadInt32(&pc.invokeCalls) != 0 {
		t.Fatalf("expected zero network invokes on worker process, got %d", pc.invokeCalls)
	}
}

func TestBindingCallWithoutLocalHandlerOnWorkerErrors(t *testing.T) {
	os.Setenv(WorkerIDEnvVar, "worker-1")
	defer os.Unsetenv(WorkerIDEnvVar)

	pc := &echoProvider{}
	d := newTestDispatcher(t, pc)
	cfg := testFunctionConfig(t, "no-local-fn")
	binding := RegisterRemote("no-local-fn", cfg, d, nil, nil)

	var out any
	if err := binding.Call(context.Background(), nil, &out); err == nil {
		t.Fatal("expected error when no local handler is registered on a worker process")
	}
}

func TestBindingCallRetriesTransientFailures(t *testing.T) {
	os.Unsetenv(WorkerIDEnvVar)
	pc := &echoProvider{failFirstN: 1, response: []byte(`{"ok":true}`)}
	d := newTestDispatcher(t, pc)
	cfg := testFunctionConfig(t, "retry-fn")
	binding := RegisterRemote("retry-fn", cfg, d, nil, nil)

	var out map[string]bool
	if err := binding.Call(context.Background(), map[string]int{"x": 1}, &out); err != nil {
		t.Fatalf("expected retry to recover from one transient failure, got: %v", err)
	}
	if !out["ok"] {
		t.Fatalf("expected decoded response ok=true, got %+v", out)
	}
	if atomic.LoadInt32(&pc.invokeCalls) != 2 {
		t.Fatalf("expected 2 invoke attempts (1 failure + 1 success), got %d", pc.invokeCalls)
	}
}

func TestSessionCallCarriesConstructorPayload(t *testing.T) {
	os.Unsetenv(WorkerIDEnvVar)
	pc := &echoProvider{response: []byte(`{"done":true}`)}
	d := newTestDispatcher(t, pc)
	cfg := testFunctionConfig(t, "session-class")
	factory := RegisterRemoteClass("SessionClass", cfg, d, nil, nil)

	sess, err := factory.NewSession(map[string]string{"model": "v1"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	var out map[string]bool
	if err := sess.Call(context.Background(), "predict", map[string]int{"x": 1}, &out); err != nil {
		t.Fatalf("call: %v", err)
	}
	if !out["done"] {
		t.Fatalf("expected decoded response done=true, got %+v", out)
	}
}

func TestSessionCallOnWorkerUsesLocalHandler(t *testing.T) {
	os.Setenv(WorkerIDEnvVar, "worker-1")
	defer os.Unsetenv(WorkerIDEnvVar)

	pc := &echoProvider{}
	d := newTestDispatcher(t, pc)
	cfg := testFunctionConfig(t, "local-session-class")

	var gotMethod string
	local := func(_ context.Context, ctorArgs any, method string, args any, result any) error {
		gotMethod = method
		*(result.(*int)) = 42
		return nil
	}
	factory := RegisterRemoteClass("LocalSessionClass", cfg, d, nil, local)
	sess, err := factory.NewSession(nil)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	var out int
	if err := sess.Call(context.Background(), "predict", nil, &out); err != nil {
		t.Fatalf("call: %v", err)
	}
	if gotMethod != "predict" || out != 42 {
		t.Fatalf("expected local handler invoked with method=predict producing out=42, got method=%s out=%d", gotMethod, out)
	}
}

func TestIsWorkerProcess(t *testing.T) {
	os.Unsetenv(WorkerIDEnvVar)
	if IsWorkerProcess() {
		t.Fatal("expected false when worker id env var unset")
	}
	os.Setenv(WorkerIDEnvVar, "worker-7")
	defer os.Unsetenv(WorkerIDEnvVar)
	if !IsWorkerProcess() {
		t.Fatal("expected true when worker id env var set")
	}
}
