package invoke

import (
	"context"
	"fmt"

	"github.com/oriys/tetra/internal/domain"
)

// LocalHandler is the author's real function body, captured at
// registration so a process running on the worker host (IsWorkerProcess)
// can execute it directly instead of looping a call back out over the
// network it is itself serving.
type LocalHandler func(ctx context.Context, args any, result any) error

// RemoteBinding binds one annotated function to its ResourceConfig. Build
// one with RegisterRemote; Call is the per-invocation entry point.
type RemoteBinding struct {
	functionName string
	config       *domain.ResourceConfig
	dispatcher   *Dispatcher
	serializer   Serializer
	local        LocalHandler
}

// RegisterRemote binds functionName to cfg once; the returned binding is
// reused for every call. local may be nil if this process never runs as a
// worker for this function.
func RegisterRemote(functionName string, cfg *domain.ResourceConfig, dispatcher *Dispatcher, serializer Serializer, local LocalHandler) *RemoteBinding {
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	return &RemoteBinding{
		functionName: functionName,
		config:       cfg,
		dispatcher:   dispatcher,
		serializer:   serializer,
		local:        local,
	}
}

// Call serializes args, dispatches through the reliability runtime, and
// deserializes the provider's response into result. On a worker process it
// instead invokes the captured LocalHandler directly.
func (b *RemoteBinding) Call(ctx context.Context, args any, result any) error {
	if IsWorkerProcess() {
		if b.local == nil {
			return fmt.Errorf("invoke: %s has no local handler to run on worker", b.functionName)
		}
		return b.local(ctx, args, result)
	}

	payload, err := b.serializer.Serialize(args)
	if err != nil {
		return fmt.Errorf("serialize call arguments: %w", err)
	}

	envelope := domain.CallEnvelope{
		FunctionName: b.functionName,
		Payload:      payload,
		Routing:      b.config.Routing,
	}

	respBytes, err := b.dispatcher.dispatch(ctx, b.config, envelope)
	if err != nil {
		return err
	}
	return b.serializer.Deserialize(respBytes, result)
}

// Config returns the bound ResourceConfig, e.g. for upfront deployment via
// the orchestrator.
func (b *RemoteBinding) Config() *domain.ResourceConfig { return b.config }
