package invoke

import (
	"context"
	"fmt"

	"github.com/oriys/tetra/internal/domain"
)

// LocalSessionHandler is the author's class method body for worker-side
// pass-through, mirroring LocalHandler but also receiving the constructor
// payload and method name since a session has no persistent Go object to
// close over.
type LocalSessionHandler func(ctx context.Context, ctorArgs any, method string, args any, result any) error

// SessionFactory binds a decorated class to its ResourceConfig. Each
// NewSession call captures constructor arguments once; they are re-sent
// alongside every method call. No inheritance chain or per-instance Go
// state survives the boundary — the provider may or may not pin subsequent
// calls to the same replica, and the core does not require affinity.
type SessionFactory struct {
	className  string
	config     *domain.ResourceConfig
	dispatcher *Dispatcher
	serializer Serializer
	local      LocalSessionHandler
}

// RegisterRemoteClass is the class analogue of RegisterRemote.
func RegisterRemoteClass(className string, cfg *domain.ResourceConfig, dispatcher *Dispatcher, serializer Serializer, local LocalSessionHandler) *SessionFactory {
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	return &SessionFactory{
		className:  className,
		config:     cfg,
		dispatcher: dispatcher,
		serializer: serializer,
		local:      local,
	}
}

// RemoteSession is one remote-session instance: constructor args captured
// once, re-supplied on every method call.
type RemoteSession struct {
	factory     *SessionFactory
	ctorArgs    any
	ctorPayload []byte
}

// NewSession captures ctorArgs for later method calls. Serialization of
// ctorArgs happens once here, not on every Call.
func (f *SessionFactory) NewSession(ctorArgs any) (*RemoteSession, error) {
	payload, err := f.serializer.Serialize(ctorArgs)
	if err != nil {
		return nil, fmt.Errorf("serialize constructor arguments: %w", err)
	}
	return &RemoteSession{factory: f, ctorArgs: ctorArgs, ctorPayload: payload}, nil
}

// Call dispatches one method invocation against the session, carrying the
// constructor payload alongside method/args in a SessionEnvelope.
func (s *RemoteSession) Call(ctx context.Context, method string, args any, result any) error {
	f := s.factory

	if IsWorkerProcess() {
		if f.local == nil {
			return fmt.Errorf("invoke: %s has no local handler to run on worker", f.className)
		}
		return f.local(ctx, s.ctorArgs, method, args, result)
	}

	argsPayload, err := f.serializer.Serialize(args)
	if err != nil {
		return fmt.Errorf("serialize method arguments: %w", err)
	}

	sessionEnvelope := domain.SessionEnvelope{
		SessionPayload: s.ctorPayload,
		MethodName:     method,
		Args:           argsPayload,
	}
	payload, err := JSONSerializer{}.Serialize(sessionEnvelope)
	if err != nil {
		return fmt.Errorf("serialize session envelope: %w", err)
	}

	envelope := domain.CallEnvelope{
		FunctionName: f.className + "." + method,
		Payload:      payload,
		Routing:      f.config.Routing,
	}

	respBytes, err := f.dispatcher.dispatch(ctx, f.config, envelope)
	if err != nil {
		return err
	}
	return f.serializer.Deserialize(respBytes, result)
}
