package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/oriys/tetra/internal/errs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// grpcInvoker dispatches queue-based invocations over a gRPC connection
// rather than plain HTTP, used when the provider's worker-side dispatch
// (unpickle-and-run) sits behind a gRPC gateway instead of a REST one. The
// envelope is already an opaque byte payload, so a generic unary call
// carrying wrapperspb.BytesValue needs no generated service stubs.
type grpcInvoker struct {
	addr string

	mu   sync.Mutex
	conn *grpc.ClientConn
}

func newGRPCInvoker(addr string) *grpcInvoker {
	return &grpcInvoker{addr: addr}
}

const invokeMethod = "/tetra.provider.v1.Provider/Invoke"

func (g *grpcInvoker) connection() (*grpc.ClientConn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		return g.conn, nil
	}
	conn, err := grpc.NewClient(g.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	g.conn = conn
	return conn, nil
}

func (g *grpcInvoker) invoke(ctx context.Context, payload []byte) ([]byte, error) {
	conn, err := g.connection()
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", errs.ErrProviderUnavailable, g.addr, err)
	}

	req := wrapperspb.Bytes(payload)
	var reply wrapperspb.BytesValue
	if err := conn.Invoke(ctx, invokeMethod, req, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrProviderUnavailable, err)
	}
	return reply.GetValue(), nil
}
