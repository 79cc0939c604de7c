package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"speech-rehab-service/internal/observability/logging"
	"speech-rehab-service/internal/observability/metrics"
)

// RPCObserver records metrics and access logs for the service's gRPC
// surface, tagged with the service principal.
type RPCObserver struct {
	metrics   *metrics.Metrics
	principal string
	log       zerolog.Logger
}

// NewRPCObserver creates an observer reporting to m.
func NewRPCObserver(m *metrics.Metrics, principal string) *RPCObserver {
	return &RPCObserver{
		metrics:   m,
		principal: principal,
		log:       logging.WithComponent("grpc"),
	}
}

// Unary returns the unary server interceptor.
func (o *RPCObserver) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		o.observe(ctx, info.FullMethod, "unary", start, err)
		return resp, err
	}
}

// Stream returns the stream server interceptor. Health Watch calls end up
// here and are logged when the watcher disconnects.
func (o *RPCObserver) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)

		ctx := context.Background()
		if ss != nil {
			ctx = ss.Context()
		}
		o.observe(ctx, info.FullMethod, "stream", start, err)
		return err
	}
}

func (o *RPCObserver) observe(ctx context.Context, method, kind string, start time.Time, err error) {
	elapsed := time.Since(start)
	code := status.Code(err)
	o.metrics.RecordRPC(method, code.String(), elapsed.Seconds())

	ev := o.log.WithLevel(rpcLevel(code)).
		Str("principal", o.principal).
		Str("method", method).
		Str("kind", kind).
		Str("code", code.String()).
		Dur("duration", elapsed)
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ev = ev.Str("peer", p.Addr.String())
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("gRPC call")
}

// rpcLevel keeps health-check traffic at debug and surfaces server-side failures.
func rpcLevel(code codes.Code) zerolog.Level {
	switch code {
	case codes.OK, codes.Canceled:
		return zerolog.DebugLevel
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable, codes.DeadlineExceeded:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
