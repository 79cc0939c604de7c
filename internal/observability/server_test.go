package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"speech-rehab-service/internal/observability/metrics"
)

func TestServer_Readiness(t *testing.T) {
	ready := false
	srv := NewServer(":0", func() bool { return ready })

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").Code)

	ready = true
	rec := get("/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	rec = get("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "speech_rehab_")
}

func TestServer_NilReadyFunc(t *testing.T) {
	srv := NewServer(":0", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRPCObserver_Unary(t *testing.T) {
	ic := NewRPCObserver(metrics.DefaultMetrics, "svc-speech-rehab").Unary()
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := ic(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return "resp", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "resp", resp)

	want := status.Error(codes.Unavailable, "down")
	_, err = ic(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return nil, want
	})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestRPCObserver_StreamReturnsHandlerError(t *testing.T) {
	ic := NewRPCObserver(metrics.DefaultMetrics, "svc-speech-rehab").Stream()
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch", IsServerStream: true}
	boom := errors.New("boom")

	err := ic(nil, nil, info, func(srv any, ss grpc.ServerStream) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRPCLevel(t *testing.T) {
	tests := []struct {
		code codes.Code
		want zerolog.Level
	}{
		{codes.OK, zerolog.DebugLevel},
		{codes.Canceled, zerolog.DebugLevel},
		{codes.NotFound, zerolog.InfoLevel},
		{codes.Unavailable, zerolog.WarnLevel},
		{codes.Internal, zerolog.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, rpcLevel(tt.code))
		})
	}
}
