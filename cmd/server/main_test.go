package main

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/xtding233/wishsim/internal/host"
	"github.com/xtding233/wishsim/internal/rpc"
	"github.com/xtding233/wishsim/internal/sim"
)

func TestShutdownCancelsJobsBlockingGRPCStreams(t *testing.T) {
	h := host.New(host.Config{Workers: 1})
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	rpc.RegisterSimulatorServer(gs, &rpc.Server{Host: h})
	go func() { _ = gs.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()
	client := rpc.NewClient(conn)

	seed := int64(5)
	in := &sim.Input{
		Targets:       []sim.Target{{CharacterKey: "Mavuika", ExpectedStartDate: "2025-02-01", Priority: 1}},
		StartingPulls: 80,
		AsOf:          "2025-01-01",
		Config:        sim.Config{Iterations: sim.DefaultMaxIterations, ChunkSize: 500, Seed: &seed},
	}

	started := make(chan struct{})
	var once sync.Once
	watched := make(chan error, 1)
	go func() {
		_, err := client.Watch(context.Background(), rpc.Request{Session: "long", Input: in}, func(float64) {
			once.Do(func() { close(started) })
		})
		watched <- err
	}()
	select {
	case <-started:
	case <-time.After(30 * time.Second):
		t.Fatal("watch never reported progress")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	begin := time.Now()
	services{grpcSrv: gs, jobs: h}.shutdown(ctx, slog.Default())
	assert.Less(t, time.Since(begin), 10*time.Second)

	select {
	case <-watched:
	case <-time.After(5 * time.Second):
		t.Fatal("watch still blocked after shutdown")
	}
	j, ok := h.Latest("long")
	require.True(t, ok)
	assert.True(t, j.State().Terminal())
	assert.NotEqual(t, host.StateCompleted, j.State())
}

func TestStopGRPCForcesCloseWhenContextEnds(t *testing.T) {
	gs := grpc.NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		stopGRPC(ctx, gs)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stopGRPC ignored an expired context")
	}
}
