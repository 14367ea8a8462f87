package orchestrator

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"toposim/client"
	"toposim/codec"
	"toposim/engine"
	"toposim/message"
	"toposim/middleware"
	"toposim/server"
	"toposim/topology"
)

type countingDialer struct{}

func (countingDialer) Call(serviceName, methodName string) (*topology.ServiceResponse, error) {
	return &topology.ServiceResponse{MethodName: methodName}, nil
}

func TestLoadGeneratorFiresAtSteadyRate(t *testing.T) {
	top := &topology.Topology{
		Services: map[string]topology.ServiceSpec{
			"A": {Methods: map[string]topology.MethodSpec{
				"m": {LatencyDistribution: topology.DistributionSpec{
					Kind:       "constant",
					Parameters: map[string]float64{"value": 0},
				}},
			}},
		},
	}
	endpoint, err := engine.NewEndpoint(top, "A", countingDialer{})
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	svr := server.NewServer(endpoint)
	var served int32
	svr.Use(func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) *message.Envelope {
			atomic.AddInt32(&served, 1)
			return next(ctx, req)
		}
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	go svr.Serve("tcp", addr)
	time.Sleep(50 * time.Millisecond)
	defer svr.Shutdown(time.Second)

	resolve := func(serviceName string) (string, error) { return addr, nil }
	pool := client.NewPool(resolve, codec.CodecTypeJSON)
	gen := NewLoadGenerator(pool)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	entryPoints := []topology.EntryPoint{{Service: "A", Method: "m", RequestsPerSecond: 20}}
	start := time.Now()
	gen.Run(ctx, entryPoints)
	elapsed := time.Since(start)

	if elapsed < 200*time.Millisecond {
		t.Fatalf("expected Run to block roughly until context deadline, returned after %v", elapsed)
	}
	// 20 rps with burst 1 over 250ms fires at about 0, 50, 100, 150, 200ms.
	if got := atomic.LoadInt32(&served); got < 4 || got > 6 {
		t.Fatalf("expected about 5 requests at 20 rps over 250ms, got %d", got)
	}
}
