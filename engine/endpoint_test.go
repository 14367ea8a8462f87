package engine

import (
	"errors"
	"testing"
	"time"

	"toposim/topology"
)

func constDist(value float64) topology.DistributionSpec {
	return topology.DistributionSpec{Kind: "constant", Parameters: map[string]float64{"value": value}}
}

func bernoulliDist(p float64) topology.DistributionSpec {
	return topology.DistributionSpec{Kind: "bernoulli", Parameters: map[string]float64{"p": p}}
}

type noopDialer struct{}

func (noopDialer) Call(serviceName, methodName string) (*topology.ServiceResponse, error) {
	return nil, errors.New("unexpected call")
}

func TestEndpointUnknownMethod(t *testing.T) {
	top := &topology.Topology{
		Services: map[string]topology.ServiceSpec{
			"A": {Methods: map[string]topology.MethodSpec{
				"m": {LatencyDistribution: constDist(0)},
			}},
		},
	}
	ep, err := NewEndpoint(top, "A", noopDialer{})
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}
	if _, err := ep.Handle("nope"); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestEndpointSingleLeaf(t *testing.T) {
	errRate := bernoulliDist(0)
	top := &topology.Topology{
		Services: map[string]topology.ServiceSpec{
			"A": {Methods: map[string]topology.MethodSpec{
				"m": {LatencyDistribution: constDist(0), ErrorRate: &errRate},
			}},
		},
	}
	ep, err := NewEndpoint(top, "A", noopDialer{})
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}

	start := time.Now()
	resp, err := ep.Handle("m")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("expected near-zero latency, took %v", elapsed)
	}
	if len(resp.Calls) != 0 {
		t.Fatalf("expected empty trace for leaf, got %+v", resp.Calls)
	}
}

func TestEndpointSimulatedError(t *testing.T) {
	errRate := bernoulliDist(1)
	top := &topology.Topology{
		Services: map[string]topology.ServiceSpec{
			"A": {Methods: map[string]topology.MethodSpec{
				"m": {LatencyDistribution: constDist(0), ErrorRate: &errRate},
			}},
		},
	}
	ep, err := NewEndpoint(top, "A", noopDialer{})
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}

	_, err = ep.Handle("m")
	var simErr SimulatedError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected SimulatedError, got %v", err)
	}
}

type fakeLegDialer struct {
	resp *topology.ServiceResponse
}

func (f fakeLegDialer) Call(serviceName, methodName string) (*topology.ServiceResponse, error) {
	return f.resp, nil
}

func TestEndpointCallPlanFeedsTrace(t *testing.T) {
	top := &topology.Topology{
		Services: map[string]topology.ServiceSpec{
			"A": {Methods: map[string]topology.MethodSpec{
				"m": {Calls: [][]string{{"B.m"}}, LatencyDistribution: constDist(0)},
			}},
		},
	}
	dialer := fakeLegDialer{resp: &topology.ServiceResponse{MethodName: "m"}}
	ep, err := NewEndpoint(top, "A", dialer)
	if err != nil {
		t.Fatalf("NewEndpoint: %v", err)
	}

	resp, err := ep.Handle("m")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(resp.Calls) != 1 {
		t.Fatalf("expected 1 record from the call plan, got %+v", resp.Calls)
	}
}
