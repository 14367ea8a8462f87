package engine

import (
	"errors"
	"fmt"
	"time"

	"toposim/distribution"
	"toposim/topology"
)

// ErrUnknownMethod is returned when a request names a method this
// instance's ServiceSpec does not declare.
var ErrUnknownMethod = errors.New("UnknownMethod")

// SimulatedError is the deliberate, sampled failure a method reports to
// its caller. It carries no detail beyond the fixed transport message.
type SimulatedError struct{}

func (SimulatedError) Error() string { return "Internal Error" }

// compiledMethod caches the samplers built for one method so that every
// call to it reuses them instead of re-validating parameters per request.
type compiledMethod struct {
	calls     [][]string
	latency   distribution.Sampler
	errorRate distribution.BoolSampler // nil when the method has none
}

// Endpoint is the simulated service instance: given the method named in
// an incoming ServiceRequest, it runs that method's call plan, sleeps a
// sampled latency, optionally samples a simulated failure, and assembles
// the response.
type Endpoint struct {
	serviceName string
	methods     map[string]compiledMethod
	executor    *Executor
}

// NewEndpoint compiles every method of serviceName's ServiceSpec in top
// and returns an Endpoint ready to serve GetData requests. The topology is
// assumed already validated, so distribution construction here cannot fail
// on malformed parameters — it is re-checked defensively.
func NewEndpoint(top *topology.Topology, serviceName string, dial Dialer) (*Endpoint, error) {
	svc, ok := top.Services[serviceName]
	if !ok {
		return nil, fmt.Errorf("unknown service %q", serviceName)
	}

	methods := make(map[string]compiledMethod, len(svc.Methods))
	for name, m := range svc.Methods {
		latency, err := distribution.New(m.LatencyDistribution)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: latency_distribution: %w", serviceName, name, err)
		}

		var errSampler distribution.BoolSampler
		if m.ErrorRate != nil {
			s, err := distribution.New(*m.ErrorRate)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: error_rate: %w", serviceName, name, err)
			}
			bs, ok := s.(distribution.BoolSampler)
			if !ok {
				return nil, fmt.Errorf("%s.%s: error_rate must sample a boolean", serviceName, name)
			}
			errSampler = bs
		}

		methods[name] = compiledMethod{calls: m.Calls, latency: latency, errorRate: errSampler}
	}

	return &Endpoint{
		serviceName: serviceName,
		methods:     methods,
		executor:    NewExecutor(dial),
	}, nil
}

// Handle serves one GetData(method_name) call: fan out downstream per the
// call plan, then sleep a sampled latency, then decide a simulated error.
// The ordering is fixed — downstream fan-out completes before the delay,
// and the error is decided only after the delay.
func (e *Endpoint) Handle(methodName string) (*topology.ServiceResponse, error) {
	m, ok := e.methods[methodName]
	if !ok {
		return nil, ErrUnknownMethod
	}

	trace := e.executor.Execute(m.calls)

	ms := distribution.MillisFromSample(m.latency.Sample())
	time.Sleep(time.Duration(ms) * time.Millisecond)

	if m.errorRate != nil && m.errorRate.SampleBool() {
		return nil, SimulatedError{}
	}

	return &topology.ServiceResponse{MethodName: methodName, Calls: trace}, nil
}
