// Package topology defines the data model for a simulated microservice
// fleet — services, their methods, call graphs, and load profile — and
// decodes it from a topology document.
package topology

import "fmt"

// Topology is the full configuration document: a fleet of named services.
type Topology struct {
	Services map[string]ServiceSpec `json:"services" yaml:"services"`
	Load     *LoadSpec              `json:"load,omitempty" yaml:"load,omitempty"`
}

// ServiceSpec locates one service on the network and lists its methods.
type ServiceSpec struct {
	IP      string                `json:"ip" yaml:"ip"`
	Port    string                `json:"port" yaml:"port"`
	Methods map[string]MethodSpec `json:"methods" yaml:"methods"`
}

// MethodSpec describes one RPC method: what it calls downstream, and how
// it simulates latency and failure.
type MethodSpec struct {
	// Calls is an ordered sequence of stages; each stage is an ordered
	// sequence of "Service.Method" call-target strings, executed in
	// parallel within the stage. Empty or absent means a leaf method.
	Calls               [][]string        `json:"calls,omitempty" yaml:"calls,omitempty"`
	LatencyDistribution DistributionSpec  `json:"latency_distribution" yaml:"latency_distribution"`
	ErrorRate           *DistributionSpec `json:"error_rate,omitempty" yaml:"error_rate,omitempty"`
}

// DistributionSpec names a probability distribution and its parameters.
// Kind is one of "normal", "uniform", "constant", "exponential", "bernoulli".
type DistributionSpec struct {
	Kind       string             `json:"type" yaml:"type"`
	Parameters map[string]float64 `json:"parameters" yaml:"parameters"`
}

// LoadSpec is the optional load-generation profile: a set of entry points
// the load generator drives from outside the topology.
type LoadSpec struct {
	EntryPoints []EntryPoint `json:"entry_points" yaml:"entry_points"`
}

// EntryPoint names one (service, method) pair to drive at a fixed rate.
type EntryPoint struct {
	Service           string  `json:"service" yaml:"service"`
	Method            string  `json:"method" yaml:"method"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// CallRecord is one observed attempt, successful or not, anywhere in the
// downstream subtree of a single invocation.
type CallRecord struct {
	MethodName         string    `json:"method_name"`
	ResponseReceivedAt Timestamp `json:"response_received_at"`
	WasAnError         bool      `json:"was_an_error"`
}

// Timestamp is a wall-clock seconds+nanos pair, matching the wire format
// in the wire response rather than relying on the codec's own time encoding.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// ServiceRequest is the sole RPC request shape: name the method to invoke.
type ServiceRequest struct {
	MethodName string `json:"method_name"`
}

// ServiceResponse is the sole RPC response shape: the method invoked, and
// the accumulated trace of every downstream attempt it observed.
type ServiceResponse struct {
	MethodName string       `json:"method_name"`
	Calls      []CallRecord `json:"calls"`
}

// ConfigParseError reports a malformed topology document, naming the
// offending path within the document.
type ConfigParseError struct {
	Path   string
	Reason string
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("config parse error at %s: %s", e.Path, e.Reason)
}
