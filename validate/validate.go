// Package validate enforces the structural and semantic invariants of
// invariants on a decoded Topology before it is allowed to run or deploy.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"toposim/distribution"
	"toposim/topology"
)

// InvariantKind names which invariant a Topology violated.
type InvariantKind string

const (
	NoServices          InvariantKind = "NoServices"
	UnknownTarget       InvariantKind = "UnknownTarget"
	MalformedCall       InvariantKind = "MalformedCall"
	BadDistributionKind InvariantKind = "BadDistribution"
	CyclicDependency    InvariantKind = "CyclicDependency"
	UnknownEntryPoint   InvariantKind = "UnknownEntryPoint"
	NonPositiveRPS      InvariantKind = "NonPositiveRPS"
)

// InvariantViolated reports a rejected topology, with the invariant kind
// and a path trail (service → method → stage_index → target) identifying
// where the violation occurred.
type InvariantViolated struct {
	Kind InvariantKind
	Path string
}

func (e *InvariantViolated) Error() string {
	return fmt.Sprintf("invariant violated (%s) at %s", e.Kind, e.Path)
}

// Validate runs every invariant, in order, against a Topology. It
// returns the first violation found — configuration errors are fatal to
// startup, so there is no value in collecting every violation at once the
// way a linter would.
func Validate(top *topology.Topology) error {
	if err := hasServices(top); err != nil {
		return err
	}
	if err := callReferenceIntegrity(top); err != nil {
		return err
	}
	if err := distributionWellFormedness(top); err != nil {
		return err
	}
	if err := loadEntryExistence(top); err != nil {
		return err
	}
	if err := acyclicCallGraph(top); err != nil {
		return err
	}
	return nil
}

func hasServices(top *topology.Topology) error {
	if len(top.Services) == 0 {
		return &InvariantViolated{Kind: NoServices, Path: "services"}
	}
	return nil
}

// callReferenceIntegrity checks every call-target string is well-formed
// ("<service>.<method>", exactly one dot) and resolves to a real
// (service, method) pair in the topology.
func callReferenceIntegrity(top *topology.Topology) error {
	for _, svcName := range sortedServiceNames(top) {
		svc := top.Services[svcName]
		for _, methodName := range sortedMethodNames(svc) {
			method := svc.Methods[methodName]
			for stageIdx, stage := range method.Calls {
				for _, target := range stage {
					path := fmt.Sprintf("%s.%s.stage[%d].%s", svcName, methodName, stageIdx, target)

					parts := strings.Split(target, ".")
					if len(parts) != 2 {
						return &InvariantViolated{Kind: MalformedCall, Path: path}
					}

					targetSvc, ok := top.Services[parts[0]]
					if !ok {
						return &InvariantViolated{Kind: UnknownTarget, Path: path}
					}
					if _, ok := targetSvc.Methods[parts[1]]; !ok {
						return &InvariantViolated{Kind: UnknownTarget, Path: path}
					}
				}
			}
		}
	}
	return nil
}

// distributionWellFormedness constructs every latency and error-rate
// distribution, surfacing distribution.New's own BadDistribution as an
// InvariantViolated with a path trail.
func distributionWellFormedness(top *topology.Topology) error {
	for _, svcName := range sortedServiceNames(top) {
		svc := top.Services[svcName]
		for _, methodName := range sortedMethodNames(svc) {
			method := svc.Methods[methodName]
			path := fmt.Sprintf("%s.%s", svcName, methodName)

			if _, err := distribution.New(method.LatencyDistribution); err != nil {
				return &InvariantViolated{Kind: BadDistributionKind, Path: path + ".latency_distribution"}
			}
			if method.ErrorRate != nil {
				if _, err := distribution.New(*method.ErrorRate); err != nil {
					return &InvariantViolated{Kind: BadDistributionKind, Path: path + ".error_rate"}
				}
			}
		}
	}
	return nil
}

// loadEntryExistence checks every declared entry point resolves to a real
// (service, method) and carries a strictly positive requests_per_second.
func loadEntryExistence(top *topology.Topology) error {
	if top.Load == nil {
		return nil
	}
	for i, ep := range top.Load.EntryPoints {
		path := fmt.Sprintf("load.entry_points[%d]", i)

		svc, ok := top.Services[ep.Service]
		if !ok {
			return &InvariantViolated{Kind: UnknownEntryPoint, Path: path}
		}
		if _, ok := svc.Methods[ep.Method]; !ok {
			return &InvariantViolated{Kind: UnknownEntryPoint, Path: path}
		}
		if ep.RequestsPerSecond <= 0 {
			return &InvariantViolated{Kind: NonPositiveRPS, Path: path}
		}
	}
	return nil
}

// acyclicCallGraph runs a DFS over the union of all (service → called
// service) edges across every method and stage. A back-edge into the
// current recursion stack is a cycle; the offending path is reconstructed
// via a parent map, in the manner of a dependency-graph validator.
func acyclicCallGraph(top *topology.Topology) error {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int, len(top.Services))
	parent := make(map[string]string, len(top.Services))
	names := sortedServiceNames(top)

	var dfs func(name string) error
	dfs = func(name string) error {
		state[name] = visiting

		for _, target := range sortedServiceEdges(top.Services[name]) {
			if _, ok := top.Services[target]; !ok {
				continue // dangling reference — already caught by callReferenceIntegrity
			}

			switch state[target] {
			case visiting:
				path := []string{target, name}
				for cur := name; cur != target; {
					cur = parent[cur]
					path = append(path, cur)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return &InvariantViolated{Kind: CyclicDependency, Path: strings.Join(path, " -> ")}
			case unvisited:
				parent[target] = name
				if err := dfs(target); err != nil {
					return err
				}
			}
		}

		state[name] = visited
		return nil
	}

	for _, name := range names {
		if state[name] == unvisited {
			if err := dfs(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// sortedServiceEdges collects the distinct set of services a given
// service's methods call into, sorted for deterministic cycle paths.
func sortedServiceEdges(svc topology.ServiceSpec) []string {
	seen := make(map[string]bool)
	for _, methodName := range sortedMethodNames(svc) {
		for _, stage := range svc.Methods[methodName].Calls {
			for _, target := range stage {
				parts := strings.Split(target, ".")
				if len(parts) == 2 {
					seen[parts[0]] = true
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func sortedServiceNames(top *topology.Topology) []string {
	names := make([]string, 0, len(top.Services))
	for name := range top.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedMethodNames(svc topology.ServiceSpec) []string {
	names := make([]string, 0, len(svc.Methods))
	for name := range svc.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
