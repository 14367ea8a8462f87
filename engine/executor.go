// Package engine implements the call-plan executor and the simulated
// endpoint built on top of it: the two components that give a generic
// service instance its behaviour once a request for a method arrives.
package engine

import (
	"strings"
	"sync"
	"time"

	"toposim/topology"
)

// Dialer reaches a downstream service's GetData method. client.Pool
// satisfies this directly.
type Dialer interface {
	Call(serviceName, methodName string) (*topology.ServiceResponse, error)
}

// Executor runs the 2-D call plan (stages serial, fan-out parallel,
// per-leg retry-until-success) for one method invocation.
type Executor struct {
	dial Dialer
}

// NewExecutor builds an Executor that reaches downstream legs through dial.
func NewExecutor(dial Dialer) *Executor {
	return &Executor{dial: dial}
}

// Execute runs every stage of calls in order and returns the flattened
// trace of every attempt observed anywhere in the downstream subtree.
func (e *Executor) Execute(calls [][]string) []topology.CallRecord {
	var trace []topology.CallRecord
	for _, stage := range calls {
		trace = append(trace, e.runStage(stage)...)
	}
	return trace
}

type legOutcome struct {
	methodName string
	resp       *topology.ServiceResponse
	err        error
}

// runStage drives one stage to completion: every leg is retried, in
// parallel with its stage-mates, until it has succeeded at least once.
// Retry rounds are totally ordered; within a round legs race concurrently,
// but their records are appended in original fan-out index order
// regardless of which goroutine finished first.
func (e *Executor) runStage(stage []string) []topology.CallRecord {
	n := len(stage)
	succeeded := make([]bool, n)
	remaining := n

	var trace []topology.CallRecord
	for remaining > 0 {
		outcomes := make([]legOutcome, n)
		var wg sync.WaitGroup

		for i := 0; i < n; i++ {
			if succeeded[i] {
				continue
			}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i] = e.callLeg(stage[i])
			}(i)
		}
		wg.Wait()

		for i := 0; i < n; i++ {
			if succeeded[i] {
				continue
			}
			o := outcomes[i]
			rec := topology.CallRecord{
				MethodName:         o.methodName,
				ResponseReceivedAt: nowTimestamp(),
				WasAnError:         o.err != nil,
			}
			if o.err == nil {
				// The callee's own accumulated trace is causally prior to
				// our record of having called it, so it is spliced in first.
				trace = append(trace, o.resp.Calls...)
				trace = append(trace, rec)
				succeeded[i] = true
				remaining--
			} else {
				trace = append(trace, rec)
			}
		}
	}
	return trace
}

// callLeg dials and invokes one call-target ("Service.Method"). A dial or
// transport failure is reported as a legOutcome carrying the error; it is never
// fatal here, only a signal to runStage to retry on the next round.
func (e *Executor) callLeg(target string) legOutcome {
	serviceName, methodName := splitTarget(target)
	resp, err := e.dial.Call(serviceName, methodName)
	if err != nil {
		return legOutcome{methodName: methodName, err: err}
	}
	return legOutcome{methodName: methodName, resp: resp}
}

// splitTarget breaks a validated "service.method" call-target in two.
// The validator has already guaranteed exactly one dot.
func splitTarget(target string) (service, method string) {
	parts := strings.SplitN(target, ".", 2)
	return parts[0], parts[1]
}

func nowTimestamp() topology.Timestamp {
	now := time.Now()
	return topology.Timestamp{Seconds: now.Unix(), Nanos: int32(now.Nanosecond())}
}
