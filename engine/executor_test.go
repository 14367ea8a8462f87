package engine

import (
	"errors"
	"sync/atomic"
	"testing"

	"toposim/topology"
)

// fakeDialer answers Call by looking up a canned response or error keyed by
// "service.method", and optionally failing the first N attempts for a leg
// before succeeding, to exercise the retry loop.
type fakeDialer struct {
	responses  map[string]*topology.ServiceResponse
	failBefore map[string]int32 // key → number of failures before success
	attempts   map[string]*int32
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		responses:  make(map[string]*topology.ServiceResponse),
		failBefore: make(map[string]int32),
		attempts:   make(map[string]*int32),
	}
}

func (f *fakeDialer) Call(serviceName, methodName string) (*topology.ServiceResponse, error) {
	key := serviceName + "." + methodName
	if f.attempts[key] == nil {
		var z int32
		f.attempts[key] = &z
	}
	n := atomic.AddInt32(f.attempts[key], 1)
	if threshold, ok := f.failBefore[key]; ok && n <= threshold {
		return nil, errors.New("simulated dial/leg failure")
	}
	if resp, ok := f.responses[key]; ok {
		return resp, nil
	}
	return &topology.ServiceResponse{MethodName: methodName}, nil
}

func TestExecuteLeaf(t *testing.T) {
	dialer := newFakeDialer()
	exec := NewExecutor(dialer)

	trace := exec.Execute(nil)
	if len(trace) != 0 {
		t.Fatalf("expected empty trace for leaf method, got %v", trace)
	}
}

func TestExecuteSequentialChain(t *testing.T) {
	// A.m → [["B.m"]]; B.m's own response already carries [["C.m" record]]
	// (as if B had already resolved its own call to C).
	dialer := newFakeDialer()
	dialer.responses["B.m"] = &topology.ServiceResponse{
		MethodName: "m",
		Calls: []topology.CallRecord{
			{MethodName: "m", WasAnError: false},
		},
	}

	exec := NewExecutor(dialer)
	trace := exec.Execute([][]string{{"B.m"}})

	if len(trace) != 2 {
		t.Fatalf("expected 2 records (downstream then own), got %d: %+v", len(trace), trace)
	}
	if trace[1].MethodName != "m" {
		t.Fatalf("expected own record last, got %+v", trace)
	}
}

func TestExecuteFanOutPreservesIndexOrder(t *testing.T) {
	dialer := newFakeDialer()
	exec := NewExecutor(dialer)

	trace := exec.Execute([][]string{{"B.b", "C.c"}})
	if len(trace) != 2 {
		t.Fatalf("expected 2 records, got %d", len(trace))
	}
	if trace[0].MethodName != "b" || trace[1].MethodName != "c" {
		t.Fatalf("expected records in fan-out index order (b, c), got %+v", trace)
	}
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	dialer := newFakeDialer()
	dialer.failBefore["B.m"] = 2 // first two attempts fail, third succeeds

	exec := NewExecutor(dialer)
	trace := exec.Execute([][]string{{"B.m"}})

	var successes, failures int
	for _, rec := range trace {
		if rec.WasAnError {
			failures++
		} else {
			successes++
		}
	}
	if failures != 2 || successes != 1 {
		t.Fatalf("expected 2 failures then 1 success, got failures=%d successes=%d trace=%+v", failures, successes, trace)
	}
	// Retry closure: the last record for this leg must be a success.
	if trace[len(trace)-1].WasAnError {
		t.Fatalf("expected trace to end in success, got %+v", trace)
	}
}

func TestExecuteStageOrdering(t *testing.T) {
	dialer := newFakeDialer()
	exec := NewExecutor(dialer)

	trace := exec.Execute([][]string{{"B.b"}, {"C.c"}})
	if len(trace) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(trace), trace)
	}
	if trace[0].MethodName != "b" || trace[1].MethodName != "c" {
		t.Fatalf("expected stage 0 record before stage 1 record, got %+v", trace)
	}
}
