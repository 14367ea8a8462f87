// Package client implements the RPC client pool: given a target
// service name, yield a reusable channel bound to that service's
// announced address, dialing lazily on first use.
//
// Call flow:
//
//	Call("B", "m2")
//	  → Resolver(serviceName)        → look up "ip:port" in the topology
//	  → getTransport(addr)           → dial on first use, memoised by address
//	  → transport.Send()             → send request, get response channel
//	  → <-channel                    → wait for response
//	  → json.Unmarshal → ServiceResponse
package client

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sync/singleflight"

	"toposim/codec"
	"toposim/topology"
	"toposim/transport"
)

// Resolver maps a service name to its dialable address. In production this
// is backed by the topology itself (ip:port per ServiceSpec); tests can
// supply a static map.
type Resolver func(serviceName string) (addr string, err error)

// Pool caches dialed connections keyed by the address a target service
// name resolves to.
//
// Design: transports are SHARED, not borrowed/returned — each ClientTransport
// multiplexes over a single connection, so there is no benefit to holding one
// exclusively for the duration of a call (only Send() itself needs it, not
// the wait for the response).
//
// Concurrent first-use of the same target is serialised through a
// singleflight.Group keyed by that resolved address: this
// is the "per-key pending-dial future" alternative to holding the pool mutex
// across the dial — all concurrent first callers for the same target share
// one dial, and a failed dial is never cached (singleflight only shares the
// in-flight result, not a memoised failure), so the next caller retries.
type Pool struct {
	resolve   Resolver
	codecType codec.CodecType

	mu         sync.Mutex
	transports map[string]*transport.ClientTransport
	dialGroup  singleflight.Group
}

// NewPool creates a client pool resolving target addresses via resolve and
// encoding requests with codecType.
func NewPool(resolve Resolver, codecType codec.CodecType) *Pool {
	return &Pool{
		resolve:    resolve,
		codecType:  codecType,
		transports: make(map[string]*transport.ClientTransport),
	}
}

// getTransport returns the cached transport for addr, dialing it on first
// use. Concurrent callers racing to dial the same addr for the first time
// all block on the same singleflight call and share its result.
func (p *Pool) getTransport(addr string) (*transport.ClientTransport, error) {
	p.mu.Lock()
	t, ok := p.transports[addr]
	p.mu.Unlock()
	if ok {
		return t, nil
	}

	v, err, _ := p.dialGroup.Do(addr, func() (any, error) {
		// Re-check: another caller may have finished dialing between our
		// cache miss above and acquiring the singleflight slot.
		p.mu.Lock()
		if t, ok := p.transports[addr]; ok {
			p.mu.Unlock()
			return t, nil
		}
		p.mu.Unlock()

		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, err
		}
		newT := transport.NewClientTransport(conn, p.codecType)

		p.mu.Lock()
		p.transports[addr] = newT
		p.mu.Unlock()
		return newT, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*transport.ClientTransport), nil
}

// Call performs a synchronous GetData call against the named target
// service, invoking methodName there.
func (p *Pool) Call(serviceName, methodName string) (*topology.ServiceResponse, error) {
	addr, err := p.resolve(serviceName)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", serviceName, err)
	}

	t, err := p.getTransport(addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	_, ch, err := t.Send(&topology.ServiceRequest{MethodName: methodName})
	if err != nil {
		return nil, fmt.Errorf("send to %s: %w", addr, err)
	}

	resp := <-ch
	if resp.Error != "" {
		return nil, fmt.Errorf("%s: %s", serviceName, resp.Error)
	}

	var out topology.ServiceResponse
	if err := json.Unmarshal(resp.Payload, &out); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", addr, err)
	}
	return &out, nil
}

// TopologyResolver builds a Resolver backed directly by a decoded Topology:
// each service's address is its own ip:port as declared in the document.
func TopologyResolver(top *topology.Topology) Resolver {
	return func(serviceName string) (string, error) {
		svc, ok := top.Services[serviceName]
		if !ok {
			return "", fmt.Errorf("unknown service %q", serviceName)
		}
		return net.JoinHostPort(svc.IP, svc.Port), nil
	}
}
