// Package server implements the RPC transport glue: it serves
// the single GetData method over the wire protocol, running every request
// through the middleware chain before handing it to the simulated
// endpoint (engine.Endpoint).
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → Codec.Decode → Middleware Chain → businessHandler → Codec.Encode → write response
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"toposim/codec"
	"toposim/engine"
	"toposim/message"
	"toposim/middleware"
	"toposim/protocol"
	"toposim/topology"
)

// Server serves one generic-service instance's GetData method.
type Server struct {
	endpoint    *engine.Endpoint
	listener    net.Listener
	wg          sync.WaitGroup
	shutdown    atomic.Bool
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc
}

// NewServer creates a server dispatching every request to endpoint.
func NewServer(endpoint *engine.Endpoint) *Server {
	return &Server{endpoint: endpoint}
}

// Use registers a middleware. Middlewares are applied in the order they
// are added — the first one added is the outermost layer.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Serve listens on address and enters the Accept loop, blocking until the
// listener is closed (by Shutdown) or a real Accept error occurs.
func (svr *Server) Serve(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	svr.listener = listener

	// Build the middleware chain once at startup, not per request.
	svr.handler = middleware.Chain(svr.middlewares...)(svr.businessHandler)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		go svr.handleConn(conn)
	}
}

// handleConn reads frames off one connection sequentially (reads must be
// sequential to parse frame boundaries) but dispatches each request to its
// own goroutine so a slow request never blocks the ones behind it.
//
// writeMu is shared by every request goroutine spawned for this connection,
// preventing frame interleaving when two responses are written concurrently.
func (svr *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			break
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

// handleRequest decodes one frame, runs it through the middleware chain and
// business handler, and writes the response frame back.
func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	svr.wg.Add(1)
	defer svr.wg.Done()

	c := codec.GetCodec(codec.CodecType(header.CodecType))
	env := message.Envelope{}
	c.Decode(body, &env)

	respEnv := svr.handler(context.Background(), &env)

	writeMu.Lock()
	defer writeMu.Unlock()

	result, err := c.Encode(respEnv)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode response envelope")
		return
	}

	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq,
		BodyLen:   uint32(len(result)),
	}
	if err := protocol.Encode(conn, &replyHeader, result); err != nil {
		log.Error().Err(err).Msg("failed to write response frame")
	}
}

// Shutdown stops accepting new connections and waits up to timeout for
// in-flight requests to finish.
func (svr *Server) Shutdown(timeout time.Duration) error {
	svr.shutdown.Store(true)
	svr.listener.Close()

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for ongoing requests to finish")
	}
}

// businessHandler decodes the ServiceRequest carried in the envelope
// payload, invokes the simulated endpoint, and re-encodes its response (or
// error) as the outgoing envelope. A SimulatedError or ErrUnknownMethod
// from the endpoint surfaces as the envelope's Error field, exactly as the
// transport's internal-error status does on the wire.
func (svr *Server) businessHandler(ctx context.Context, req *message.Envelope) *message.Envelope {
	var svcReq topology.ServiceRequest
	if err := json.Unmarshal(req.Payload, &svcReq); err != nil {
		return &message.Envelope{Error: err.Error()}
	}

	resp, err := svr.endpoint.Handle(svcReq.MethodName)
	if err != nil {
		return &message.Envelope{Error: err.Error()}
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return &message.Envelope{Error: err.Error()}
	}
	return &message.Envelope{Payload: payload}
}
