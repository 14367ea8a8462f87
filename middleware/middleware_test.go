package middleware

import (
	"context"
	"testing"
	"time"

	"toposim/message"
)

func echoHandler(ctx context.Context, req *message.Envelope) *message.Envelope {
	return &message.Envelope{Payload: []byte("ok")}
}

func slowHandler(ctx context.Context, req *message.Envelope) *message.Envelope {
	time.Sleep(20 * time.Millisecond)
	return &message.Envelope{Payload: []byte("ok")}
}

func erroringHandler(ctx context.Context, req *message.Envelope) *message.Envelope {
	return &message.Envelope{Error: "boom"}
}

func TestLogging(t *testing.T) {
	handler := LoggingMiddleware()(echoHandler)

	resp := handler(context.Background(), &message.Envelope{})

	if resp == nil {
		t.Fatal("expect non-nil response")
	}
	if string(resp.Payload) != "ok" {
		t.Fatalf("expect payload 'ok', got '%s'", string(resp.Payload))
	}
}

func TestLoggingPassesThroughError(t *testing.T) {
	handler := LoggingMiddleware()(erroringHandler)

	resp := handler(context.Background(), &message.Envelope{})

	if resp.Error != "boom" {
		t.Fatalf("expect error 'boom', got '%s'", resp.Error)
	}
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *message.Envelope) *message.Envelope {
				order = append(order, name+".before")
				resp := next(ctx, req)
				order = append(order, name+".after")
				return resp
			}
		}
	}

	chained := Chain(mark("A"), mark("B"))
	handler := chained(echoHandler)

	resp := handler(context.Background(), &message.Envelope{})
	if resp == nil || resp.Error != "" {
		t.Fatalf("expect clean response, got %+v", resp)
	}

	want := []string{"A.before", "B.before", "B.after", "A.after"}
	if len(order) != len(want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestChainWithSlowHandler(t *testing.T) {
	chained := Chain(LoggingMiddleware())
	handler := chained(slowHandler)

	resp := handler(context.Background(), &message.Envelope{})
	if resp.Error != "" {
		t.Fatalf("expect no error, got '%s'", resp.Error)
	}
}
