// Package message defines the wire envelope exchanged between generic-service
// instances. It is the "envelope" for every GetData call: serialized by the
// codec layer and wrapped in a protocol frame for transmission over TCP.
package message

// Envelope carries the data for a single GetData request or response.
//
//   - On request:  Payload holds the serialized ServiceRequest, Error is empty.
//   - On response: Payload holds the serialized ServiceResponse; Error is
//     non-empty if the simulated endpoint failed (UnknownMethod, SimulatedError).
//
// There is exactly one RPC method in this system, so unlike a general
// purpose RPC envelope there is no service/method routing field here — the
// method name being invoked travels inside the ServiceRequest payload itself.
type Envelope struct {
	Error   string
	Payload []byte
}
