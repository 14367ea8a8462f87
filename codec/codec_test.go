package codec

import (
	"testing"

	"toposim/message"
)

func TestJSONCodec(t *testing.T) {
	jsonCodec := &JSONCodec{}

	originalMsg := &message.Envelope{
		Payload: []byte(`{"a":1,"b":2}`),
		Error:   "",
	}

	data, err := jsonCodec.Encode(originalMsg)
	if err != nil {
		t.Fatalf("JSONCodec Encode failed: %v", err)
	}

	var decodedMsg message.Envelope
	if err := jsonCodec.Decode(data, &decodedMsg); err != nil {
		t.Fatalf("JSONCodec Decode failed: %v", err)
	}

	if string(originalMsg.Payload) != string(decodedMsg.Payload) {
		t.Errorf("Payload mismatch: got %s, want %s", string(decodedMsg.Payload), string(originalMsg.Payload))
	}
	if originalMsg.Error != decodedMsg.Error {
		t.Errorf("Error mismatch: got %s, want %s", decodedMsg.Error, originalMsg.Error)
	}
}

func TestBinaryCodec(t *testing.T) {
	binaryCodec := &BinaryCodec{}

	originalMsg := &message.Envelope{
		Payload: []byte(`{"a":1,"b":2}`),
		Error:   "",
	}

	data, err := binaryCodec.Encode(originalMsg)
	if err != nil {
		t.Fatalf("BinaryCodec Encode failed: %v", err)
	}

	var decodedMsg message.Envelope
	if err := binaryCodec.Decode(data, &decodedMsg); err != nil {
		t.Fatalf("BinaryCodec Decode failed: %v", err)
	}

	if string(originalMsg.Payload) != string(decodedMsg.Payload) {
		t.Errorf("Payload mismatch: got %s, want %s", string(decodedMsg.Payload), string(originalMsg.Payload))
	}
	if originalMsg.Error != decodedMsg.Error {
		t.Errorf("Error mismatch: got %s, want %s", decodedMsg.Error, originalMsg.Error)
	}
}

func TestBinaryCodecEmptyError(t *testing.T) {
	binaryCodec := &BinaryCodec{}
	original := &message.Envelope{Payload: []byte(`{}`)}

	data, err := binaryCodec.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded message.Envelope
	if err := binaryCodec.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Error != "" {
		t.Errorf("expected empty error, got %q", decoded.Error)
	}
}
