package codec

import (
	"encoding/binary"
	"errors"

	"toposim/message"
)

// BinaryCodec implements a custom binary serialization for message.Envelope.
//
// Binary format:
//
//	┌──────────────┬─────────┬────────────┬───────┐
//	│ PayloadLen(4)│ Payload │ ErrLen(2)  │ Error │
//	└──────────────┴─────────┴────────────┴───────┘
//
// Note: the payload itself (ServiceRequest/ServiceResponse) is still
// JSON-encoded. The gain comes from encoding the outer envelope fields in
// binary instead of JSON, avoiding field-name and string-escaping overhead.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	env, ok := v.(*message.Envelope)
	if !ok {
		return nil, errors.New("BinaryCodec: v must be *message.Envelope")
	}

	total := 4 + len(env.Payload) + 2 + len(env.Error)
	buf := make([]byte, total)
	offset := 0

	binary.BigEndian.PutUint32(buf[offset:offset+4], uint32(len(env.Payload)))
	offset += 4
	copy(buf[offset:offset+len(env.Payload)], env.Payload)
	offset += len(env.Payload)

	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(env.Error)))
	offset += 2
	copy(buf[offset:offset+len(env.Error)], []byte(env.Error))

	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	env, ok := v.(*message.Envelope)
	if !ok {
		return errors.New("BinaryCodec: v must be *message.Envelope")
	}

	offset := 0

	payloadLen := binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	env.Payload = make([]byte, payloadLen)
	copy(env.Payload, data[offset:offset+int(payloadLen)])
	offset += int(payloadLen)

	errLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2
	env.Error = string(data[offset : offset+int(errLen)])

	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}
