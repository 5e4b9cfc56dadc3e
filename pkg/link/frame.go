package link

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/robotalks/elx/pkg/msgs"
)

const (
	// Delimiter terminates every frame.
	Delimiter byte = 0x00
	// MaxPayloadSize is the max size of a serialized envelope.
	MaxPayloadSize = 160
	// ChecksumSize is the size of the trailing CRC.
	ChecksumSize = 4
	// MaxFrameSize is the max size of a frame on the wire, including the
	// delimiter.
	MaxFrameSize = maxRawSize + maxRawSize/254 + 1 + 1
	// MinFrameSize is the size of a frame carrying an empty payload.
	MinFrameSize = ChecksumSize + 2

	maxRawSize = MaxPayloadSize + ChecksumSize
)

// Encode serializes msg into a frame.
func Encode(msg msgs.SerializableMessage) ([]byte, error) {
	payload, err := msgs.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return EncodePayload(payload)
}

// EncodePayload frames an already serialized envelope.
func EncodePayload(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	raw := make([]byte, len(payload)+ChecksumSize)
	copy(raw, payload)
	binary.LittleEndian.PutUint32(raw[len(payload):], crc32.ChecksumIEEE(payload))
	frame := cobsEncode(raw, make([]byte, 0, cobsMaxEncodedLen(len(raw))+1))
	return append(frame, Delimiter), nil
}

// Decode decodes a frame including the trailing delimiter.
func Decode(frame []byte) (msgs.SerializableMessage, error) {
	payload, err := DecodePayload(frame)
	if err != nil {
		return nil, err
	}
	msg, err := msgs.Unmarshal(payload)
	if err != nil {
		return nil, &FrameError{Kind: Malformed, Err: err}
	}
	return msg, nil
}

// DecodePayload removes stuffing and verifies the checksum, returning the
// serialized envelope.
func DecodePayload(frame []byte) ([]byte, error) {
	if len(frame) == 0 || frame[len(frame)-1] != Delimiter {
		return nil, malformed("missing delimiter")
	}
	if len(frame) > MaxFrameSize {
		return nil, malformed("frame size %d exceeds %d", len(frame), MaxFrameSize)
	}
	raw, err := cobsDecode(frame[:len(frame)-1])
	if err != nil {
		return nil, &FrameError{Kind: Malformed, Err: err}
	}
	if len(raw) < ChecksumSize {
		return nil, malformed("short payload %d bytes", len(raw))
	}
	payload := raw[:len(raw)-ChecksumSize]
	if binary.LittleEndian.Uint32(raw[len(payload):]) != crc32.ChecksumIEEE(payload) {
		return nil, &FrameError{Kind: ChecksumMismatch}
	}
	return payload, nil
}

// DecodeTail decodes the longest valid frame ending at the delimiter of
// frame, skipping leading bytes that belong to garbage or to a frame whose
// beginning was lost. It returns the number of bytes skipped. When nothing
// decodes, the error of decoding the whole frame is returned.
func DecodeTail(frame []byte) (msgs.SerializableMessage, int, error) {
	msg, err := Decode(frame)
	if err == nil {
		return msg, 0, nil
	}
	for skip := 1; len(frame)-skip >= MinFrameSize; skip++ {
		if m, e := Decode(frame[skip:]); e == nil {
			return m, skip, nil
		}
	}
	return nil, len(frame), err
}
