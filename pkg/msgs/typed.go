package msgs

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"
)

// TypeID masks
const (
	TypeIDMaskReply uint32 = 0x00008000
	TypeIDMaskID    uint32 = 0x00007fff
)

// Typed wraps a message with type information.
type Typed struct {
	TypeId  uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Message []byte `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

// ProtoMessage implements proto.Message.
func (p *Typed) ProtoMessage() {}

// Reset implements proto.Message.
func (p *Typed) Reset() { *p = Typed{} }

// String implements proto.Message.
func (p *Typed) String() string { return proto.CompactTextString(p) }

// ErrUnknownType indicates unknown type id.
type ErrUnknownType struct {
	TypeID uint32
}

// Error implements error.
func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown type: %x", e.TypeID)
}

var (
	// ErrNotSerializable indicates the message is not serializable.
	ErrNotSerializable = errors.New("not serializable message")
)

// SerializableMessage can be serialized over the wire.
type SerializableMessage interface {
	proto.Message
	// NewMessage creates an empty message of the same type.
	NewMessage() SerializableMessage
	TypeID() uint32
	// Validate checks the bounds of all fields.
	Validate() error
}

// MessageTypes are predefined mapping of type ID to messages.
var MessageTypes = map[uint32]SerializableMessage{
	SetWifiCredentialsTypeID: (*SetWifiCredentials)(nil),
	SetApiKeyTypeID:          (*SetApiKey)(nil),
	DisplayCommandTypeID:     (*DisplayCommand)(nil),
	CommandOKTypeID:          (*CommandOK)(nil),
	CommandErrTypeID:         (*CommandErr)(nil),
}

// TypedFrom creates a Typed from a serializable message.
func TypedFrom(msg SerializableMessage) (*Typed, error) {
	if msg == nil {
		return nil, ErrNotSerializable
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &Typed{TypeId: msg.TypeID(), Message: data}, nil
}

// Decode decodes the envelope into actual message.
func (p *Typed) Decode() (SerializableMessage, error) {
	msgType, ok := MessageTypes[p.TypeId]
	if !ok {
		return nil, &ErrUnknownType{TypeID: p.TypeId}
	}
	msg := msgType.NewMessage()
	if err := proto.Unmarshal(p.Message, msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode encodes the Typed to bytes.
func (p *Typed) Encode() ([]byte, error) {
	return proto.Marshal(p)
}

// IsResponse determines if the message is a reply from the device.
func (p *Typed) IsResponse() bool {
	return p.TypeId&TypeIDMaskReply != 0
}

// IsCommand determines if the message is a command from the host.
func (p *Typed) IsCommand() bool {
	return !p.IsResponse()
}

// DecodeTyped decodes bytes into Typed.
func DecodeTyped(data []byte) (*Typed, error) {
	var typed Typed
	if err := proto.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	return &typed, nil
}

// Marshal encodes msg within a Typed envelope.
func Marshal(msg SerializableMessage) ([]byte, error) {
	typed, err := TypedFrom(msg)
	if err != nil {
		return nil, err
	}
	return typed.Encode()
}

// Unmarshal decodes a Typed envelope and the message inside.
func Unmarshal(data []byte) (SerializableMessage, error) {
	typed, err := DecodeTyped(data)
	if err != nil {
		return nil, err
	}
	return typed.Decode()
}
