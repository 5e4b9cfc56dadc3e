package msgs

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/golang/protobuf/proto"
)

// MaxStringLen is the maximum length in bytes of any string field.
const MaxStringLen = 64

// TypeIDs
const (
	SetWifiCredentialsTypeID uint32 = 0x0001
	SetApiKeyTypeID          uint32 = 0x0002
	DisplayCommandTypeID     uint32 = 0x0003
	CommandOKTypeID          uint32 = TypeIDMaskReply | 0x0000
	CommandErrTypeID         uint32 = TypeIDMaskReply | 0x0001
)

var (
	// ErrFieldTooLong indicates a string field exceeds MaxStringLen.
	ErrFieldTooLong = errors.New("field too long")
	// ErrInvalidUTF8 indicates a string field is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8")
	// ErrUnknownProvider indicates the API key provider is not supported.
	ErrUnknownProvider = errors.New("unknown provider")
)

func checkString(field, s string) error {
	if len(s) > MaxStringLen {
		return fmt.Errorf("%s: %w (%d > %d bytes)", field, ErrFieldTooLong, len(s), MaxStringLen)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s: %w", field, ErrInvalidUTF8)
	}
	return nil
}

// Truncate cuts s to at most MaxStringLen bytes without splitting a rune.
func Truncate(s string) string {
	if len(s) <= MaxStringLen {
		return s
	}
	n := MaxStringLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// SetWifiCredentials command.
type SetWifiCredentials struct {
	SSID     string `protobuf:"bytes,1,opt,name=ssid,proto3" json:"ssid,omitempty"`
	Password string `protobuf:"bytes,2,opt,name=password,proto3" json:"password,omitempty"`
}

// NewMessage implements SerializableMessage.
func (m *SetWifiCredentials) NewMessage() SerializableMessage { return &SetWifiCredentials{} }

// TypeID implements SerializableMessage.
func (m *SetWifiCredentials) TypeID() uint32 { return SetWifiCredentialsTypeID }

// Validate implements SerializableMessage.
func (m *SetWifiCredentials) Validate() error {
	if err := checkString("ssid", m.SSID); err != nil {
		return err
	}
	return checkString("password", m.Password)
}

// ProtoMessage implements proto.Message.
func (m *SetWifiCredentials) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SetWifiCredentials) Reset() { *m = SetWifiCredentials{} }

// String implements proto.Message. The password is masked.
func (m *SetWifiCredentials) String() string {
	return fmt.Sprintf("ssid:%q password:%q", m.SSID, strings.Repeat("*", len(m.Password)))
}

// Provider identifies the price API an API key belongs to.
type Provider int32

// Providers
const (
	ProviderFingrid Provider = 0
	ProviderEntsoe  Provider = 1
)

var providerNames = map[Provider]string{
	ProviderFingrid: "fingrid",
	ProviderEntsoe:  "entsoe",
}

// String returns the lower case provider name.
func (p Provider) String() string {
	if name, ok := providerNames[p]; ok {
		return name
	}
	return fmt.Sprintf("provider(%d)", int32(p))
}

// IsValid indicates the provider is known.
func (p Provider) IsValid() bool {
	_, ok := providerNames[p]
	return ok
}

// ParseProvider parses a provider name, case insensitive.
func ParseProvider(name string) (Provider, error) {
	for p, n := range providerNames {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// SetApiKey command.
type SetApiKey struct {
	Provider Provider `protobuf:"varint,1,opt,name=provider,proto3" json:"provider,omitempty"`
	Key      string   `protobuf:"bytes,2,opt,name=key,proto3" json:"key,omitempty"`
}

// NewMessage implements SerializableMessage.
func (m *SetApiKey) NewMessage() SerializableMessage { return &SetApiKey{} }

// TypeID implements SerializableMessage.
func (m *SetApiKey) TypeID() uint32 { return SetApiKeyTypeID }

// Validate implements SerializableMessage.
func (m *SetApiKey) Validate() error {
	if !m.Provider.IsValid() {
		return fmt.Errorf("%w: %d", ErrUnknownProvider, int32(m.Provider))
	}
	return checkString("key", m.Key)
}

// ProtoMessage implements proto.Message.
func (m *SetApiKey) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SetApiKey) Reset() { *m = SetApiKey{} }

// String implements proto.Message.
func (m *SetApiKey) String() string { return proto.CompactTextString(m) }

// DisplayCommand shows a text on the device display.
type DisplayCommand struct {
	Text string `protobuf:"bytes,1,opt,name=text,proto3" json:"text,omitempty"`
}

// NewMessage implements SerializableMessage.
func (m *DisplayCommand) NewMessage() SerializableMessage { return &DisplayCommand{} }

// TypeID implements SerializableMessage.
func (m *DisplayCommand) TypeID() uint32 { return DisplayCommandTypeID }

// Validate implements SerializableMessage.
func (m *DisplayCommand) Validate() error { return checkString("text", m.Text) }

// ProtoMessage implements proto.Message.
func (m *DisplayCommand) ProtoMessage() {}

// Reset implements proto.Message.
func (m *DisplayCommand) Reset() { *m = DisplayCommand{} }

// String implements proto.Message.
func (m *DisplayCommand) String() string { return proto.CompactTextString(m) }

// CommandOK is the reply indicating the command took effect.
type CommandOK struct {
}

// NewCommandOK creates a CommandOK.
func NewCommandOK() *CommandOK {
	return &CommandOK{}
}

// NewMessage implements SerializableMessage.
func (m *CommandOK) NewMessage() SerializableMessage { return &CommandOK{} }

// TypeID implements SerializableMessage.
func (m *CommandOK) TypeID() uint32 { return CommandOKTypeID }

// Validate implements SerializableMessage.
func (m *CommandOK) Validate() error { return nil }

// ProtoMessage implements proto.Message.
func (m *CommandOK) ProtoMessage() {}

// Reset implements proto.Message.
func (m *CommandOK) Reset() { *m = CommandOK{} }

// String implements proto.Message.
func (m *CommandOK) String() string { return "OK" }

// CommandErr is the reply indicating the command did not take effect.
type CommandErr struct {
	Reason string `protobuf:"bytes,1,opt,name=reason,proto3" json:"reason,omitempty"`
}

// NewCommandErr creates a CommandErr from an error.
func NewCommandErr(err error) *CommandErr {
	return NewCommandErrFromMsg(err.Error())
}

// NewCommandErrFromMsg creates a CommandErr, the reason is truncated
// to MaxStringLen.
func NewCommandErrFromMsg(reason string) *CommandErr {
	if !utf8.ValidString(reason) {
		reason = strings.ToValidUTF8(reason, "?")
	}
	return &CommandErr{Reason: Truncate(reason)}
}

// NewMessage implements SerializableMessage.
func (m *CommandErr) NewMessage() SerializableMessage { return &CommandErr{} }

// TypeID implements SerializableMessage.
func (m *CommandErr) TypeID() uint32 { return CommandErrTypeID }

// Validate implements SerializableMessage.
func (m *CommandErr) Validate() error { return checkString("reason", m.Reason) }

// ProtoMessage implements proto.Message.
func (m *CommandErr) ProtoMessage() {}

// Reset implements proto.Message.
func (m *CommandErr) Reset() { *m = CommandErr{} }

// String implements proto.Message.
func (m *CommandErr) String() string { return proto.CompactTextString(m) }

// Error implements error.
func (m *CommandErr) Error() string { return m.Reason }
