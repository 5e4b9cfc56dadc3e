package link

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/elx/pkg/msgs"
)

func allMessages() []msgs.SerializableMessage {
	long := strings.Repeat("z", msgs.MaxStringLen)
	return []msgs.SerializableMessage{
		&msgs.SetWifiCredentials{SSID: "office", Password: "pa\x00ss"},
		&msgs.SetWifiCredentials{SSID: long, Password: long},
		&msgs.SetApiKey{Provider: msgs.ProviderFingrid, Key: "A"},
		&msgs.SetApiKey{Provider: msgs.ProviderEntsoe, Key: long},
		&msgs.DisplayCommand{Text: "22.4 c/kWh"},
		&msgs.DisplayCommand{},
		msgs.NewCommandOK(),
		&msgs.CommandErr{Reason: long},
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, msg := range allMessages() {
		frame, err := Encode(msg)
		require.NoError(t, err)
		require.LessOrEqual(t, len(frame), MaxFrameSize)
		require.Equal(t, len(frame)-1, bytes.IndexByte(frame, Delimiter), "delimiter must only be the last byte")
		decoded, err := Decode(frame)
		require.NoError(t, err)
		require.Equal(t, msg, decoded)
	}
}

func TestEncodeRejectsLongField(t *testing.T) {
	_, err := Encode(&msgs.DisplayCommand{Text: strings.Repeat("x", msgs.MaxStringLen+1)})
	require.ErrorIs(t, err, msgs.ErrFieldTooLong)
}

func TestEncodePayloadTooLarge(t *testing.T) {
	_, err := EncodePayload(make([]byte, MaxPayloadSize+1))
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecodeBitFlip(t *testing.T) {
	for _, msg := range allMessages() {
		frame, err := Encode(msg)
		require.NoError(t, err)
		for i := 0; i < len(frame)-1; i++ {
			for bit := uint(0); bit < 8; bit++ {
				corrupted := append([]byte(nil), frame...)
				corrupted[i] ^= 1 << bit
				decoded, err := Decode(corrupted)
				require.Error(t, err, "byte %d bit %d of %v", i, bit, msg)
				require.Nil(t, decoded)
				require.True(t, IsFrameError(err, ChecksumMismatch) || IsFrameError(err, Malformed), "%v", err)
			}
		}
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	frame, err := Encode(&msgs.DisplayCommand{Text: "hello"})
	require.NoError(t, err)
	// last data byte before the delimiter is part of the CRC.
	frame[len(frame)-2] ^= 0x01
	_, err = Decode(frame)
	require.True(t, IsFrameError(err, ChecksumMismatch), "%v", err)
}

func TestDecodeMalformed(t *testing.T) {
	testCases := []struct {
		name  string
		frame []byte
	}{
		{name: "empty", frame: nil},
		{name: "no delimiter", frame: []byte{1, 2, 3}},
		{name: "zero inside", frame: []byte{3, 0, 1, 0}},
		{name: "truncated block", frame: []byte{9, 1, 2, 0}},
		{name: "short payload", frame: []byte{3, 1, 2, 0}},
		{name: "too large", frame: append(bytes.Repeat([]byte{1}, MaxFrameSize), 0)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.frame)
			require.True(t, IsFrameError(err, Malformed), "%v", err)
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	payload, err := (&msgs.Typed{TypeId: 0x1234}).Encode()
	require.NoError(t, err)
	frame, err := EncodePayload(payload)
	require.NoError(t, err)
	_, err = Decode(frame)
	require.True(t, IsFrameError(err, Malformed), "%v", err)
	var unknown *msgs.ErrUnknownType
	require.ErrorAs(t, err, &unknown)
}

func TestCOBS(t *testing.T) {
	testCases := [][]byte{
		{},
		{0},
		{0, 0},
		{1, 0, 2},
		bytes.Repeat([]byte{7}, 253),
		bytes.Repeat([]byte{7}, 254),
		bytes.Repeat([]byte{7}, 255),
		append(bytes.Repeat([]byte{7}, 254), 0),
	}
	for _, src := range testCases {
		enc := cobsEncode(src, nil)
		require.NotContains(t, enc, byte(0))
		require.LessOrEqual(t, len(enc), cobsMaxEncodedLen(len(src)))
		dec, err := cobsDecode(enc)
		require.NoError(t, err)
		require.Equal(t, src, dec)
	}
}

func TestDecodeTail(t *testing.T) {
	frame, err := Encode(&msgs.DisplayCommand{Text: "tail"})
	require.NoError(t, err)
	garbage := []byte{0x11, 0x22, 0x33, 0x44, 0x55}
	msg, skipped, err := DecodeTail(append(append([]byte(nil), garbage...), frame...))
	require.NoError(t, err)
	require.Equal(t, len(garbage), skipped)
	require.Equal(t, &msgs.DisplayCommand{Text: "tail"}, msg)

	_, _, err = DecodeTail(append(garbage, 0))
	require.Error(t, err)
}
