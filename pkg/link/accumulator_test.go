package link

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/elx/pkg/msgs"
)

type accTestStep struct {
	in        []byte
	frames    int
	overflows int
	truncated bool
}

type accTestBuilder struct {
	steps []accTestStep
}

func accSteps() *accTestBuilder {
	return &accTestBuilder{}
}

func (b *accTestBuilder) push(in ...byte) *accTestBuilder {
	b.steps = append(b.steps, accTestStep{in: in})
	return b
}

func (b *accTestBuilder) pushN(v byte, n int) *accTestBuilder {
	return b.push(bytes.Repeat([]byte{v}, n)...)
}

func (b *accTestBuilder) frames(n int) *accTestBuilder {
	b.steps[len(b.steps)-1].frames = n
	return b
}

func (b *accTestBuilder) overflow() *accTestBuilder {
	b.steps[len(b.steps)-1].overflows = 1
	return b
}

func (b *accTestBuilder) truncated() *accTestBuilder {
	b.steps[len(b.steps)-1].truncated = true
	return b
}

func TestAccumulator(t *testing.T) {
	testCases := []struct {
		name  string
		steps *accTestBuilder
	}{
		{
			name:  "frame per delimiter",
			steps: accSteps().push(1, 2, 0).frames(1).push(3, 0, 4, 0).frames(2),
		},
		{
			name:  "bare delimiters ignored",
			steps: accSteps().push(0, 0, 0).push(5, 0).frames(1),
		},
		{
			name:  "fill window exactly",
			steps: accSteps().pushN(1, MaxFrameSize-1).push(0).frames(1),
		},
		{
			name: "overflow reported once",
			steps: accSteps().
				pushN(1, MaxFrameSize-1).
				push(1).overflow().
				pushN(1, 3*MaxFrameSize).
				push(0).frames(1).truncated().
				push(2, 0).frames(1),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var acc Accumulator
			for n, step := range tc.steps.steps {
				frames, overflows, truncated := 0, 0, false
				for _, b := range step.in {
					r := acc.Push(b)
					if r.Err != nil {
						require.Equal(t, AccumulationOverflow, r.Err.Kind)
						overflows++
					}
					if r.Frame != nil {
						require.LessOrEqual(t, len(r.Frame), MaxFrameSize)
						require.Equal(t, Delimiter, r.Frame[len(r.Frame)-1])
						frames++
						truncated = truncated || r.Truncated
					}
				}
				require.Equal(t, step.frames, frames, "step %d", n)
				require.Equal(t, step.overflows, overflows, "step %d", n)
				require.Equal(t, step.truncated, truncated, "step %d", n)
			}
		})
	}
}

type streamReadWriter struct {
	*bytes.Reader
	written bytes.Buffer
}

func (s *streamReadWriter) Write(p []byte) (int, error) {
	return s.written.Write(p)
}

func receiveAll(t *testing.T, stream []byte) ([]msgs.SerializableMessage, Stats) {
	l := New(&streamReadWriter{Reader: bytes.NewReader(stream)})
	var received []msgs.SerializableMessage
	l.Handler = HandleMessageFunc(func(_ context.Context, msg msgs.SerializableMessage) {
		received = append(received, msg)
	})
	require.ErrorIs(t, l.Run(context.Background()), io.EOF)
	return received, l.Stats()
}

func TestLinkResync(t *testing.T) {
	first := &msgs.SetApiKey{Provider: msgs.ProviderFingrid, Key: "A"}
	second := &msgs.SetApiKey{Provider: msgs.ProviderFingrid, Key: "B"}
	f1, err := Encode(first)
	require.NoError(t, err)
	f2, err := Encode(second)
	require.NoError(t, err)

	testCases := []struct {
		name      string
		garbage   []byte
		overflows uint64
	}{
		{name: "short garbage", garbage: []byte{0x41, 0x42, 0x43, 0xff, 0x07}},
		{name: "overflowing garbage", garbage: bytes.Repeat([]byte{0xa5}, 3*MaxFrameSize), overflows: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var stream []byte
			stream = append(stream, f1...)
			stream = append(stream, tc.garbage...)
			stream = append(stream, f2...)
			received, stats := receiveAll(t, stream)
			require.Equal(t, []msgs.SerializableMessage{first, second}, received)
			require.Equal(t, tc.overflows, stats.Overflows)
			require.Equal(t, uint64(2), stats.Received)
			require.Equal(t, uint64(1), stats.Recovered)
		})
	}
}

func TestLinkDropsCorrupted(t *testing.T) {
	good, err := Encode(&msgs.DisplayCommand{Text: "ok"})
	require.NoError(t, err)
	bad := append([]byte(nil), good...)
	bad[2] ^= 0x10
	var stream []byte
	stream = append(stream, bad...)
	stream = append(stream, good...)
	received, stats := receiveAll(t, stream)
	require.Equal(t, []msgs.SerializableMessage{&msgs.DisplayCommand{Text: "ok"}}, received)
	require.Equal(t, uint64(1), stats.Dropped)
}
