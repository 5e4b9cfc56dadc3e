package display

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskApply(t *testing.T) {
	var out bytes.Buffer
	task := NewTask(NewMailbox(), &TextRenderer{Writer: &out})
	at := time.Date(2024, time.March, 5, 13, 4, 59, 0, time.UTC)
	for _, cmd := range []Command{
		Status("connecting to %s", "home"),
		SetBrightness{Level: 0x80},
		SetTime{Time: at},
		Off{},
	} {
		task.Apply(cmd)
	}
	state := task.State()
	require.False(t, state.On)
	require.Equal(t, "connecting to home", state.Status)
	require.Equal(t, uint8(0x80), state.Brightness)
	require.Equal(t, "Mar 05 13:04:59", state.TimeText())

	task.Apply(Fill{Color: Red})
	require.Equal(t, Red, task.State().Background)
	require.Empty(t, task.State().Status)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "[off #ff0000 50%] Mar 05 13:04:59 |", lines[4])
}

func TestTextRendererSkipsUnchanged(t *testing.T) {
	var out bytes.Buffer
	r := &TextRenderer{Writer: &out}
	s := State{On: true, Status: "x"}
	require.NoError(t, r.Render(s))
	require.NoError(t, r.Render(s))
	require.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func TestTaskRun(t *testing.T) {
	mb := NewMailbox()
	renderedCh := make(chan State, 2)
	task := NewTask(mb, RenderFunc(func(s State) error {
		renderedCh <- s
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()
	require.NoError(t, mb.Send(ctx, Status("hello")))
	require.NoError(t, mb.Send(ctx, Off{}))
	require.Equal(t, "hello", (<-renderedCh).Status)
	require.False(t, (<-renderedCh).On)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestClock(t *testing.T) {
	mb := NewMailbox()
	clock := NewClock(mb, time.UTC)
	clock.Interval = time.Millisecond
	now := time.Date(2024, time.January, 1, 0, 0, 0, 500, time.UTC)
	clock.Now = func() time.Time { return now }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go clock.Run(ctx)
	for n := 0; n < 3; n++ {
		cmd, err := mb.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, SetTime{Time: now.Truncate(time.Second)}, cmd)
	}
}
