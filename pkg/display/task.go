package display

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
)

// State is what the screen shows.
type State struct {
	On         bool
	Status     string
	Background Color
	Brightness uint8
	Time       time.Time
}

// TimeText formats the clock the way it's drawn.
func (s State) TimeText() string {
	if s.Time.IsZero() {
		return "--- -- --:--:--"
	}
	return s.Time.Format("Jan 02 15:04:05")
}

// Renderer draws a State.
type Renderer interface {
	Render(State) error
}

// RenderFunc is func type of Renderer.
type RenderFunc func(State) error

// Render implements Renderer.
func (f RenderFunc) Render(s State) error {
	return f(s)
}

// Renderers fans out to multiple renderers.
type Renderers []Renderer

// Render implements Renderer.
func (r Renderers) Render(s State) error {
	var firstErr error
	for _, renderer := range r {
		if err := renderer.Render(s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TextRenderer writes one line per state change.
type TextRenderer struct {
	Writer io.Writer
	last   State
	drawn  bool
}

// Render implements Renderer.
func (r *TextRenderer) Render(s State) error {
	if r.drawn && r.last == s {
		return nil
	}
	r.last, r.drawn = s, true
	power := "off"
	if s.On {
		power = "on"
	}
	_, err := fmt.Fprintf(r.Writer, "[%s %s %d%%] %s | %s\n",
		power, s.Background, int(s.Brightness)*100/255, s.TimeText(), s.Status)
	return err
}

// Task applies commands from a Mailbox and renders the result.
type Task struct {
	Mailbox  *Mailbox
	Renderer Renderer

	state State
}

// NewTask creates a display task. The screen starts on at full brightness.
func NewTask(mailbox *Mailbox, renderer Renderer) *Task {
	return &Task{
		Mailbox:  mailbox,
		Renderer: renderer,
		state:    State{On: true, Background: White, Brightness: 0xff},
	}
}

// Name implements framework.Named.
func (t *Task) Name() string {
	return "display"
}

// State returns the current state, only safe to call when the task isn't
// running.
func (t *Task) State() State {
	return t.state
}

// Apply applies one command and renders.
func (t *Task) Apply(cmd Command) {
	cmd.apply(&t.state)
	if _, ok := cmd.(SetTime); !ok {
		glog.V(2).Infof("display: %T %+v", cmd, cmd)
	}
	if t.Renderer == nil {
		return
	}
	if err := t.Renderer.Render(t.state); err != nil {
		glog.Warningf("display: render error: %v", err)
	}
}

// Run implements framework.Runnable.
func (t *Task) Run(ctx context.Context) error {
	for {
		cmd, err := t.Mailbox.Receive(ctx)
		if err != nil {
			return err
		}
		t.Apply(cmd)
	}
}
