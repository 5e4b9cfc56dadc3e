// Package display drives the device screen from a mailbox of commands.
package display

import (
	"fmt"
	"time"

	"github.com/robotalks/elx/pkg/framework"
)

// Command is a display update.
type Command interface {
	apply(*State)
}

// Mailbox carries commands to the display task.
type Mailbox = framework.Mailbox[Command]

// NewMailbox creates a display mailbox of default capacity.
func NewMailbox() *Mailbox {
	return framework.NewMailbox[Command](framework.DefaultMailboxCapacity)
}

// Color is a 24bit RGB color.
type Color uint32

// Colors
const (
	White Color = 0xffffff
	Black Color = 0x000000
	Red   Color = 0xff0000
)

func (c Color) String() string {
	return fmt.Sprintf("#%06x", uint32(c))
}

// On turns the screen on.
type On struct{}

// Off turns the screen off.
type Off struct{}

// StatusText replaces the status line.
type StatusText struct {
	Text string
}

// Fill clears the screen with a color.
type Fill struct {
	Color Color
}

// SetBrightness sets the backlight level.
type SetBrightness struct {
	Level uint8
}

// SetTime sets the clock shown on screen.
type SetTime struct {
	Time time.Time
}

func (On) apply(s *State)              { s.On = true }
func (Off) apply(s *State)             { s.On = false }
func (c StatusText) apply(s *State)    { s.Status = c.Text }
func (c SetBrightness) apply(s *State) { s.Brightness = c.Level }
func (c SetTime) apply(s *State)       { s.Time = c.Time }

func (c Fill) apply(s *State) {
	s.Background = c.Color
	s.Status = ""
}

// Status creates a StatusText command.
func Status(format string, args ...interface{}) StatusText {
	return StatusText{Text: fmt.Sprintf(format, args...)}
}
