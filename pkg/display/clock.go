package display

import (
	"context"
	"time"
)

// Clock pushes the local time to the display every Interval.
type Clock struct {
	Mailbox  *Mailbox
	Interval time.Duration
	Location *time.Location
	Now      func() time.Time
}

// NewClock creates a Clock ticking every second in loc.
func NewClock(mailbox *Mailbox, loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{
		Mailbox:  mailbox,
		Interval: time.Second,
		Location: loc,
		Now:      time.Now,
	}
}

// Name implements framework.Named.
func (c *Clock) Name() string {
	return "clock"
}

// Run implements framework.Runnable.
func (c *Clock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	for {
		cmd := SetTime{Time: c.Now().In(c.Location).Truncate(time.Second)}
		if err := c.Mailbox.Send(ctx, cmd); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
