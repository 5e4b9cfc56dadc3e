package link

import (
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/elx/pkg/msgs"
)

// Result is the result of a command using Do.
type Result struct {
	Err   error
	Reply msgs.SerializableMessage
}

// Client provides host side operations over a Link.
// The device replies exactly once per command in receipt order, so replies
// are matched to commands first in, first out.
type Client struct {
	link     *Link
	eventCh  chan msgs.SerializableMessage
	cmdsHead *Command
	cmdsTail *Command
	cmdsLock sync.Mutex
}

// Command represents a pending command waiting for reply.
type Command struct {
	Request  msgs.SerializableMessage
	resultCh chan Result
	next     *Command
}

// ResultChan returns the chan to retrieve result.
func (c *Command) ResultChan() <-chan Result {
	return c.resultCh
}

// Wait waits for the result.
func (c *Command) Wait(ctx context.Context) (msgs.SerializableMessage, error) {
	select {
	case r := <-c.resultCh:
		return r.Reply, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NewClient creates client and wraps the link.
func NewClient(link *Link) *Client {
	c := &Client{
		link:    link,
		eventCh: make(chan msgs.SerializableMessage, 1),
	}
	c.link.Handler = c
	return c
}

// Link gets wrapped Link.
func (c *Client) Link() *Link {
	return c.link
}

// EventChan retrieves messages which are not replies.
func (c *Client) EventChan() <-chan msgs.SerializableMessage {
	return c.eventCh
}

// DoWith sends a command and expects a result in the provided chan.
func (c *Client) DoWith(msg msgs.SerializableMessage, ch chan Result) *Command {
	cmd := &Command{Request: msg, resultCh: ch}

	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	if err := c.link.Send(msg); err != nil {
		cmd.resultCh <- Result{Err: err}
		return cmd
	}
	if c.cmdsHead == nil {
		c.cmdsHead = cmd
	} else {
		c.cmdsTail.next = cmd
	}
	c.cmdsTail = cmd
	return cmd
}

// Do sends a command and returns a Command for result.
func (c *Client) Do(msg msgs.SerializableMessage) *Command {
	return c.DoWith(msg, make(chan Result, 1))
}

// Pending returns the number of commands waiting for reply.
func (c *Client) Pending() (n int) {
	c.cmdsLock.Lock()
	defer c.cmdsLock.Unlock()
	for curr := c.cmdsHead; curr != nil; curr = curr.next {
		n++
	}
	return
}

// HandleMessage implements MessageHandler.
func (c *Client) HandleMessage(ctx context.Context, msg msgs.SerializableMessage) {
	if msg.TypeID()&msgs.TypeIDMaskReply == 0 {
		select {
		case c.eventCh <- msg:
		default:
			glog.Warningf("%s: event %T dropped", c.link.Name, msg)
		}
		return
	}
	c.cmdsLock.Lock()
	cmd := c.cmdsHead
	if cmd != nil {
		if c.cmdsHead = cmd.next; c.cmdsHead == nil {
			c.cmdsTail = nil
		}
		cmd.next = nil
	}
	c.cmdsLock.Unlock()
	if cmd == nil {
		glog.Warningf("%s: unexpected reply %v", c.link.Name, msg)
		return
	}
	if e, ok := msg.(*msgs.CommandErr); ok {
		cmd.resultCh <- Result{Err: e, Reply: msg}
	} else {
		cmd.resultCh <- Result{Reply: msg}
	}
}

// Run wraps Link.Run to implement Runnable. Pending commands fail with
// ErrLinkClosed when it returns.
func (c *Client) Run(ctx context.Context) error {
	err := c.link.Run(ctx)
	c.cmdsLock.Lock()
	head := c.cmdsHead
	c.cmdsHead, c.cmdsTail = nil, nil
	c.cmdsLock.Unlock()
	for ; head != nil; head = head.next {
		head.resultCh <- Result{Err: ErrLinkClosed}
	}
	return err
}
