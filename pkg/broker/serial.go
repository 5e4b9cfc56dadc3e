package broker

import (
	"context"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/elx/pkg/link"
	"github.com/robotalks/elx/pkg/msgs"
)

// Serial connects a Link to the broker mailboxes: received messages go to
// Inbox, replies from Outbox are written to the Link. Replies to commands
// of a closed Link are consumed before Run returns, so they never reach
// the next Serial on the same mailboxes.
type Serial struct {
	Link   *link.Link
	Inbox  *Mailbox
	Outbox *Mailbox

	pending int64 // commands sent to Inbox and not replied
}

// NewSerial creates a Serial and installs itself as the Link handler.
func NewSerial(l *link.Link, inbox, outbox *Mailbox) *Serial {
	s := &Serial{Link: l, Inbox: inbox, Outbox: outbox}
	l.Handler = s
	return s
}

// Name implements framework.Named.
func (s *Serial) Name() string {
	return "serial"
}

// HandleMessage implements link.MessageHandler.
func (s *Serial) HandleMessage(ctx context.Context, msg msgs.SerializableMessage) {
	if msg.TypeID()&msgs.TypeIDMaskReply != 0 {
		glog.Warningf("serial: unexpected reply %v from host", msg)
		return
	}
	atomic.AddInt64(&s.pending, 1)
	if err := s.Inbox.Send(ctx, msg); err != nil {
		atomic.AddInt64(&s.pending, -1)
		glog.V(1).Infof("serial: inbox closed: %v", err)
	}
}

// Run implements framework.Runnable.
func (s *Serial) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		errCh <- s.Link.Run(subCtx)
	}()
	for {
		select {
		case reply := <-s.Outbox.Chan():
			atomic.AddInt64(&s.pending, -1)
			if err := s.Link.Send(reply); err != nil {
				glog.Errorf("serial: send %v: %v", reply, err)
			}
		case err := <-errCh:
			s.discardPending(ctx)
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending returns the number of commands waiting for a reply.
func (s *Serial) Pending() int {
	return int(atomic.LoadInt64(&s.pending))
}

func (s *Serial) discardPending(ctx context.Context) {
	for s.Pending() > 0 {
		select {
		case reply := <-s.Outbox.Chan():
			atomic.AddInt64(&s.pending, -1)
			glog.V(1).Infof("serial: link closed, reply %v discarded", reply)
		case <-ctx.Done():
			return
		}
	}
}
