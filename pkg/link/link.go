package link

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/elx/pkg/msgs"
)

// MessageHandler is called when a message is received.
type MessageHandler interface {
	HandleMessage(context.Context, msgs.SerializableMessage)
}

// HandleMessageFunc is func type of MessageHandler.
type HandleMessageFunc func(context.Context, msgs.SerializableMessage)

// HandleMessage implements MessageHandler.
func (f HandleMessageFunc) HandleMessage(ctx context.Context, msg msgs.SerializableMessage) {
	f(ctx, msg)
}

// Stats are counters of a Link.
type Stats struct {
	Received   uint64 // frames decoded
	Sent       uint64 // frames sent
	Dropped    uint64 // frames dropped for checksum or decoding failures
	Overflows  uint64 // accumulation overflows
	Recovered  uint64 // frames decoded after skipping leading bytes
	BytesRead  uint64
	BytesWrite uint64
}

// Link sends and receives frames over a byte stream.
type Link struct {
	Name       string
	ReadWriter io.ReadWriter
	Handler    MessageHandler

	lock      sync.Mutex
	statsLock sync.Mutex
	stats     Stats
	acc       Accumulator
}

// New creates a Link.
func New(rw io.ReadWriter) *Link {
	return &Link{Name: "link", ReadWriter: rw}
}

// Stats returns a snapshot of the counters.
func (l *Link) Stats() Stats {
	l.statsLock.Lock()
	defer l.statsLock.Unlock()
	return l.stats
}

func (l *Link) count(fn func(*Stats)) {
	l.statsLock.Lock()
	fn(&l.stats)
	l.statsLock.Unlock()
}

// Send encodes and writes a message as one frame.
func (l *Link) Send(msg msgs.SerializableMessage) error {
	frame, err := Encode(msg)
	if err != nil {
		return err
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if _, err = l.ReadWriter.Write(frame); err != nil {
		return err
	}
	glog.V(2).Infof("%s: sent %T (%d bytes)", l.Name, msg, len(frame))
	l.count(func(s *Stats) {
		s.Sent++
		s.BytesWrite += uint64(len(frame))
	})
	return nil
}

// Run receives frames until the stream fails or ctx is done.
func (l *Link) Run(ctx context.Context) error {
	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, chunkCh, errCh)
	for {
		select {
		case chunk := <-chunkCh:
			l.count(func(s *Stats) { s.BytesRead += uint64(len(chunk)) })
			for _, b := range chunk {
				l.push(ctx, b)
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Link) readLoop(ctx context.Context, chunkCh chan []byte, errCh chan error) {
	for {
		buf := make([]byte, 64)
		n, err := l.ReadWriter.Read(buf)
		if n > 0 {
			select {
			case chunkCh <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

func (l *Link) push(ctx context.Context, b byte) {
	r := l.acc.Push(b)
	if r.Err != nil {
		glog.Warningf("%s: %v, discarding until next delimiter", l.Name, r.Err)
		l.count(func(s *Stats) { s.Overflows++ })
	}
	if r.Frame == nil {
		return
	}
	msg, skipped, err := DecodeTail(r.Frame)
	if err != nil {
		glog.Warningf("%s: drop %d bytes: %v", l.Name, len(r.Frame), err)
		l.count(func(s *Stats) { s.Dropped++ })
		return
	}
	if skipped > 0 {
		glog.Warningf("%s: skipped %d bytes before frame", l.Name, skipped)
		l.count(func(s *Stats) { s.Recovered++ })
	}
	glog.V(2).Infof("%s: received %T", l.Name, msg)
	l.count(func(s *Stats) { s.Received++ })
	if h := l.Handler; h != nil {
		h.HandleMessage(ctx, msg)
	}
}
