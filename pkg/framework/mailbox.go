package framework

import "context"

// Mailbox is a bounded FIFO queue with a single consumer.
// Send suspends the producer while the mailbox is full, nothing is dropped.
type Mailbox[T any] struct {
	ch chan T
}

// NewMailbox creates a Mailbox with the given capacity.
func NewMailbox[T any](capacity int) *Mailbox[T] {
	if capacity <= 0 {
		capacity = DefaultMailboxCapacity
	}
	return &Mailbox[T]{ch: make(chan T, capacity)}
}

// Send enqueues v, waiting for space until ctx is done.
func (m *Mailbox[T]) Send(ctx context.Context, v T) error {
	select {
	case m.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues v only if there's space.
func (m *Mailbox[T]) TrySend(v T) bool {
	select {
	case m.ch <- v:
		return true
	default:
		return false
	}
}

// Receive dequeues the oldest value, waiting until one is available or ctx
// is done.
func (m *Mailbox[T]) Receive(ctx context.Context) (v T, err error) {
	select {
	case v = <-m.ch:
		return v, nil
	case <-ctx.Done():
		return v, ctx.Err()
	}
}

// Chan exposes the receiving side for use in select statements.
func (m *Mailbox[T]) Chan() <-chan T {
	return m.ch
}

// Len returns the number of queued values.
func (m *Mailbox[T]) Len() int {
	return len(m.ch)
}

// Cap returns the capacity.
func (m *Mailbox[T]) Cap() int {
	return cap(m.ch)
}
