package framework

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Starter is implemented by Runnables which must complete some setup
// before being spawned. A Start error aborts startup of the whole Runner.
type Starter interface {
	Start(context.Context) error
}

// DefaultMailboxCapacity is the capacity of every mailbox between tasks.
const DefaultMailboxCapacity = 10
