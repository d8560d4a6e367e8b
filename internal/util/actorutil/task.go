package actorutil

import (
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

// BackgroundTask runs a blocking function off the actor goroutine and delivers the
// outcome as a message. Panics and timeouts reach the recover function, so a task
// with a recover function always produces one message. With a late function, a
// value that arrives after the timeout is delivered as a second message.
type BackgroundTask[T any] struct {
	sender  actor.SenderContext
	fn      func() T
	timeout time.Duration
	recover func(error) T
	late    func(T) T
}

// NewBackgroundTask captures the root context of the actor system: actor.Context
// must not be used outside the actor goroutine.
func NewBackgroundTask[T any](ctx actor.Context, fn func() T) *BackgroundTask[T] {
	return &BackgroundTask[T]{
		sender: ctx.ActorSystem().Root,
		fn:     fn,
	}
}

func (t *BackgroundTask[T]) WithTimeout(timeout time.Duration) *BackgroundTask[T] {
	t.timeout = timeout
	return t
}

func (t *BackgroundTask[T]) Recover(fn func(error) T) *BackgroundTask[T] {
	t.recover = fn
	return t
}

// Late maps the value of a function that completed after its timeout.
func (t *BackgroundTask[T]) Late(fn func(T) T) *BackgroundTask[T] {
	t.late = fn
	return t
}

// Result blocks until the function returns, fails or times out.
func (t *BackgroundTask[T]) Result() (T, bool) {
	value, _, ok := t.run()
	return value, ok
}

// run returns the outcome and, after a timeout, a channel that yields the value
// once the function completes. The channel is closed without a value on panic.
func (t *BackgroundTask[T]) run() (T, <-chan T, bool) {
	done := make(chan T, 1)
	task := io.Eval(func() (T, error) {
		defer close(done)
		value := t.fn()
		done <- value
		return value, nil
	})
	if t.timeout > 0 {
		task = io.WithTimeout[T](t.timeout)(task)
	}
	res := io.RunSync(task)
	if res.Error == nil {
		return res.Value, nil, true
	}
	if t.recover != nil {
		return t.recover(res.Error), done, true
	}
	var zero T
	return zero, done, false
}

// PipeTo starts the task and sends its outcome to pid.
func (t *BackgroundTask[T]) PipeTo(pid *actor.PID) {
	go func() {
		value, done, ok := t.run()
		if ok {
			t.sender.Send(pid, value)
		}
		if done == nil || t.late == nil {
			return
		}
		if value, finished := <-done; finished {
			t.sender.Send(pid, t.late(value))
		}
	}()
}
