// Package promise provides the deferred computation returned by
// asynchronous assertions: create, resolve, reject, chain, and delay.
//
// Executors run synchronously in New. Callbacks registered with Then run on
// their own goroutine once the promise settles; a promise that never
// settles holds no goroutine. Panics inside executors and callbacks become
// rejections carrying the panic stack.
package promise

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"expectkit/internal/failure"
	"expectkit/internal/logging"
)

// State is the settlement state of a promise.
type State int

const (
	Pending State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Promise is a value available after a suspension.
type Promise struct {
	mu        sync.Mutex
	state     State
	value     any
	reason    error
	done      chan struct{}
	callbacks []func()
}

func newPending() *Promise {
	return &Promise{done: make(chan struct{})}
}

// New runs executor and returns a promise settled by the first call to
// resolve or reject. A panic in executor rejects the promise.
func New(executor func(resolve func(any), reject func(error))) *Promise {
	p := newPending()
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.reject(failure.FromPanic(r))
			}
		}()
		executor(p.resolve, p.reject)
	}()
	return p
}

// Resolve returns a promise fulfilled with v. A *Promise is returned as is.
func Resolve(v any) *Promise {
	if p, ok := v.(*Promise); ok {
		return p
	}
	p := newPending()
	p.resolve(v)
	return p
}

// Reject returns a promise rejected with err.
func Reject(err error) *Promise {
	p := newPending()
	p.reject(err)
	return p
}

// Delay returns a promise settled with the result of fn after d.
func Delay(d time.Duration, fn func() (any, error)) *Promise {
	p := newPending()
	time.AfterFunc(d, func() {
		v, err := invoke(fn)
		if err != nil {
			p.reject(err)
			return
		}
		p.resolve(v)
	})
	return p
}

// Go runs fn on a new goroutine and settles with its result.
func Go(fn func() (any, error)) *Promise {
	p := newPending()
	go func() {
		v, err := invoke(fn)
		if err != nil {
			p.reject(err)
			return
		}
		p.resolve(v)
	}()
	return p
}

func invoke(fn func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failure.FromPanic(r)
		}
	}()
	return fn()
}

// resolve fulfils p with v, adopting the state of v if it is a promise.
func (p *Promise) resolve(v any) {
	if other, ok := v.(*Promise); ok {
		if other == p {
			p.reject(errors.New("promise resolved with itself"))
			return
		}
		other.subscribe(func() {
			if other.State() == Fulfilled {
				p.resolve(other.Value())
			} else {
				p.reject(other.Reason())
			}
		})
		return
	}
	p.settle(Fulfilled, v, nil)
}

func (p *Promise) reject(err error) {
	if err == nil {
		err = errors.New("promise rejected with nil")
	}
	p.settle(Rejected, nil, err)
}

func (p *Promise) settle(state State, v any, err error) {
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	p.state, p.value, p.reason = state, v, err
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	if state == Rejected {
		logging.PromiseDebug("Promise rejected: %v", err)
	}
	for _, cb := range callbacks {
		go cb()
	}
}

// subscribe runs cb once p settles.
func (p *Promise) subscribe(cb func()) {
	p.mu.Lock()
	if p.state == Pending {
		p.callbacks = append(p.callbacks, cb)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	go cb()
}

// Then chains callbacks onto p. A nil callback passes the outcome through.
// A callback returning a *Promise is adopted.
func (p *Promise) Then(onFulfilled func(any) (any, error), onRejected func(error) (any, error)) *Promise {
	next := newPending()
	p.subscribe(func() {
		var (
			v   any
			err error
		)
		if p.State() == Fulfilled {
			if onFulfilled == nil {
				next.resolve(p.Value())
				return
			}
			v, err = invoke(func() (any, error) { return onFulfilled(p.Value()) })
		} else {
			if onRejected == nil {
				next.reject(p.Reason())
				return
			}
			v, err = invoke(func() (any, error) { return onRejected(p.Reason()) })
		}
		if err != nil {
			next.reject(err)
			return
		}
		next.resolve(v)
	})
	return next
}

// Catch chains a rejection handler.
func (p *Promise) Catch(onRejected func(error) (any, error)) *Promise {
	return p.Then(nil, onRejected)
}

// Finally runs fn after p settles and passes the outcome through.
func (p *Promise) Finally(fn func()) *Promise {
	return p.Then(
		func(v any) (any, error) { fn(); return v, nil },
		func(err error) (any, error) { fn(); return nil, err },
	)
}

// State returns the current state.
func (p *Promise) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Value returns the fulfilment value, nil unless fulfilled.
func (p *Promise) Value() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Reason returns the rejection reason, nil unless rejected.
func (p *Promise) Reason() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reason
}

// Done is closed when p settles.
func (p *Promise) Done() <-chan struct{} { return p.done }

// Wait blocks until p settles or ctx ends.
func (p *Promise) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		if p.State() == Rejected {
			return nil, p.Reason()
		}
		return p.Value(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// String describes the promise state for inspection.
func (p *Promise) String() string {
	switch p.State() {
	case Fulfilled:
		return fmt.Sprintf("Promise (fulfilled) => %v", p.Value())
	case Rejected:
		return fmt.Sprintf("Promise (rejected) => %v", p.Reason())
	default:
		return "Promise (pending)"
	}
}
