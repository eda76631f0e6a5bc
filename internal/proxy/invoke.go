package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Result is what the handler produces for one invocation.
type Result struct {
	StatusCode int
	Headers    map[string]string
	Body       any
}

// JSON builds a result with a JSON content type.
func JSON(status int, v any) Result {
	return Result{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       v,
	}
}

// Handler is the single catch-all target every record is dispatched to.
type Handler interface {
	Invoke(ctx context.Context, rec Record) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rec Record) (Result, error)

func (f HandlerFunc) Invoke(ctx context.Context, rec Record) (Result, error) {
	return f(ctx, rec)
}

// Invoker runs the handler exactly once per record within a time budget.
type Invoker struct {
	handler Handler
	timeout time.Duration
}

func NewInvoker(h Handler, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Invoker{handler: h, timeout: timeout}
}

type outcome struct {
	res Result
	err error
}

// Invoke runs the handler. A handler that outlives the budget is abandoned and a
// *TimeoutError is returned; its eventual result is discarded. Handler errors and
// panics come back as *InvocationError.
func (i *Invoker) Invoke(ctx context.Context, rec Record) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", p)}
			}
		}()
		res, err := i.handler.Invoke(ctx, rec)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err == nil {
			return o.res, nil
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, &TimeoutError{Budget: i.timeout}
		}
		return Result{}, &InvocationError{Err: o.err}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, &TimeoutError{Budget: i.timeout}
		}
		return Result{}, &InvocationError{Err: ctx.Err()}
	}
}
