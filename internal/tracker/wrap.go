package tracker

import (
	"context"
	"fmt"
	"time"
)

// HandlerFunc is the shape of a wrappable invocation handler.
type HandlerFunc func(ctx context.Context) error

// Track wraps fn so that every invocation is recorded with wall-clock
// latency, on all exit paths: normal return, error return, and panic. A
// panicking handler is recorded as a failure and the panic resumes
// unchanged. The wrapper carries no aggregation logic; it measures, records,
// and passes the handler's error through unchanged.
func (t *Tracker) Track(name, primitiveType string, fn HandlerFunc) HandlerFunc {
	return func(ctx context.Context) (err error) {
		span := t.StartSpan(name, primitiveType)
		defer func() {
			if r := recover(); r != nil {
				span.End(ctx, fmt.Errorf("panic: %v", r))
				panic(r)
			}
			span.End(ctx, err)
		}()
		return fn(ctx)
	}
}

// Span measures one in-flight invocation. Obtain one from StartSpan before
// the work and call End exactly once when it finishes.
type Span struct {
	t     *Tracker
	name  string
	ptype string
	start time.Time
	done  bool
}

// StartSpan begins timing one invocation of name.
func (t *Tracker) StartSpan(name, primitiveType string) *Span {
	return &Span{t: t, name: name, ptype: primitiveType, start: time.Now()}
}

// End records the invocation with its measured duration. A non-nil err marks
// the call failed; its message goes to the audit log only. Extra calls after
// the first are no-ops.
func (sp *Span) End(ctx context.Context, err error) {
	if sp.done {
		return
	}
	sp.done = true

	duration := time.Since(sp.start).Milliseconds()
	obs := Observation{
		Name:       sp.name,
		Type:       sp.ptype,
		Success:    err == nil,
		DurationMs: &duration,
	}
	if err != nil {
		obs.ErrorMsg = err.Error()
	}
	sp.t.Record(ctx, obs)
}
