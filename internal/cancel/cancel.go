// SPDX-License-Identifier: MIT

// Package cancel provides the process-wide cancellation token shared by
// all pipeline stages. It wraps context cancellation with a
// human-readable reason that survives into failure records.
package cancel

import (
	"context"
	"errors"
	"fmt"
)

// Reason is the cause recorded when a token is cancelled.
type Reason struct {
	Msg string
}

func (r *Reason) Error() string {
	return fmt.Sprintf("cancelled: %s", r.Msg)
}

// Is makes Reason match context.Canceled so existing errors.Is checks
// on the cause keep working.
func (r *Reason) Is(target error) bool {
	return target == context.Canceled
}

// Token is a cancellation handle. Workers hold the Context; control
// paths call Cancel with a reason. The zero value is not usable; create
// tokens with New.
type Token struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// New derives a token from parent. Cancelling the parent cancels the
// token; cancelling the token does not affect the parent.
func New(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancelFn := context.WithCancelCause(parent)
	return &Token{ctx: ctx, cancel: cancelFn}
}

// Context returns the context workers should observe.
func (t *Token) Context() context.Context { return t.ctx }

// Cancel fires the token with the given reason. Subsequent calls are
// no-ops; the first reason wins.
func (t *Token) Cancel(reason string) {
	t.cancel(&Reason{Msg: reason})
}

// Cancelled reports whether the token has fired (or its parent).
func (t *Token) Cancelled() bool {
	return t.ctx.Err() != nil
}

// ReasonText returns the reason the token was cancelled with, or a
// fallback description when cancellation came from the parent context.
// Empty when the token has not fired.
func (t *Token) ReasonText() string {
	cause := context.Cause(t.ctx)
	if cause == nil {
		return ""
	}
	var r *Reason
	if errors.As(cause, &r) {
		return r.Msg
	}
	return cause.Error()
}

// Err returns the context error, nil while the token is live.
func (t *Token) Err() error {
	return t.ctx.Err()
}
