package llm

import (
	"context"
	"sync/atomic"
)

type requestStateKey struct{}

type requestState struct {
	timedOut atomic.Bool
}

// WithRequestScope 为一次请求记录大模型状态。
// 同一请求内任意一次调用超时后，后续 Extract 直接返回 false。
func WithRequestScope(ctx context.Context) context.Context {
	if _, ok := ctx.Value(requestStateKey{}).(*requestState); ok {
		return ctx
	}
	return context.WithValue(ctx, requestStateKey{}, &requestState{})
}

// TimedOut 当前请求中是否已有大模型调用超时
func TimedOut(ctx context.Context) bool {
	s, ok := ctx.Value(requestStateKey{}).(*requestState)
	return ok && s.timedOut.Load()
}

func markTimedOut(ctx context.Context) {
	if s, ok := ctx.Value(requestStateKey{}).(*requestState); ok {
		s.timedOut.Store(true)
	}
}
