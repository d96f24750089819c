package ratelimit

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket 基于 rate.Limiter 的令牌桶，附带对限流类错误的退避重试
type TokenBucket struct {
	limiter       *rate.Limiter
	retryWaitTime time.Duration // 首次重试等待时间，之后每次翻倍
	maxRetries    int
}

// NewTokenBucket 创建令牌桶。qpm <= 0 表示不限速；capacity <= 0 时取 QPM 的一半（至少 1）
func NewTokenBucket(qpm int, capacity int) *TokenBucket {
	if capacity <= 0 {
		capacity = qpm / 2
		if capacity <= 0 {
			capacity = 1
		}
	}

	limit := rate.Inf
	if qpm > 0 {
		limit = rate.Limit(float64(qpm) / 60.0) // 转换为每秒速率
	}

	return &TokenBucket{
		limiter:       rate.NewLimiter(limit, capacity),
		retryWaitTime: 1 * time.Second,
		maxRetries:    3,
	}
}

// WithRetryPolicy 设置重试策略，maxRetries 为 0 表示不重试
func (tb *TokenBucket) WithRetryPolicy(waitTime time.Duration, maxRetries int) *TokenBucket {
	if waitTime > 0 {
		tb.retryWaitTime = waitTime
	}
	if maxRetries >= 0 {
		tb.maxRetries = maxRetries
	}
	return tb
}

// Allow 判断是否允许通过一个请求，消耗一个令牌
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait 等待直到有令牌可用
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// RetryWithBackoff 先取令牌再执行 fn；fn 因服务端限流失败时按指数退避重试
func (tb *TokenBucket) RetryWithBackoff(ctx context.Context, fn func() error) error {
	var err error

	for retry := 0; retry <= tb.maxRetries; retry++ {
		if err = tb.Wait(ctx); err != nil {
			return err
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !isRateLimitError(err) || retry >= tb.maxRetries {
			return err
		}

		backoffTime := tb.retryWaitTime * time.Duration(1<<uint(retry))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffTime):
		}
	}

	return err
}

// isRateLimitError 判断是否为服务端限流。
// 网络类错误由调用方自己的重试逻辑处理，这里不重复重试。
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return contains(errStr, []string{
		"429",
		"Too Many Requests",
		"rate limit",
		"RESOURCE_EXHAUSTED",
		"服务器繁忙",
		"请求超过限额",
	})
}

// contains 检查字符串是否包含列表中的任何一个子串
func contains(s string, substrs []string) bool {
	for _, substr := range substrs {
		if substr != "" && strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
