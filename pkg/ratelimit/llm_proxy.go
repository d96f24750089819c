package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Policy 简历提取调用大模型时的限速和限流重试参数
type Policy struct {
	QPM        int           // 每分钟请求数，<= 0 不限速
	Burst      int           // 令牌桶容量，<= 0 时取 QPM 的一半
	MaxRetries int           // 服务端返回限流时的重试次数
	RetryWait  time.Duration // 首次重试等待，之后翻倍
}

// ThrottledChatModel 给简历提取用的 ChatModel 加上按 QPM 限速。
// 只在服务端明确限流（429 等）时重试；超时和网络错误原样返回，
// 由 llm.ChatExtractor 决定是否重试或把本次请求降级为正则。
type ThrottledChatModel struct {
	inner  model.ToolCallingChatModel
	bucket *TokenBucket
}

var _ model.ToolCallingChatModel = (*ThrottledChatModel)(nil)

// Throttle 按 Policy 包装 chat。QPM <= 0 时原样返回 chat
func Throttle(chat model.ToolCallingChatModel, p Policy) model.ToolCallingChatModel {
	if p.QPM <= 0 {
		return chat
	}
	return &ThrottledChatModel{
		inner:  chat,
		bucket: NewTokenBucket(p.QPM, p.Burst).WithRetryPolicy(p.RetryWait, p.MaxRetries),
	}
}

// throttled 在令牌桶下执行一次调用
func throttled[T any](ctx context.Context, bucket *TokenBucket, call func() (T, error)) (T, error) {
	var out T
	err := bucket.RetryWithBackoff(ctx, func() error {
		var err error
		out, err = call()
		return err
	})
	return out, err
}

// Generate 实现 model.ChatModel
func (m *ThrottledChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return throttled(ctx, m.bucket, func() (*schema.Message, error) {
		return m.inner.Generate(ctx, messages, opts...)
	})
}

// Stream 实现 model.ChatModel。提取只用 Generate，这里保持同样的限速
func (m *ThrottledChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return throttled(ctx, m.bucket, func() (*schema.StreamReader[*schema.Message], error) {
		return m.inner.Stream(ctx, messages, opts...)
	})
}

// WithTools 实现 model.ToolCallingChatModel，新模型与原模型共用令牌桶
func (m *ThrottledChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	inner, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &ThrottledChatModel{inner: inner, bucket: m.bucket}, nil
}
