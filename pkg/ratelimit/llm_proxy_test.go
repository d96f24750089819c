package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	errs  []error
	calls int
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	if m.calls <= len(m.errs) && m.errs[m.calls-1] != nil {
		return nil, m.errs[m.calls-1]
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func TestThrottledModelRetriesOnThrottle(t *testing.T) {
	inner := &scriptedModel{errs: []error{errors.New("API 请求失败，状态 429 Too Many Requests")}}
	limited := Throttle(inner, Policy{QPM: 600, MaxRetries: 2, RetryWait: time.Millisecond})

	resp, err := limited.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err, "限流错误应被重试")
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, inner.calls)
}

func TestThrottledModelDoesNotRetryOtherErrors(t *testing.T) {
	for _, e := range []error{
		errors.New("connection refused"),
		context.DeadlineExceeded,
		errors.New("net/http: request canceled (Client.Timeout exceeded while awaiting headers)"),
	} {
		inner := &scriptedModel{errs: []error{e}}
		limited := Throttle(inner, Policy{QPM: 600, MaxRetries: 2, RetryWait: time.Millisecond})

		_, err := limited.Generate(context.Background(), nil)
		require.Error(t, err)
		assert.Equal(t, 1, inner.calls, "%v 交给上层处理", e)
	}
}

func TestThrottle(t *testing.T) {
	inner := &scriptedModel{}
	assert.Same(t, inner, Throttle(inner, Policy{}), "QPM 为 0 时不包装")

	wrapped := Throttle(inner, Policy{QPM: 60, MaxRetries: 1, RetryWait: time.Millisecond})
	throttledModel, ok := wrapped.(*ThrottledChatModel)
	require.True(t, ok)
	assert.Equal(t, 30, throttledModel.bucket.limiter.Burst(), "容量默认取 QPM 的一半")

	withTools, err := wrapped.WithTools(nil)
	require.NoError(t, err)
	assert.Same(t, throttledModel.bucket, withTools.(*ThrottledChatModel).bucket, "WithTools 共用令牌桶")
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow(), "初始令牌可用")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, tb.Wait(ctx), "上下文取消后不应继续等待")
}
