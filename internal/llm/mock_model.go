package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse MockChatModel 的单次响应
type MockResponse struct {
	Content string
	Error   error
}

// MockChatModel 测试用的 model.ToolCallingChatModel。
// SequentialResponses 非空时按顺序返回，否则每次返回 ExpectedResponse / ExpectedError。
// Hang 为 true 时一直阻塞到 ctx 结束，模拟无响应的后端。
type MockChatModel struct {
	ExpectedResponse string
	ExpectedError    error
	Hang             bool

	SequentialResponses []MockResponse
	ResponseIndex       int

	ReceivedMessages [][]*schema.Message
	ReceivedOptions  []*model.Options

	mu sync.Mutex
}

var _ model.ToolCallingChatModel = (*MockChatModel)(nil)

// NewMockChatModel 返回固定响应
func NewMockChatModel(response string, err error) *MockChatModel {
	return &MockChatModel{ExpectedResponse: response, ExpectedError: err}
}

// NewHangingMockChatModel 每次调用都阻塞到 ctx 结束
func NewHangingMockChatModel() *MockChatModel {
	return &MockChatModel{Hang: true}
}

// NewMockChatModelSequential 按顺序返回不同响应
func NewMockChatModelSequential(responses ...MockResponse) *MockChatModel {
	return &MockChatModel{SequentialResponses: responses}
}

// Generate 实现 model.ChatModel
func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	received := make([]*schema.Message, len(input))
	copy(received, input)
	m.ReceivedMessages = append(m.ReceivedMessages, received)
	m.ReceivedOptions = append(m.ReceivedOptions, model.GetCommonOptions(&model.Options{}, opts...))

	if m.Hang {
		m.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(m.SequentialResponses) > 0 {
		if m.ResponseIndex >= len(m.SequentialResponses) {
			return nil, errors.New("mock model has run out of sequential responses")
		}
		resp := m.SequentialResponses[m.ResponseIndex]
		m.ResponseIndex++
		if resp.Error != nil {
			return nil, resp.Error
		}
		return schema.AssistantMessage(resp.Content, nil), nil
	}

	if m.ExpectedError != nil {
		return nil, m.ExpectedError
	}
	return schema.AssistantMessage(m.ExpectedResponse, nil), nil
}

// Stream 实现 model.ChatModel（未实现）
func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not implemented in MockChatModel")
}

// WithTools 实现 model.ToolCallingChatModel
func (m *MockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// Calls 已收到的调用次数
func (m *MockChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ReceivedMessages)
}
