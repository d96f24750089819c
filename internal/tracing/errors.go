package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType 错误分类，写入 span 的 error.type 属性
type ErrorType string

const (
	// ErrorTypeParse 文档解析错误
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeLLM 大模型调用错误
	ErrorTypeLLM ErrorType = "llm"
	// ErrorTypeRedis Redis错误
	ErrorTypeRedis ErrorType = "redis"
	// ErrorTypeStorage 对象存储错误
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeAMQP 消息队列错误
	ErrorTypeAMQP ErrorType = "amqp"
	// ErrorTypeValidation 请求参数错误
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeTimeout 超时
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInternal 内部错误
	ErrorTypeInternal ErrorType = "internal"
)

// RecordError 记录错误，添加统一的错误类型和详情
func RecordError(span trace.Span, err error, errorType ErrorType) {
	RecordErrorWithInfo(span, err, errorType)
}

// RecordErrorWithInfo 记录错误并添加额外属性
func RecordErrorWithInfo(span trace.Span, err error, errorType ErrorType, attributes ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}

	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(err.Error(), DefaultMaxLength)),
	)
	if len(attributes) > 0 {
		span.SetAttributes(attributes...)
	}
	span.SetStatus(codes.Error, err.Error())
}

// RecordWarning 把解析告警记成 span 事件，不改变 span 状态
func RecordWarning(span trace.Span, warning string) {
	if span == nil || warning == "" {
		return
	}
	span.AddEvent("warning", trace.WithAttributes(
		attribute.String("warning.message", TruncateString(warning, DefaultMaxLength)),
	))
}

// RecordAMQPNack 记录 AMQP 消息被拒绝
func RecordAMQPNack(span trace.Span, correlationID string, reason string) {
	if span == nil {
		return
	}

	errMsg := "message rejected"
	if reason != "" {
		errMsg = reason
	}
	span.SetAttributes(
		attribute.String("error.type", string(ErrorTypeAMQP)),
		attribute.String("error.message", errMsg),
		attribute.String("messaging.correlation_id", correlationID),
		attribute.String("messaging.error_type", "nack"),
	)
	span.SetStatus(codes.Error, errMsg)
}
