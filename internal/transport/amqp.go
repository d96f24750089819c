package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cv-sidecar/internal/config"
	"cv-sidecar/internal/storage"
	"cv-sidecar/internal/tracing"
)

var amqpTracer = tracing.Tracer("transport/amqp")

// Replier 把响应发回请求方
type Replier interface {
	PublishReply(ctx context.Context, replyTo, correlationID string, body []byte) error
}

// AMQPServer 从请求队列消费请求，把响应发到消息的 ReplyTo
type AMQPServer struct {
	handler *Handler
	cfg     config.AMQPConfig
	logger  zerolog.Logger
}

// NewAMQPServer 创建 AMQP 服务
func NewAMQPServer(h *Handler, cfg config.AMQPConfig, logger zerolog.Logger) *AMQPServer {
	return &AMQPServer{handler: h, cfg: cfg, logger: logger}
}

// Serve 连接 RabbitMQ 并消费请求，连接断开时按 retry_interval 重连。
// ctx 取消或收到 shutdown 请求时返回。
func (s *AMQPServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	retry := config.GetDuration(s.cfg.RetryInterval, 5*time.Second)
	for {
		err := s.serveOnce(ctx, cancel)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn().Err(err).Dur("retry_in", retry).Msg("RabbitMQ连接中断，稍后重连")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retry):
		}
	}
}

func (s *AMQPServer) serveOnce(ctx context.Context, shutdown context.CancelFunc) error {
	mq, err := storage.NewRabbitMQ(s.cfg.URL, s.logger)
	if err != nil {
		return err
	}
	defer mq.Close()

	if err := mq.EnsureQueue(s.cfg.RequestQueue, true); err != nil {
		return err
	}
	closed := mq.NotifyClose()

	workers := max(s.cfg.Workers, 1)
	stops := make([]chan<- struct{}, 0, workers)
	dones := make([]<-chan struct{}, 0, workers)
	for i := 0; i < workers; i++ {
		stop, done, err := mq.StartConsumer(s.cfg.RequestQueue, s.cfg.PrefetchCount, func(d amqp.Delivery) bool {
			return s.handleDelivery(ctx, mq, d, shutdown)
		})
		if err != nil {
			for _, st := range stops {
				close(st)
			}
			return err
		}
		stops = append(stops, stop)
		dones = append(dones, done)
	}

	var result error
	select {
	case <-ctx.Done():
	case amqpErr := <-closed:
		result = fmt.Errorf("连接已关闭: %v", amqpErr)
	}

	for _, st := range stops {
		close(st)
	}
	for _, done := range dones {
		<-done
	}
	return result
}

// handleDelivery 处理一条请求。返回 true 表示确认消息。
// 回复发送失败时拒绝消息；没有 ReplyTo 的请求照常处理，只是丢弃响应。
func (s *AMQPServer) handleDelivery(ctx context.Context, r Replier, d amqp.Delivery, shutdown context.CancelFunc) bool {
	ctx, span := amqpTracer.Start(ctx, "amqp.HandleRequest", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "rabbitmq"),
		attribute.String("messaging.conversation_id", d.CorrelationId),
	)

	resp, stop := s.handler.HandleLine(ctx, d.Body, nil)
	body, err := json.Marshal(resp)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		body, _ = json.Marshal(errorResponse(resp.ID, err.Error()))
	}

	if d.ReplyTo == "" {
		s.logger.Warn().Str("correlation_id", d.CorrelationId).Msg("请求没有 ReplyTo，响应被丢弃")
	} else if err := r.PublishReply(ctx, d.ReplyTo, d.CorrelationId, body); err != nil {
		tracing.RecordAMQPNack(span, d.CorrelationId, err.Error())
		s.logger.Error().Err(err).Str("reply_to", d.ReplyTo).Msg("发送响应失败")
		return false
	}

	if stop && shutdown != nil {
		shutdown()
	}
	return true
}
