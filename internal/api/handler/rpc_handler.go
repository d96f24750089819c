// Package handler 实现 HTTP 入口的请求处理，协议与 stdio 相同，一次请求一个信封。
package handler

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"

	"cv-sidecar/internal/transport"
)

// RPCHandler 把 HTTP 请求体当作一行协议请求交给 transport.Handler
type RPCHandler struct {
	dispatcher *transport.Handler
	logger     zerolog.Logger
	onShutdown func()
}

// NewRPCHandler 创建 HTTP 处理器。onShutdown 在 shutdown 请求的响应写出后异步调用，可以为 nil。
func NewRPCHandler(d *transport.Handler, logger zerolog.Logger, onShutdown func()) *RPCHandler {
	return &RPCHandler{dispatcher: d, logger: logger, onShutdown: onShutdown}
}

// HandleRPC POST /api/v1/rpc
//
// 信封无法解析时返回 400；其余情况一律 200，成功与否看 success 字段。
// HTTP 下 extract_cv 不输出确认行。
func (h *RPCHandler) HandleRPC(c context.Context, ctx *app.RequestContext) {
	body := bytes.TrimSpace(ctx.Request.Body())
	if len(body) == 0 {
		ctx.JSON(consts.StatusBadRequest, transport.Response{Success: false, Error: "Invalid JSON: empty request body"})
		return
	}

	var req transport.Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Debug().Err(err).Msg("HTTP 请求体不是合法 JSON")
		ctx.JSON(consts.StatusBadRequest, transport.Response{Success: false, Error: "Invalid JSON: " + err.Error()})
		return
	}

	resp, shutdown := h.dispatcher.Handle(c, req, nil)
	ctx.JSON(consts.StatusOK, resp)

	if shutdown && h.onShutdown != nil {
		h.logger.Info().Msg("HTTP 收到 shutdown 请求")
		go h.onShutdown()
	}
}

// HandleHealth GET /api/v1/health，不需要鉴权
func (h *RPCHandler) HandleHealth(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, h.dispatcher.Health(c))
}
