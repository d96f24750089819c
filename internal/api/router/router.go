package router

import (
	"context"
	"crypto/subtle"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"cv-sidecar/internal/api/handler"
	"cv-sidecar/internal/transport"
)

// NewServer 创建带链路追踪中间件的 hertz 服务
func NewServer(address string, opts ...config.Option) *server.Hertz {
	tracer, tracerCfg := hertztracing.NewServerTracer()
	opts = append([]config.Option{
		tracer,
		server.WithHostPorts(address),
		server.WithHandleMethodNotAllowed(true),
	}, opts...)

	h := server.New(opts...)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxDebugf(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxDebugf(c, "Response: status %d", ctx.Response.StatusCode())
	})
	return h
}

// RegisterRoutes 注册 API 路由。apiKey 非空时 /rpc 需要 "Authorization: Bearer <key>"。
func RegisterRoutes(h *server.Hertz, rpc *handler.RPCHandler, apiKey string) {
	api := h.Group("/api/v1")

	handlers := []app.HandlerFunc{rpc.HandleRPC}
	if apiKey != "" {
		handlers = append([]app.HandlerFunc{apiKeyAuth(apiKey)}, handlers...)
	}
	api.POST("/rpc", handlers...)

	// 健康检查
	api.GET("/health", rpc.HandleHealth)
}

func apiKeyAuth(apiKey string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1, nil
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, transport.Response{Success: false, Error: "Unauthorized"})
		}),
	)
}
