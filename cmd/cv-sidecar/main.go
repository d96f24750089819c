package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"cv-sidecar/internal/api/handler"
	"cv-sidecar/internal/api/router"
	"cv-sidecar/internal/config"
	"cv-sidecar/internal/extractor"
	"cv-sidecar/internal/llm"
	appCoreLogger "cv-sidecar/internal/logger"
	"cv-sidecar/internal/nlp"
	"cv-sidecar/internal/orchestrator"
	"cv-sidecar/internal/parser"
	"cv-sidecar/internal/storage"
	"cv-sidecar/internal/tracing"
	"cv-sidecar/internal/transport"
)

var (
	version     = "1.0.0"      //nolint:gochecknoglobals
	serviceName = "cv-sidecar" //nolint:gochecknoglobals
)

func main() {
	var configPath, mode string
	var showVersion bool
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.StringVarP(&mode, "mode", "m", "stdio", "Transport: stdio, http, amqp")
	pflag.BoolVarP(&showVersion, "version", "v", false, "Print version and exit")
	pflag.Parse()

	if showVersion {
		fmt.Fprintf(os.Stderr, "%s %s\n", serviceName, version)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, mode); err != nil {
		appCoreLogger.Error().Err(err).Msg("边车异常退出")
		os.Exit(1)
	}
}

func run(cfg *config.Config, mode string) error {
	// stdout 是协议通道
	if mode == "stdio" {
		cfg.Logger.Output = "stderr"
	}
	initLogger(cfg.Logger)
	log := appCoreLogger.Logger.With().Str("mode", mode).Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	serviceTracingName := cfg.Tracing.ServiceName
	if serviceTracingName == "" {
		serviceTracingName = serviceName
	}
	shutdownTracing, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: serviceTracingName,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Warn().Err(err).Msg("初始化链路追踪失败，继续运行")
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		_ = shutdownTracing(flushCtx)
	}()

	store := storage.NewStorage(ctx, cfg, log)
	defer store.Close()

	dispatcher, err := buildHandler(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	log.Info().Str("version", version).Msg("边车初始化完成")

	switch mode {
	case "stdio":
		return transport.NewStdioServer(dispatcher, os.Stdin, os.Stdout, log).Serve(ctx)
	case "amqp":
		return transport.NewAMQPServer(dispatcher, cfg.AMQP, log).Serve(ctx)
	case "http":
		return serveHTTP(ctx, cancel, cfg, dispatcher, log)
	default:
		return fmt.Errorf("未知的运行模式: %s", mode)
	}
}

// buildHandler 组装解析、提取和调度链路
func buildHandler(ctx context.Context, cfg *config.Config, store *storage.Storage, log zerolog.Logger) (*transport.Handler, error) {
	docParser, err := parser.NewFromConfig(ctx, cfg.Parser, log)
	if err != nil {
		return nil, fmt.Errorf("初始化文档解析器失败: %w", err)
	}

	annotator := nlp.NewFromConfig(cfg.NLP, log)
	regex := extractor.New(annotator,
		extractor.WithLogger(log),
		extractor.WithContextWindow(cfg.NLP.ContextWindow),
	)

	// 接口里不能放 nil 指针
	var cache llm.ResponseCache
	if store.LLMCache != nil {
		cache = store.LLMCache
	}
	backend, err := llm.NewFromConfig(ctx, cfg.LLM, cache, log)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.LLM.Provider).Msg("初始化大模型失败，仅使用正则提取")
		backend = llm.Disabled{}
	}

	hybrid := orchestrator.NewHybrid(regex, backend,
		orchestrator.WithHybridLogger(log),
		orchestrator.WithTemperature(cfg.LLM.Temperature),
	)
	pipeline := orchestrator.NewPipeline(docParser, hybrid, log)

	opts := []transport.HandlerOption{
		transport.WithHandlerLogger(log),
		transport.WithModelInfo(nlp.ModelName(cfg.NLP), true),
	}
	if store.MinIO != nil {
		opts = append(opts, transport.WithFetcher(store.MinIO))
	}
	return transport.NewHandler(pipeline, opts...), nil
}

func serveHTTP(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, dispatcher *transport.Handler, log zerolog.Logger) error {
	h := router.NewServer(cfg.Server.Address)
	router.RegisterRoutes(h, handler.NewRPCHandler(dispatcher, log, cancel), cfg.Server.APIKey)
	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP 服务器异常退出: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	glog.Info("正在关闭 HTTP 服务器...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}
	glog.Info("优雅退出完成")
	return nil
}

// initLogger 日志写 stderr，hertz 的 hlog 通过适配器共用同一个 zerolog
func initLogger(cfg config.LoggerConfig) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		TimeFormat:   cfg.TimeFormat,
		ReportCaller: cfg.ReportCaller,
	})

	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	if appCoreLogger.Logger.GetLevel() <= zerolog.DebugLevel {
		glog.SetLevel(glog.LevelDebug)
	} else {
		glog.SetLevel(glog.LevelInfo)
	}
}
