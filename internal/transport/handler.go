package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cv-sidecar/internal/constants"
	"cv-sidecar/internal/extractor"
	"cv-sidecar/internal/logger"
	"cv-sidecar/internal/normalizer"
	"cv-sidecar/internal/orchestrator"
	"cv-sidecar/internal/storage"
	"cv-sidecar/internal/types"
)

// DocumentFetcher 把远程文档下载到本地临时文件，*storage.MinIO 实现它
type DocumentFetcher interface {
	FetchToTemp(ctx context.Context, uri string) (localPath string, cleanup func(), err error)
}

// Emitter 在最终响应之前输出额外的行（例如 extract_cv 的确认行）
type Emitter func(v any) error

// Handler 解析请求并分发到各 action。
// 所有入口共用一个 Handler，请求串行处理。
type Handler struct {
	pipeline    *orchestrator.Pipeline
	fetcher     DocumentFetcher
	logger      zerolog.Logger
	nerModel    string
	modelLoaded bool

	mu sync.Mutex
}

// HandlerOption 选项
type HandlerOption func(*Handler)

// WithFetcher 启用 minio:// 路径
func WithFetcher(f DocumentFetcher) HandlerOption {
	return func(h *Handler) {
		h.fetcher = f
	}
}

// WithHandlerLogger 设置日志
func WithHandlerLogger(l zerolog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithModelInfo health_check 中报告的实体识别模型
func WithModelInfo(name string, loaded bool) HandlerOption {
	return func(h *Handler) {
		h.nerModel = name
		h.modelLoaded = loaded
	}
}

// NewHandler 创建请求处理器
func NewHandler(p *orchestrator.Pipeline, opts ...HandlerOption) *Handler {
	h := &Handler{pipeline: p, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ModelName 启动状态行里报告的模型名
func (h *Handler) ModelName() string {
	return h.nerModel
}

// HandleLine 处理一行原始请求。
// 返回的 shutdown 为 true 时调用方应在写出响应后停止。
func (h *Handler) HandleLine(ctx context.Context, line []byte, emit Emitter) (resp Response, shutdown bool) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{Success: false, Error: "Invalid JSON: " + err.Error()}, false
	}
	return h.Handle(ctx, req, emit)
}

// Handle 处理一个请求，永远返回一个响应
func (h *Handler) Handle(ctx context.Context, req Request, emit Emitter) (resp Response, shutdown bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := req.ID
	if id == "" {
		id = UnknownID
	}
	requestID := req.ID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = logger.WithRequestID(ctx, h.logger, requestID)
	log := logger.Ctx(ctx)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("action", req.Action).Msg("处理请求时发生panic")
			resp = errorResponse(id, fmt.Sprintf("internal error: %v", r))
			shutdown = false
		}
		log.Debug().
			Str("action", req.Action).
			Bool("success", resp.Success).
			Dur("elapsed", time.Since(start)).
			Msg("请求处理完成")
	}()

	switch req.Action {
	case ActionHealthCheck:
		return okResponse(id, h.health(ctx)), false

	case ActionParseDocument:
		var p filePathParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(id, err.Error()), false
		}
		result, err := h.parseDocument(ctx, p.FilePath)
		if err != nil {
			return errorResponse(id, err.Error()), false
		}
		return okResponse(id, result), false

	case ActionExtractCV:
		var p filePathParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(id, err.Error()), false
		}
		mode, err := orchestrator.ParseMode(p.Mode)
		if err != nil {
			return errorResponse(id, err.Error()), false
		}
		if emit != nil {
			if err := emit(Ack{ID: id, Status: constants.StatusProcessing}); err != nil {
				log.Warn().Err(err).Msg("写出确认行失败")
			}
		}
		cv, err := h.extractCV(ctx, p.FilePath, mode)
		if err != nil {
			return errorResponse(id, err.Error()), false
		}
		return okResponse(id, cv), false

	case ActionDetectSections:
		var p textParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(id, err.Error()), false
		}
		sections := extractor.DetectSections(p.Text)
		if sections == nil {
			sections = []types.Section{}
		}
		return okResponse(id, sections), false

	case ActionNormalizeDate:
		var p dateParams
		if err := decodeParams(req.Params, &p); err != nil {
			return errorResponse(id, err.Error()), false
		}
		return okResponse(id, map[string]string{"normalized": normalizer.NormalizeDate(p.Date)}), false

	case ActionResetLLM:
		available := h.pipeline.Hybrid().ResetLLM(ctx)
		log.Info().Bool("llm_available", available).Msg("大模型可用性已重新探测")
		return okResponse(id, map[string]bool{"llm_available": available}), false

	case ActionShutdown:
		log.Info().Msg("收到 shutdown 请求")
		return okResponse(id, map[string]string{"status": constants.StatusShuttingDown}), true

	default:
		return errorResponse(id, "Unknown action: "+req.Action), false
	}
}

// Health 当前健康状态
func (h *Handler) Health(ctx context.Context) HealthData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.health(ctx)
}

func (h *Handler) health(ctx context.Context) HealthData {
	hybrid := h.pipeline.Hybrid()
	return HealthData{
		Status:       constants.StatusHealthy,
		Model:        h.nerModel,
		ModelLoaded:  h.modelLoaded,
		LLMAvailable: hybrid.LLMAvailable(ctx),
		LLMModel:     hybrid.Model(),
	}
}

func (h *Handler) parseDocument(ctx context.Context, path string) (*types.ParseResult, error) {
	local, cleanup, err := h.resolvePath(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return h.pipeline.Parse(ctx, local)
}

func (h *Handler) extractCV(ctx context.Context, path string, mode orchestrator.Mode) (*types.ParsedCV, error) {
	local, cleanup, err := h.resolvePath(ctx, path)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	cv, err := h.pipeline.ExtractCV(ctx, local, mode)
	if errors.Is(err, orchestrator.ErrDocumentUnreadable) {
		// 只把文档本身的说明返回给调用方
		return nil, errors.New(strings.TrimPrefix(err.Error(), orchestrator.ErrDocumentUnreadable.Error()+": "))
	}
	return cv, err
}

// resolvePath minio:// 路径下载到临时文件，其余原样返回
func (h *Handler) resolvePath(ctx context.Context, path string) (string, func(), error) {
	noop := func() {}
	if strings.TrimSpace(path) == "" {
		return "", noop, errors.New("Missing required parameter: file_path")
	}
	if !storage.IsObjectURI(path) {
		return path, noop, nil
	}
	if h.fetcher == nil {
		return "", noop, fmt.Errorf("MinIO is not configured, cannot read %s", path)
	}
	local, cleanup, err := h.fetcher.FetchToTemp(ctx, path)
	if err != nil {
		return "", noop, err
	}
	return local, cleanup, nil
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("Invalid params: %w", err)
	}
	return nil
}
