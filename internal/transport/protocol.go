// Package transport 实现边车的行分隔 JSON 协议：请求分发以及 stdio 和 AMQP 两种承载方式。
package transport

import "encoding/json"

// 支持的 action
const (
	ActionHealthCheck    = "health_check"
	ActionParseDocument  = "parse_document"
	ActionExtractCV      = "extract_cv"
	ActionDetectSections = "detect_sections"
	ActionNormalizeDate  = "normalize_date"
	ActionResetLLM       = "reset_llm"
	ActionShutdown       = "shutdown"
)

// UnknownID 请求没有 id 时回显的值
const UnknownID = "unknown"

// Request 一行请求
type Request struct {
	ID     string          `json:"id"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response 一行响应。成功时带 Data，失败时带 Error。
// 无法解析的请求没有 id。
type Response struct {
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ack extract_cv 开始处理前先发出的确认行
type Ack struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Status stdio 启动时输出的状态行
type Status struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
}

// HealthData health_check 的返回
type HealthData struct {
	Status       string `json:"status"`
	Model        string `json:"model"`
	ModelLoaded  bool   `json:"model_loaded"`
	LLMAvailable bool   `json:"llm_available"`
	LLMModel     string `json:"llm_model,omitempty"`
}

type filePathParams struct {
	FilePath string `json:"file_path"`
	Mode     string `json:"mode"`
}

type textParams struct {
	Text string `json:"text"`
}

type dateParams struct {
	Date string `json:"date"`
}

func errorResponse(id, msg string) Response {
	return Response{ID: id, Success: false, Error: msg}
}

func okResponse(id string, data any) Response {
	return Response{ID: id, Success: true, Data: data}
}
