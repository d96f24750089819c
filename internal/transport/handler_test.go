package transport

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-sidecar/internal/extractor"
	"cv-sidecar/internal/llm"
	"cv-sidecar/internal/orchestrator"
	"cv-sidecar/internal/parser"
	"cv-sidecar/internal/types"
)

// writeDOCX 把每个段落写成一个 <w:p>，返回临时文件路径
func writeDOCX(t *testing.T, dir string, paragraphs ...string) string {
	t.Helper()
	var body bytes.Buffer
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, "cv.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

type fakeFetcher struct {
	path     string
	err      error
	cleaned  bool
	requests []string
}

func (f *fakeFetcher) FetchToTemp(ctx context.Context, uri string) (string, func(), error) {
	f.requests = append(f.requests, uri)
	if f.err != nil {
		return "", nil, f.err
	}
	return f.path, func() { f.cleaned = true }, nil
}

func newTestHandler(opts ...HandlerOption) *Handler {
	pipeline := orchestrator.NewPipeline(
		parser.New(parser.WithLogger(zerolog.Nop())),
		orchestrator.NewHybrid(extractor.New(nil), llm.Disabled{}),
		zerolog.Nop(),
	)
	opts = append([]HandlerOption{WithModelInfo("prose", true)}, opts...)
	return NewHandler(pipeline, opts...)
}

// roundTrip 把响应序列化再解析成通用 map，方便检查 JSON 形状
func roundTrip(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHandleHealthCheck(t *testing.T) {
	resp, shutdown := newTestHandler().HandleLine(context.Background(), []byte(`{"id": "1", "action": "health_check"}`), nil)
	assert.False(t, shutdown)
	require.True(t, resp.Success)
	assert.Equal(t, "1", resp.ID)

	health, ok := resp.Data.(HealthData)
	require.True(t, ok)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "prose", health.Model)
	assert.True(t, health.ModelLoaded)
	assert.False(t, health.LLMAvailable, "未启用大模型")
}

func TestHandleProtocolErrors(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	resp, _ := h.HandleLine(ctx, []byte(`{not json`), nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Invalid JSON: ")
	assert.NotContains(t, roundTrip(t, resp), "id", "无法解析的请求没有 id")

	resp, _ = h.HandleLine(ctx, []byte(`{"action": "fly"}`), nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown action: fly", resp.Error)
	assert.Equal(t, UnknownID, resp.ID, "缺少 id 时回显 unknown")

	resp, _ = h.HandleLine(ctx, []byte(`{"id": "2", "action": "normalize_date", "params": {"date": 5}}`), nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Invalid params")
}

func TestHandleNormalizeDateAndSections(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	resp, _ := h.HandleLine(ctx, []byte(`{"id": "3", "action": "normalize_date", "params": {"date": "2020-01-15"}}`), nil)
	require.True(t, resp.Success)
	assert.Equal(t, map[string]string{"normalized": "15/01/2020"}, resp.Data)

	resp, _ = h.HandleLine(ctx, []byte(`{"id": "4", "action": "detect_sections", "params": {"text": "EDUCATION\nBSc\nSKILLS\nGo"}}`), nil)
	require.True(t, resp.Success)
	sections, ok := resp.Data.([]types.Section)
	require.True(t, ok)
	require.Len(t, sections, 2)
	assert.Equal(t, types.SectionEducation, sections[0].Name)

	resp, _ = h.HandleLine(ctx, []byte(`{"id": "4b", "action": "detect_sections", "params": {"text": "Résumé • Jane\nEXPERIENCE\nEngineer"}}`), nil)
	require.True(t, resp.Success)
	assert.Equal(t, []any{map[string]any{"name": "experience", "start": float64(25), "end": float64(33)}},
		roundTrip(t, resp)["data"], "区间按字符计，不按 UTF-8 字节")

	resp, _ = h.HandleLine(ctx, []byte(`{"id": "5", "action": "detect_sections", "params": {"text": ""}}`), nil)
	require.True(t, resp.Success)
	assert.Equal(t, []any{}, roundTrip(t, resp)["data"], "没有章节时返回空数组")
}

func TestHandleParseDocument(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	resp, _ := h.HandleLine(ctx, []byte(`{"id": "6", "action": "parse_document", "params": {"file_path": "/no/such/cv.pdf"}}`), nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "File not found: /no/such/cv.pdf", resp.Error)

	resp, _ = h.HandleLine(ctx, []byte(`{"id": "7", "action": "parse_document"}`), nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "file_path")

	path := writeDOCX(t, t.TempDir(), "Jane Doe", "SKILLS", "Go, Python")
	line, _ := json.Marshal(Request{ID: "8", Action: ActionParseDocument, Params: json.RawMessage(`{"file_path": ` + jsonString(path) + `}`)})
	resp, _ = h.HandleLine(ctx, line, nil)
	require.True(t, resp.Success, resp.Error)
	result, ok := resp.Data.(*types.ParseResult)
	require.True(t, ok)
	assert.Equal(t, types.DocumentDOCX, result.DocumentType)
	assert.Contains(t, result.RawText, "Go, Python")
}

func TestHandleExtractCVEmitsAck(t *testing.T) {
	h := newTestHandler()
	path := writeDOCX(t, t.TempDir(), "jane@example.com", "SKILLS", "Go, Python")

	var emitted []any
	emit := func(v any) error {
		emitted = append(emitted, v)
		return nil
	}
	line := []byte(`{"id": "9", "action": "extract_cv", "params": {"file_path": ` + jsonString(path) + `, "mode": "regex"}}`)
	resp, _ := h.HandleLine(context.Background(), line, emit)

	require.Len(t, emitted, 1)
	assert.Equal(t, Ack{ID: "9", Status: "processing"}, emitted[0])

	require.True(t, resp.Success, resp.Error)
	cv, ok := resp.Data.(*types.ParsedCV)
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", cv.Contact.Email)
	require.Len(t, cv.Skills, 1)
	assert.Equal(t, []string{"Go", "Python"}, cv.Skills[0].Skills)
	assert.Equal(t, types.MethodRegex, cv.ExtractionMethods.Skills)
}

func TestHandleExtractCVErrors(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	resp, _ := h.HandleLine(ctx, []byte(`{"id": "10", "action": "extract_cv", "params": {"file_path": "cv.pdf", "mode": "turbo"}}`), nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown mode: turbo", resp.Error)

	dir := t.TempDir()
	legacy := filepath.Join(dir, "old.doc")
	require.NoError(t, os.WriteFile(legacy, []byte{0xD0, 0xCF, 0x11, 0xE0}, 0644))
	resp, _ = h.HandleLine(ctx, []byte(`{"id": "11", "action": "extract_cv", "params": {"file_path": `+jsonString(legacy)+`}}`), nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Legacy .doc format is not supported")

	corrupt := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a zip"), 0644))
	resp, _ = h.HandleLine(ctx, []byte(`{"id": "12", "action": "extract_cv", "params": {"file_path": `+jsonString(corrupt)+`}}`), nil)
	assert.False(t, resp.Success)
	assert.NotContains(t, resp.Error, orchestrator.ErrDocumentUnreadable.Error(), "只返回文档自身的说明")
	assert.Contains(t, resp.Error, "Cannot open file")
}

func TestHandleObjectPaths(t *testing.T) {
	ctx := context.Background()
	line := []byte(`{"id": "13", "action": "parse_document", "params": {"file_path": "minio://cvs/jane.docx"}}`)

	resp, _ := newTestHandler().HandleLine(ctx, line, nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "MinIO is not configured")

	fetcher := &fakeFetcher{path: writeDOCX(t, t.TempDir(), "Jane Doe")}
	resp, _ = newTestHandler(WithFetcher(fetcher)).HandleLine(ctx, line, nil)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, []string{"minio://cvs/jane.docx"}, fetcher.requests)
	assert.True(t, fetcher.cleaned, "请求结束后删除临时文件")

	failing := &fakeFetcher{err: errors.New("bucket not found")}
	resp, _ = newTestHandler(WithFetcher(failing)).HandleLine(ctx, line, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "bucket not found", resp.Error)
}

func TestHandleResetAndShutdown(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	resp, shutdown := h.HandleLine(ctx, []byte(`{"id": "14", "action": "reset_llm"}`), nil)
	require.True(t, resp.Success)
	assert.False(t, shutdown)
	assert.Equal(t, map[string]bool{"llm_available": false}, resp.Data)

	resp, shutdown = h.HandleLine(ctx, []byte(`{"id": "15", "action": "shutdown"}`), nil)
	assert.True(t, resp.Success)
	assert.True(t, shutdown)
}

func jsonString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
