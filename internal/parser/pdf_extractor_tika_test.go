package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-sidecar/internal/types"
)

const mockTikaXHTML = `<html xmlns="http://www.w3.org/1999/xhtml"><head><title>cv</title></head><body>
<div class="page"><p>Jane Doe
Senior Engineer</p><p>  </p><p>Skills</p>
<table><tr><th>Skill</th><th>Level</th></tr><tr><td>Go</td><td>Expert</td></tr><tr><td>SQL</td></tr></table>
</div>
<div class="page"><p>Education</p>
<table><tr><td>MSc</td><td>2019</td></tr></table>
</div>
</body></html>`

// 创建一个模拟的Tika服务器，用于测试
func createMockTikaServer(t *testing.T, xhtml string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch r.URL.Path {
		case "/tika":
			if r.Header.Get("Accept") != "text/html" {
				w.WriteHeader(http.StatusNotAcceptable)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(xhtml))
		case "/meta":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"Content-Type": "application/pdf", "xmpTPg:NPages": "3"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewTikaPDFExtractor(t *testing.T) {
	extractor := NewTikaPDFExtractor("http://localhost:9998/")
	require.NotNil(t, extractor, "创建的Tika PDF提取器不应为nil")
	assert.Equal(t, "http://localhost:9998", extractor.ServerURL, "末尾的斜杠应被去掉")
	require.NotNil(t, extractor.Client, "HTTP客户端不应为nil")
	assert.Equal(t, 60*time.Second, extractor.Client.Timeout, "HTTP客户端超时应为60秒")
	assert.True(t, extractor.extractAnnotations, "默认提取注释文本")
	assert.Equal(t, EngineTika, extractor.Name())

	custom := NewTikaPDFExtractor("http://tika:9998",
		WithTimeout(30*time.Second),
		WithAnnotations(false),
		WithTikaLogger(zerolog.Nop()),
	)
	assert.Equal(t, 30*time.Second, custom.Client.Timeout, "应该使用自定义超时")
	assert.False(t, custom.extractAnnotations)
}

func TestTikaExtractText(t *testing.T) {
	server := createMockTikaServer(t, mockTikaXHTML)
	extractor := NewTikaPDFExtractor(server.URL, WithTikaLogger(zerolog.Nop()))

	out, err := extractor.ExtractText(context.Background(), []byte("%PDF-1.5"), "cv.pdf")
	require.NoError(t, err, "提取文本不应返回错误")
	require.NotNil(t, out)

	assert.Equal(t, 2, out.PageCount, "页数来自 div.page 的个数")
	assert.Equal(t, "Jane Doe\nSenior Engineer\nSkills\n\nEducation", out.Text, "每页一段，页间空一行")
}

func TestTikaExtractTextWithoutPageDivs(t *testing.T) {
	server := createMockTikaServer(t, `<html><body><p>Plain body</p></body></html>`)
	extractor := NewTikaPDFExtractor(server.URL, WithTikaLogger(zerolog.Nop()))

	out, err := extractor.ExtractText(context.Background(), []byte("%PDF-1.5"), "cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Plain body", out.Text)
	assert.Equal(t, 3, out.PageCount, "没有分页信息时从元数据读取页数")
}

func TestTikaExtractTables(t *testing.T) {
	server := createMockTikaServer(t, mockTikaXHTML)
	extractor := NewTikaPDFExtractor(server.URL, WithTikaLogger(zerolog.Nop()))
	ctx := context.Background()

	tables, err := extractor.ExtractTables(ctx, []byte("%PDF-1.5"), "cv.pdf", nil)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, types.TableData{
		Rows: [][]string{{"Skill", "Level"}, {"Go", "Expert"}, {"SQL", ""}},
		Page: 1,
	}, tables[0], "不齐的行补成矩形")
	assert.Equal(t, 2, tables[1].Page)

	tables, err = extractor.ExtractTables(ctx, []byte("%PDF-1.5"), "cv.pdf", []int{2})
	require.NoError(t, err)
	require.Len(t, tables, 1, "只保留指定页的表格")
	assert.Equal(t, [][]string{{"MSc", "2019"}}, tables[0].Rows)
}

func TestTikaServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	extractor := NewTikaPDFExtractor(server.URL, WithTikaLogger(zerolog.Nop()))
	_, err := extractor.ExtractText(context.Background(), []byte("%PDF"), "cv.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

// TestTikaRealServer 需要本地运行的Tika服务
func TestTikaRealServer(t *testing.T) {
	resp, err := http.Get("http://localhost:9998/tika")
	if err != nil {
		t.Skip("Tika服务不可用，跳过测试")
		return
	}
	resp.Body.Close()

	extractor := NewTikaPDFExtractor("http://localhost:9998")
	out, err := extractor.ExtractText(context.Background(), buildPDF("BT /F1 12 Tf 72 720 Td (Jane Doe) Tj ET"), "cv.pdf")
	require.NoError(t, err)
	assert.Contains(t, out.Text, "Jane Doe")
}
