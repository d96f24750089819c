package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"cv-sidecar/internal/logger"
	"cv-sidecar/internal/types"
)

// TikaPDFExtractor 是基于Apache Tika服务的备用引擎，同时能从XHTML输出中识别表格
type TikaPDFExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	// HTTP客户端，可配置超时等参数
	Client *http.Client
	// 是否提取链接注释文本
	extractAnnotations bool
	logger             zerolog.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaPDFExtractor)

// WithAnnotations 配置是否提取PDF链接注释文本
func WithAnnotations(extract bool) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.extractAnnotations = extract
	}
}

// WithTikaLogger 配置自定义日志记录器
func WithTikaLogger(l zerolog.Logger) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.logger = l
	}
}

// WithTimeout 配置HTTP客户端超时时间
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaPDFExtractor) {
		e.Client.Timeout = timeout
	}
}

// WithHTTPClient 替换HTTP客户端
func WithHTTPClient(client *http.Client) TikaOption {
	return func(e *TikaPDFExtractor) {
		if client != nil {
			e.Client = client
		}
	}
}

var (
	_ SecondaryEngine = (*TikaPDFExtractor)(nil)
	_ TableExtractor  = (*TikaPDFExtractor)(nil)
)

// NewTikaPDFExtractor 创建一个新的Tika PDF解析器
func NewTikaPDFExtractor(serverURL string, options ...TikaOption) *TikaPDFExtractor {
	extractor := &TikaPDFExtractor{
		ServerURL:          strings.TrimRight(serverURL, "/"),
		Client:             &http.Client{Timeout: 60 * time.Second},
		extractAnnotations: true,
		logger:             logger.Logger.With().Str("engine", EngineTika).Logger(),
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor
}

// Name 引擎名称
func (e *TikaPDFExtractor) Name() string { return EngineTika }

// ExtractText 请求XHTML输出，按 div.page 拼接每页文字
func (e *TikaPDFExtractor) ExtractText(ctx context.Context, data []byte, uri string) (*SecondaryText, error) {
	startTime := time.Now()

	doc, err := e.fetchXHTML(ctx, data, uri)
	if err != nil {
		return nil, err
	}

	pages := doc.Find("div.page")
	var texts []string
	if pages.Length() == 0 {
		if body := strings.TrimSpace(doc.Find("body").Text()); body != "" {
			texts = append(texts, body)
		}
	} else {
		pages.Each(func(_ int, page *goquery.Selection) {
			if text := pageText(page); text != "" {
				texts = append(texts, text)
			}
		})
	}

	pageCount := pages.Length()
	if pageCount == 0 {
		if meta, err := e.extractMetadata(ctx, data, uri); err == nil {
			pageCount = metadataPageCount(meta)
		} else {
			e.logger.Debug().Err(err).Msg("元数据提取失败，页数未知")
		}
	}

	text := strings.Join(texts, "\n\n")
	e.logger.Debug().
		Str("uri", uri).
		Int("pages", pageCount).
		Int("chars", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Tika 提取完成")

	return &SecondaryText{Text: text, PageCount: pageCount}, nil
}

// ExtractTables 解析XHTML中的 table 元素，只保留指定页上的表格
func (e *TikaPDFExtractor) ExtractTables(ctx context.Context, data []byte, uri string, pages []int) ([]types.TableData, error) {
	doc, err := e.fetchXHTML(ctx, data, uri)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int]bool, len(pages))
	for _, p := range pages {
		wanted[p] = true
	}

	var tables []types.TableData
	collect := func(page int, sel *goquery.Selection) {
		sel.Find("table").Each(func(_ int, table *goquery.Selection) {
			if t, ok := parseHTMLTable(table, page); ok {
				tables = append(tables, t)
			}
		})
	}

	pageDivs := doc.Find("div.page")
	if pageDivs.Length() == 0 {
		if len(pages) == 0 || wanted[1] {
			collect(1, doc.Selection)
		}
		return tables, nil
	}
	pageDivs.Each(func(i int, page *goquery.Selection) {
		number := i + 1
		if len(pages) == 0 || wanted[number] {
			collect(number, page)
		}
	})
	return tables, nil
}

func (e *TikaPDFExtractor) fetchXHTML(ctx context.Context, data []byte, uri string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "text/html")
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}
	if !e.extractAnnotations {
		req.Header.Set("X-Tika-PDFExtractAnnotationText", "false")
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析Tika XHTML失败: %w", err)
	}
	return doc, nil
}

// extractMetadata 提取文档元数据
func (e *TikaPDFExtractor) extractMetadata(ctx context.Context, data []byte, uri string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+"/meta", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "application/json")
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	metadataBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取Tika响应失败: %w", err)
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("解析元数据JSON失败: %w", err)
	}
	return metadata, nil
}

// metadataPageCount 读取 xmpTPg:NPages，Tika 会把它编码成字符串
func metadataPageCount(meta map[string]interface{}) int {
	switch v := meta["xmpTPg:NPages"].(type) {
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	case float64:
		return int(v)
	}
	return 0
}

// pageText 每个 p 元素一行，表格之外的文字也会被保留
func pageText(page *goquery.Selection) string {
	var lines []string
	paragraphs := page.Find("p")
	if paragraphs.Length() == 0 {
		for _, line := range strings.Split(page.Text(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
		return strings.Join(lines, "\n")
	}
	paragraphs.Each(func(_ int, p *goquery.Selection) {
		for _, line := range strings.Split(p.Text(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	})
	return strings.Join(lines, "\n")
}

func parseHTMLTable(table *goquery.Selection, page int) (types.TableData, bool) {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	if len(rows) == 0 {
		return types.TableData{}, false
	}
	return types.TableData{Rows: padRows(rows), Page: page}, true
}
